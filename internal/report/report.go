package report

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"

	"trendsight/internal/domain"
)

// ErrWrite marks an I/O failure persisting the report. The in-memory report
// is untouched, so callers can retry the write alone.
var ErrWrite = errors.New("report write error")

// Render produces the markdown report for a run. Trends appear in parse
// order; opportunities are nested under their trend.
func Render(rep *domain.Report) string {
	var b strings.Builder

	b.WriteString("# Trend Insight Report\n\n")
	fmt.Fprintf(&b, "- Generated: %s\n", rep.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- Model: %s\n", rep.Model)
	fmt.Fprintf(&b, "- Screenshots analyzed: %d (skipped %d non-image files)\n", rep.Screenshots, rep.Skipped)
	fmt.Fprintf(&b, "- Trends: %d, opportunities: %d, dropped blocks: %d\n", len(rep.Trends), rep.Opportunities(), rep.Dropped)

	for i, t := range rep.Trends {
		fmt.Fprintf(&b, "\n## %d. %s\n\n", i+1, t.Name)
		if t.Category != "" {
			fmt.Fprintf(&b, "- Category: %s\n", t.Category)
		}
		if t.GrowthPercent != nil {
			fmt.Fprintf(&b, "- Growth: %+.1f%%\n", *t.GrowthPercent)
		}
		if t.ContentGap {
			b.WriteString("- Content gap: yes\n")
		}
		if t.Audience != "" {
			fmt.Fprintf(&b, "- Audience: %s\n", t.Audience)
		}
		if t.Notes != "" {
			fmt.Fprintf(&b, "\n%s\n", t.Notes)
		}
		if len(t.Opportunities) > 0 {
			b.WriteString("\n### Opportunities\n\n")
			for _, opp := range t.Opportunities {
				fmt.Fprintf(&b, "- %s", opp.BusinessModel)
				if opp.RevenueRange != "" {
					fmt.Fprintf(&b, " — %s", opp.RevenueRange)
				}
				if opp.Effort != "" {
					fmt.Fprintf(&b, " (effort: %s)", opp.Effort)
				}
				b.WriteString("\n")
			}
		}
	}

	if len(rep.Warnings) > 0 {
		b.WriteString("\n## Parse warnings\n\n")
		for _, w := range rep.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}

// Write renders rep and persists it to path, overwriting any existing file.
// The write is atomic: content goes to a temp file in the destination
// directory, is synced, then renamed over path, so an interrupted run never
// leaves a half-written report. Destinations ending in .html get the
// markdown rendered through goldmark.
func Write(path string, rep *domain.Report) error {
	content := []byte(Render(rep))
	if strings.EqualFold(filepath.Ext(path), ".html") {
		html, err := toHTML(content)
		if err != nil {
			return fmt.Errorf("%w: render html: %v", ErrWrite, err)
		}
		content = html
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".trend-report-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrWrite, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: write temp file: %v", ErrWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: sync temp file: %v", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: close temp file: %v", ErrWrite, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: move report into place: %v", ErrWrite, err)
	}
	return nil
}

func toHTML(markdown []byte) ([]byte, error) {
	var body bytes.Buffer
	if err := goldmark.Convert(markdown, &body); err != nil {
		return nil, err
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>Trend Insight Report</title>\n</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}
