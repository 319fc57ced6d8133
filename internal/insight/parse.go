package insight

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"trendsight/internal/domain"
)

// ParseResult carries the extracted records plus visibility into what the
// parser could not recover. Dropped blocks are counted, never silent.
type ParseResult struct {
	Trends   []domain.TrendRecord
	Dropped  int
	Warnings []string
}

// labelAliases maps the label variants models actually produce onto
// canonical keys. Anything else with a colon is treated as free text.
var labelAliases = map[string]string{
	"trend":                 "trend",
	"keyword":               "trend",
	"topic":                 "trend",
	"category":              "category",
	"growth":                "growth",
	"growth rate":           "growth",
	"growth percentage":     "growth",
	"content gap":           "gap",
	"content gap indicator": "gap",
	"gap":                   "gap",
	"audience":              "audience",
	"target audience":       "audience",
	"demographics":          "audience",
	"opportunity":           "opportunity",
	"business opportunity":  "opportunity",
	"notes":                 "notes",
	"description":           "notes",
}

var (
	growthRe  = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)
	listNumRe = regexp.MustCompile(`^\d+[.)]\s+`)
)

// ParseResponse extracts trend records from free-form model output. It
// recognizes the labeled-line convention BuildPrompt asks for, but tolerates
// markdown wrappers, label synonyms, and missing fields. Blocks without a
// recoverable trend name are dropped and counted; named blocks with no
// other attributes are kept with a warning. Pure and deterministic.
func ParseResponse(raw string) ParseResult {
	res := ParseResult{Trends: []domain.TrendRecord{}}

	var cur *domain.TrendRecord
	curFields := 0

	flush := func() {
		if cur == nil {
			return
		}
		if cur.Name == "" {
			res.Dropped++
			res.Warnings = append(res.Warnings, "dropped a trend block with no recoverable name")
		} else {
			if curFields == 0 {
				res.Warnings = append(res.Warnings, fmt.Sprintf("trend %q has a name but no recognized attributes", cur.Name))
			}
			res.Trends = append(res.Trends, *cur)
		}
		cur = nil
		curFields = 0
	}

	for _, line := range strings.Split(raw, "\n") {
		line = normalizeLine(line)
		if line == "" {
			continue
		}

		key, value, ok := splitLabel(line)
		if !ok {
			// Unlabeled text inside a block is kept as notes; anything
			// before the first trend is model preamble and ignored.
			if cur != nil {
				appendNotes(cur, line)
			}
			continue
		}

		if key == "trend" {
			flush()
			cur = &domain.TrendRecord{Name: value}
			continue
		}
		if cur == nil {
			continue
		}

		switch key {
		case "category":
			if value != "" {
				cur.Category = value
				curFields++
			}
		case "growth":
			if g, found := parseGrowth(value); found {
				cur.GrowthPercent = &g
				curFields++
			}
		case "gap":
			if value != "" {
				cur.ContentGap = parseGap(value)
				curFields++
			}
		case "audience":
			if value != "" {
				cur.Audience = value
				curFields++
			}
		case "opportunity":
			if opp, found := parseOpportunity(value); found {
				cur.Opportunities = append(cur.Opportunities, opp)
				curFields++
			}
		case "notes":
			if value != "" {
				appendNotes(cur, value)
				curFields++
			}
		}
	}
	flush()

	return res
}

// normalizeLine strips the markdown decoration models wrap around labeled
// lines: bullets, numbering, headings, bold markers.
func normalizeLine(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-*•#> ")
	if m := listNumRe.FindString(line); m != "" {
		line = line[len(m):]
	}
	line = strings.ReplaceAll(line, "**", "")
	return strings.TrimSpace(line)
}

// splitLabel splits "Label: value" when Label is one of the recognized
// aliases. The 24-byte cap keeps prose sentences containing colons from
// being mistaken for labels.
func splitLabel(line string) (key, value string, ok bool) {
	i := strings.Index(line, ":")
	if i <= 0 || i > 24 {
		return "", "", false
	}
	canon, known := labelAliases[strings.ToLower(strings.TrimSpace(line[:i]))]
	if !known {
		return "", "", false
	}
	value = strings.TrimSpace(strings.Trim(strings.TrimSpace(line[i+1:]), "*_"))
	return canon, value, true
}

// parseGrowth pulls a signed percentage out of strings like "+25%",
// "-12 %", or "grew 8.5% this week". Trends shrink too; the sign matters.
func parseGrowth(value string) (float64, bool) {
	m := growthRe.FindString(value)
	if m == "" {
		return 0, false
	}
	g, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return g, true
}

func parseGap(value string) bool {
	v := strings.ToLower(value)
	return strings.HasPrefix(v, "yes") ||
		strings.HasPrefix(v, "true") ||
		strings.HasPrefix(v, "high") ||
		strings.HasPrefix(v, "medium")
}

// parseOpportunity parses "business model | revenue range | effort".
// Missing trailing fields stay empty; a line with no business model at all
// is not an opportunity.
func parseOpportunity(value string) (domain.OpportunityRecord, bool) {
	parts := strings.Split(value, "|")
	opp := domain.OpportunityRecord{BusinessModel: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		opp.RevenueRange = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		opp.Effort = strings.TrimSpace(parts[2])
	}
	if opp.BusinessModel == "" {
		return domain.OpportunityRecord{}, false
	}
	return opp, true
}

func appendNotes(t *domain.TrendRecord, text string) {
	if t.Notes != "" {
		t.Notes += " "
	}
	t.Notes += text
}
