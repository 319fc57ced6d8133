package screenshots

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"trendsight/internal/domain"
)

// ErrInput marks a bad or empty input directory. Fatal for the run; no
// report is written when Load fails.
var ErrInput = errors.New("screenshot input error")

// DefaultMaxBytes is the per-file size cap. The Gemini inline-data limit is
// 20MB per request part; anything larger is skipped rather than rejected.
const DefaultMaxBytes = 20 << 20

var extMIMETypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Load reads every image file in dir, ordered by filename, and returns the
// screenshots plus a count of skipped entries (non-image files, oversize
// files, files whose content does not match their extension). A missing or
// unreadable directory, or a directory with zero valid images, is ErrInput.
func Load(dir string, maxBytes int64) ([]domain.Screenshot, int, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read directory %s: %v", ErrInput, dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var shots []domain.Screenshot
	skipped := 0
	for _, name := range names {
		mimeType, ok := extMIMETypes[strings.ToLower(filepath.Ext(name))]
		if !ok {
			skipped++
			continue
		}

		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || info.Size() > maxBytes {
			skipped++
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			skipped++
			continue
		}

		// The extension is a claim; the bytes decide. Renamed PDFs and the
		// like show up in screenshot folders often enough to check.
		if !strings.HasPrefix(http.DetectContentType(data), "image/") {
			skipped++
			continue
		}

		shots = append(shots, domain.Screenshot{
			Path:     path,
			MIMEType: mimeType,
			Data:     data,
			Index:    len(shots),
		})
	}

	if len(shots) == 0 {
		return nil, skipped, fmt.Errorf("%w: no images found in %s", ErrInput, dir)
	}
	return shots, skipped, nil
}
