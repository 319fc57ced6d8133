package insight

import (
	"context"
	"errors"
	"time"

	"trendsight/internal/domain"
)

// Error taxonomy shared by every model backend. Adapters wrap their
// provider-specific failures with one of these sentinels so callers can
// decide with errors.Is and never look at provider error shapes.
var (
	// ErrAuth is an invalid or expired credential. Never retried.
	ErrAuth = errors.New("model auth error")
	// ErrQuotaExceeded means the account is out of quota for now. Fatal for
	// the current run; retrying within the run will not help.
	ErrQuotaExceeded = errors.New("model quota exceeded")
	// ErrTransient covers network failures, timeouts, 5xx and overload
	// responses. Subject to the Client retry policy.
	ErrTransient = errors.New("transient model error")
	// ErrModelUnavailable means the requested model identifier is not
	// servable. Callers can consult ListModels for a fallback.
	ErrModelUnavailable = errors.New("model unavailable")
)

// RawResponse is the unparsed text a backend produced for one request.
type RawResponse struct {
	Text       string
	Model      string
	ReceivedAt time.Time
}

// Extractor is the narrow contract every model backend implements:
// prompt and screenshots in, free-form text out.
type Extractor interface {
	Extract(ctx context.Context, prompt string, shots []domain.Screenshot) (*RawResponse, error)
}

// ModelInfo describes one servable model identifier.
type ModelInfo struct {
	ID              string
	DisplayName     string
	InputTokenLimit int
}

// ModelLister is implemented by backends that can report which model
// identifiers are currently servable.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}
