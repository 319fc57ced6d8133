package insight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"trendsight/internal/domain"
)

// ClientConfig tunes the retry, chunking, and throttling behavior of Client.
// Zero values fall back to the defaults below.
type ClientConfig struct {
	MaxAttempts       int
	Backoff           time.Duration
	RequestTimeout    time.Duration
	ChunkSize         int
	RequestsPerMinute int
}

const (
	defaultMaxAttempts    = 3
	defaultBackoff        = 2 * time.Second
	defaultRequestTimeout = 60 * time.Second
	defaultChunkSize      = 8
)

// Client wraps an Extractor with the request policy every backend shares:
// per-attempt timeouts, bounded retry with exponential backoff on
// ErrTransient only, fixed-size chunking so no request exceeds model input
// limits, and token-bucket throttling. Cancellation is checked between
// attempts and between chunks; an in-flight request is bounded by its own
// timeout rather than preempted.
type Client struct {
	extractor   Extractor
	maxAttempts int
	backoff     time.Duration
	timeout     time.Duration
	chunkSize   int
	limiter     *rate.Limiter
	logger      *slog.Logger
}

func NewClient(extractor Extractor, cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = defaultChunkSize
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Client{
		extractor:   extractor,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		timeout:     cfg.RequestTimeout,
		chunkSize:   cfg.ChunkSize,
		limiter:     limiter,
		logger:      logger,
	}
}

// Extract submits all screenshots, splitting them into chunks of at most
// chunkSize per request. Every screenshot is sent; chunk responses are
// concatenated in order so the parser sees one document.
func (c *Client) Extract(ctx context.Context, prompt string, shots []domain.Screenshot) (*RawResponse, error) {
	if len(shots) == 0 {
		return nil, fmt.Errorf("no screenshots to submit")
	}

	var parts []string
	var model string
	for start := 0; start < len(shots); start += c.chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + c.chunkSize
		if end > len(shots) {
			end = len(shots)
		}

		resp, err := c.extractChunk(ctx, prompt, shots[start:end])
		if err != nil {
			return nil, err
		}
		parts = append(parts, resp.Text)
		model = resp.Model
	}

	return &RawResponse{
		Text:       strings.Join(parts, "\n\n"),
		Model:      model,
		ReceivedAt: time.Now(),
	}, nil
}

func (c *Client) extractChunk(ctx context.Context, prompt string, chunk []domain.Screenshot) (*RawResponse, error) {
	for attempt := 1; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := c.attempt(ctx, prompt, chunk)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, ErrTransient) {
			return nil, err
		}
		if attempt >= c.maxAttempts {
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		wait := c.backoff << (attempt - 1)
		c.logger.Warn("model request failed, retrying",
			"attempt", attempt, "max_attempts", c.maxAttempts, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// attempt runs one request under its own deadline. A deadline we imposed
// (not the caller's) surfaces as ErrTransient so the retry policy applies.
func (c *Client) attempt(ctx context.Context, prompt string, chunk []domain.Screenshot) (*RawResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.extractor.Extract(attemptCtx, prompt, chunk)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, fmt.Errorf("%w: request timed out after %s", ErrTransient, c.timeout)
	}
	return resp, err
}
