package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"

	"trendsight/internal/domain"
	"trendsight/internal/insight"
)

const defaultModelsURL = "https://api.anthropic.com/v1/models"

// anthropicVersion is the Anthropic API version header for the hand-rolled
// models listing; the SDK sets its own for Messages calls.
const anthropicVersion = "2023-06-01"

type ClaudeExtractor struct {
	client *anthropic.Client
	model  string

	// models listing is a plain GET the SDK does not cover.
	httpClient *http.Client
	apiKey     string
	modelsURL  string
}

func NewClaudeExtractor(apiKey, model string, opts ...anthropic.ClientOption) *ClaudeExtractor {
	return &ClaudeExtractor{
		client:     anthropic.NewClient(apiKey, opts...),
		model:      model,
		httpClient: &http.Client{},
		apiKey:     apiKey,
		modelsURL:  defaultModelsURL,
	}
}

// Model returns the identifier requests are sent to.
func (e *ClaudeExtractor) Model() string { return e.model }

func (e *ClaudeExtractor) Extract(ctx context.Context, prompt string, shots []domain.Screenshot) (*insight.RawResponse, error) {
	content := make([]anthropic.MessageContent, 0, len(shots)+1)
	for _, s := range shots {
		content = append(content, anthropic.NewImageMessageContent(
			anthropic.NewMessageContentSource(
				anthropic.MessagesContentSourceTypeBase64,
				normaliseMIME(s.MIMEType),
				s.Data,
			),
		))
	}
	content = append(content, anthropic.NewTextMessageContent(prompt))

	resp, err := e.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(e.model),
		MaxTokens: 4096,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: content},
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, mapError(err)
	}

	var text strings.Builder
	for _, blk := range resp.Content {
		text.WriteString(blk.GetText())
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("claude returned an empty response")
	}

	return &insight.RawResponse{
		Text:       text.String(),
		Model:      e.model,
		ReceivedAt: time.Now(),
	}, nil
}

// ListModels queries /v1/models and returns the servable identifiers.
func (e *ClaudeExtractor) ListModels(ctx context.Context) ([]insight.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.modelsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", e.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: list claude models: %v", insight.ErrTransient, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close claude models body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		detail := strings.TrimSpace(string(errBody))
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%w: claude returned status %d: %s", insight.ErrAuth, resp.StatusCode, detail)
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return nil, fmt.Errorf("%w: claude returned status %d: %s", insight.ErrTransient, resp.StatusCode, detail)
		default:
			return nil, fmt.Errorf("claude returned status %d: %s", resp.StatusCode, detail)
		}
	}

	var respBody struct {
		Data []struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode models response: %w", err)
	}

	models := make([]insight.ModelInfo, 0, len(respBody.Data))
	for _, m := range respBody.Data {
		models = append(models, insight.ModelInfo{ID: m.ID, DisplayName: m.DisplayName})
	}
	return models, nil
}

// mapError translates SDK failures onto the shared taxonomy.
func mapError(err error) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.IsAuthenticationErr() || apiErr.IsPermissionErr():
			return fmt.Errorf("%w: %v", insight.ErrAuth, err)
		case apiErr.IsRateLimitErr():
			return fmt.Errorf("%w: %v", insight.ErrQuotaExceeded, err)
		case apiErr.IsNotFoundErr():
			return fmt.Errorf("%w: %v", insight.ErrModelUnavailable, err)
		case apiErr.IsOverloadedErr() || apiErr.IsApiErr():
			return fmt.Errorf("%w: %v", insight.ErrTransient, err)
		default:
			return err
		}
	}

	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.StatusCode >= 500 {
			return fmt.Errorf("%w: %v", insight.ErrTransient, err)
		}
		return err
	}

	// Transport-level failure with no structured response.
	return fmt.Errorf("%w: %v", insight.ErrTransient, err)
}

// normaliseMIME coerces types the Anthropic API does not accept to jpeg.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
