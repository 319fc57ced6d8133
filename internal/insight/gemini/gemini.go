package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"trendsight/internal/domain"
	"trendsight/internal/insight"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// request types mirror the Gemini generateContent API structure.
type request struct {
	Contents         []content `json:"contents"`
	GenerationConfig genConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type genConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type response struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type modelsResponse struct {
	Models []struct {
		Name                       string   `json:"name"`
		DisplayName                string   `json:"displayName"`
		InputTokenLimit            int      `json:"inputTokenLimit"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

type GeminiExtractor struct {
	apiKey  string
	model   string
	client  *http.Client
	baseURL string
}

func NewGeminiExtractor(apiKey, model string) *GeminiExtractor {
	return &GeminiExtractor{
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{},
		baseURL: defaultBaseURL,
	}
}

// Model returns the identifier requests are sent to.
func (e *GeminiExtractor) Model() string { return e.model }

func (e *GeminiExtractor) Extract(ctx context.Context, prompt string, shots []domain.Screenshot) (*insight.RawResponse, error) {
	parts := make([]part, 0, len(shots)+1)
	for _, s := range shots {
		parts = append(parts, part{
			InlineData: &inlineData{
				MimeType: s.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(s.Data),
			},
		})
	}
	parts = append(parts, part{Text: prompt})

	body := request{
		Contents: []content{{Parts: parts}},
		GenerationConfig: genConfig{
			// Deterministic-as-possible output; the parser downstream
			// rewards consistency over creativity.
			Temperature: 0.1,
			// A dense screenshot batch yields ~20 trend blocks of ~60
			// tokens each; 4096 leaves room for verbose models.
			MaxOutputTokens: 4096,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", e.baseURL, e.model)
	req, err := e.newHTTPRequest(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: call gemini: %v", insight.ErrTransient, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close gemini response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var respBody response
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var text strings.Builder
	for _, cand := range respBody.Candidates {
		for _, p := range cand.Content.Parts {
			text.WriteString(p.Text)
		}
		break
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("gemini returned an empty response")
	}

	return &insight.RawResponse{
		Text:       text.String(),
		Model:      e.model,
		ReceivedAt: time.Now(),
	}, nil
}

// ListModels returns the model identifiers currently able to serve
// generateContent requests, with the "models/" path prefix stripped.
func (e *GeminiExtractor) ListModels(ctx context.Context) ([]insight.ModelInfo, error) {
	req, err := e.newHTTPRequest(ctx, http.MethodGet, e.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: list gemini models: %v", insight.ErrTransient, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close gemini models body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var respBody modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode models response: %w", err)
	}

	var models []insight.ModelInfo
	for _, m := range respBody.Models {
		if !supportsGenerate(m.SupportedGenerationMethods) {
			continue
		}
		models = append(models, insight.ModelInfo{
			ID:              strings.TrimPrefix(m.Name, "models/"),
			DisplayName:     m.DisplayName,
			InputTokenLimit: m.InputTokenLimit,
		})
	}
	return models, nil
}

func (e *GeminiExtractor) newHTTPRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.apiKey)
	return req, nil
}

// statusError maps Gemini HTTP failures onto the shared taxonomy.
func statusError(resp *http.Response) error {
	errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	detail := strings.TrimSpace(string(errBody))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: gemini returned status %d: %s", insight.ErrAuth, resp.StatusCode, detail)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: gemini returned status %d: %s", insight.ErrQuotaExceeded, resp.StatusCode, detail)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: gemini returned status %d: %s", insight.ErrModelUnavailable, resp.StatusCode, detail)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: gemini returned status %d: %s", insight.ErrTransient, resp.StatusCode, detail)
	default:
		return fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, detail)
	}
}

func supportsGenerate(methods []string) bool {
	for _, m := range methods {
		if m == "generateContent" {
			return true
		}
	}
	return false
}
