package llm

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/RAIL-Suite/RAIL-sub001/src/json"
)

type geminiConfig struct {
	httpClient HTTPDoer
	baseURL    string
}

// GeminiOption configures a Gemini client.
type GeminiOption func(*geminiConfig)

// WithGeminiHTTPClient sets a custom HTTP client.
func WithGeminiHTTPClient(client HTTPDoer) GeminiOption {
	return func(cfg *geminiConfig) {
		cfg.httpClient = client
	}
}

// WithGeminiBaseURL overrides the base API URL.
func WithGeminiBaseURL(baseURL string) GeminiOption {
	return func(cfg *geminiConfig) {
		if strings.TrimSpace(baseURL) != "" {
			cfg.baseURL = baseURL
		}
	}
}

// Gemini talks to the Google Gemini generateContent API.
type Gemini struct {
	httpClient HTTPDoer
	apiKey     string
	model      string
	baseURL    string
}

// NewGemini constructs a Gemini backed Model.
func NewGemini(apiKey, model string, opts ...GeminiOption) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini: api key must not be empty")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("gemini: model must not be empty")
	}
	cfg := &geminiConfig{
		httpClient: http.DefaultClient,
		baseURL:    "https://generativelanguage.googleapis.com",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = http.DefaultClient
	}
	return &Gemini{
		httpClient: cfg.httpClient,
		apiKey:     apiKey,
		model:      model,
		baseURL:    cfg.baseURL,
	}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

// Generate requests a completion from the Gemini API.
func (c *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	base.Path = path.Join(base.Path, "v1beta", "models", c.model+":generateContent")
	q := base.Query()
	q.Set("key", c.apiKey)
	base.RawQuery = q.Encode()

	encoded, err := json.Marshal(map[string]any{
		"contents": []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String(), bytes.NewReader(encoded))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError("gemini", resp)
	}

	var decoded struct {
		Candidates []struct {
			Content geminiContent `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: %w", ErrEmptyCompletion)
	}
	var b strings.Builder
	for _, p := range decoded.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String()), nil
}
