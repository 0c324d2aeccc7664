package llm

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/RAIL-Suite/RAIL-sub001/src/json"
)

type ollamaConfig struct {
	httpClient HTTPDoer
	baseURL    string
	stream     bool
}

// OllamaOption configures an Ollama client.
type OllamaOption func(*ollamaConfig)

// WithOllamaHTTPClient overrides the HTTP client used to reach the daemon.
func WithOllamaHTTPClient(client HTTPDoer) OllamaOption {
	return func(cfg *ollamaConfig) {
		cfg.httpClient = client
	}
}

// WithOllamaBaseURL changes the generate endpoint.
func WithOllamaBaseURL(baseURL string) OllamaOption {
	return func(cfg *ollamaConfig) {
		if strings.TrimSpace(baseURL) != "" {
			cfg.baseURL = baseURL
		}
	}
}

// WithOllamaStreaming requests a streamed answer and joins the chunks.
func WithOllamaStreaming(stream bool) OllamaOption {
	return func(cfg *ollamaConfig) {
		cfg.stream = stream
	}
}

// Ollama issues requests to a running Ollama instance.
type Ollama struct {
	httpClient HTTPDoer
	model      string
	baseURL    string
	stream     bool
}

// NewOllama returns a Model powered by a local Ollama daemon.
func NewOllama(model string, opts ...OllamaOption) (*Ollama, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("ollama: model must not be empty")
	}
	cfg := &ollamaConfig{
		httpClient: http.DefaultClient,
		baseURL:    "http://localhost:11434/api/generate",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = http.DefaultClient
	}
	return &Ollama{
		httpClient: cfg.httpClient,
		model:      model,
		baseURL:    cfg.baseURL,
		stream:     cfg.stream,
	}, nil
}

// Generate requests a prediction from the configured model.
func (c *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	encoded, err := json.Marshal(map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": c.stream,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError("ollama", resp)
	}

	if c.stream {
		out, err := collectStreamingResponse(resp.Body)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(out), nil
	}
	var decoded struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	return strings.TrimSpace(decoded.Response), nil
}

// collectStreamingResponse joins newline-delimited chunks until one reports
// done.
func collectStreamingResponse(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	var b strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var chunk struct {
			Response string `json:"response"`
			Done     bool   `json:"done"`
			Error    string `json:"error"`
		}
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return "", err
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("ollama: %s", chunk.Error)
		}
		b.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return b.String(), nil
}
