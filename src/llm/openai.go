package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type openAIConfig struct {
	httpClient  HTTPDoer
	baseURL     string
	temperature float32
}

// OpenAIOption configures a new OpenAI client.
type OpenAIOption func(*openAIConfig)

// WithOpenAIHTTPClient overrides the HTTP client used to reach the API.
func WithOpenAIHTTPClient(client HTTPDoer) OpenAIOption {
	return func(cfg *openAIConfig) {
		cfg.httpClient = client
	}
}

// WithOpenAIBaseURL points the client at a compatible server, for example a
// local gateway or a test server. The URL should include the /v1 prefix.
func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(cfg *openAIConfig) {
		if strings.TrimSpace(baseURL) != "" {
			cfg.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithOpenAITemperature sets the sampling temperature.
func WithOpenAITemperature(t float32) OpenAIOption {
	return func(cfg *openAIConfig) {
		cfg.temperature = t
	}
}

// OpenAI implements Model on the Chat Completions API.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAI constructs a client for the given chat model.
func NewOpenAI(apiKey, model string, opts ...OpenAIOption) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openai: api key must not be empty")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}
	cfg := &openAIConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		clientCfg.BaseURL = cfg.baseURL
	}
	if cfg.httpClient != nil {
		clientCfg.HTTPClient = cfg.httpClient
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: cfg.temperature,
	}, nil
}

// Generate issues a single-message chat completion.
func (c *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w", ErrEmptyCompletion)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
