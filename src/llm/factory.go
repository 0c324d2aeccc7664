package llm

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Provider names accepted by New.
const (
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderScripted = "scripted"
)

// Config selects and configures a Model.
type Config struct {
	Provider string
	Name     string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	// Script holds the replies of the scripted provider.
	Script []string
}

// New builds the Model described by cfg.
func New(cfg Config) (Model, error) {
	var httpClient HTTPDoer = http.DefaultClient
	if cfg.Timeout > 0 {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI:
		return NewOpenAI(cfg.APIKey, cfg.Name,
			WithOpenAIBaseURL(cfg.BaseURL),
			WithOpenAIHTTPClient(httpClient))
	case ProviderGemini:
		return NewGemini(cfg.APIKey, cfg.Name,
			WithGeminiBaseURL(cfg.BaseURL),
			WithGeminiHTTPClient(httpClient))
	case ProviderOllama:
		return NewOllama(cfg.Name,
			WithOllamaBaseURL(cfg.BaseURL),
			WithOllamaHTTPClient(httpClient))
	case ProviderScripted:
		return NewScripted(cfg.Script...), nil
	case "":
		return nil, fmt.Errorf("llm: no model provider configured")
	}
	return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
}
