// Package llm provides the language model clients the reasoning loop talks to.
// Every client turns one prompt into one free-text completion; structure is
// imposed by the caller's parser, never by the model API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Model produces a completion for a prompt.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f ModelFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// HTTPDoer is implemented by *http.Client. It allows provider clients to be
// configured with custom transports while remaining testable.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrEmptyCompletion is returned when a provider answers without any text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

func statusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%s request failed (%d): %s", provider, resp.StatusCode, strings.TrimSpace(string(body)))
}
