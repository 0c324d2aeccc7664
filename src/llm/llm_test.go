package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIGenerate(t *testing.T) {
	t.Parallel()

	var capturedAuth, capturedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedAuth = r.Header.Get("Authorization")
		capturedPath = r.URL.Path
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		if !strings.Contains(string(body), `"model":"gpt-test"`) {
			t.Errorf("unexpected body: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  Hello from OpenAI "}}]}`))
	}))
	t.Cleanup(server.Close)

	model, err := NewOpenAI("secret", "gpt-test", WithOpenAIBaseURL(server.URL+"/v1"))
	require.NoError(t, err)

	got, err := model.Generate(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello from OpenAI", got)
	assert.Equal(t, "Bearer secret", capturedAuth)
	assert.Equal(t, "/v1/chat/completions", capturedPath)
}

func TestOpenAIRequiresKeyAndModel(t *testing.T) {
	_, err := NewOpenAI("", "gpt")
	assert.Error(t, err)
	_, err = NewOpenAI("key", " ")
	assert.Error(t, err)
}

func TestGeminiGenerate(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-pro:generateContent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if q := r.URL.Query().Get("key"); q != "gem-key" {
			t.Errorf("missing key query parameter: %s", q)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Gemini "},{"text":"says hi"}]}}]}`))
	}))
	t.Cleanup(server.Close)

	model, err := NewGemini("gem-key", "gemini-pro", WithGeminiBaseURL(server.URL))
	require.NoError(t, err)
	got, err := model.Generate(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Gemini says hi", got)
}

func TestGeminiEmptyCandidates(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	t.Cleanup(server.Close)

	model, err := NewGemini("k", "m", WithGeminiBaseURL(server.URL))
	require.NoError(t, err)
	_, err = model.Generate(context.Background(), "Hello")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestOllamaGenerate(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"Hello from Ollama"}`))
	}))
	t.Cleanup(server.Close)

	model, err := NewOllama("llama3", WithOllamaBaseURL(server.URL))
	require.NoError(t, err)
	got, err := model.Generate(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello from Ollama", got)
}

func TestOllamaStreaming(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"stream":true`) {
			t.Errorf("stream flag not sent: %s", body)
		}
		_, _ = w.Write([]byte(strings.Join([]string{
			`{"response":"Hello, "}`,
			`{"response":"world","done":false}`,
			`{"response":"!","done":true}`,
			`{"response":"ignored"}`,
		}, "\n")))
	}))
	t.Cleanup(server.Close)

	model, err := NewOllama("llama3", WithOllamaBaseURL(server.URL), WithOllamaStreaming(true))
	require.NoError(t, err)
	got, err := model.Generate(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", got)
}

func TestOllamaStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	model, err := NewOllama("llama3", WithOllamaBaseURL(server.URL))
	require.NoError(t, err)
	_, err = model.Generate(context.Background(), "Hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestScriptedRepeatsLastReply(t *testing.T) {
	s := NewScripted("one", "two")
	ctx := context.Background()
	for _, want := range []string{"one", "two", "two"} {
		got, err := s.Generate(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Len(t, s.Prompts(), 3)

	_, err := NewScripted().Generate(ctx, "p")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestNewSelectsProvider(t *testing.T) {
	m, err := New(Config{Provider: "Scripted", Script: []string{"hi"}})
	require.NoError(t, err)
	assert.IsType(t, &Scripted{}, m)

	m, err = New(Config{Provider: ProviderOllama, Name: "llama3"})
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, m)

	_, err = New(Config{Provider: ProviderOpenAI, Name: "gpt"})
	assert.Error(t, err, "missing api key")

	_, err = New(Config{Provider: "claude-ish"})
	assert.ErrorContains(t, err, "unknown provider")

	_, err = New(Config{})
	assert.Error(t, err)
}
