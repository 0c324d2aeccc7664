package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RAIL-Suite/RAIL-sub001/src/protocol"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	ep, err := cfg.BrokerEndpoint()
	require.NoError(t, err)
	assert.Equal(t, protocol.DefaultBrokerEndpoint(), ep)
	assert.Equal(t, 5*time.Second, cfg.Transport.ConnectTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Transport.PingTimeout)
	assert.Equal(t, 1<<20, cfg.Transport.MaxFrameBytes)
	assert.Equal(t, 10, cfg.Agent.MaxSteps)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, cfg, Default())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeFile(t, "rail.yaml", `
broker:
  network: unix
  address: /tmp/rail.sock
transport:
  connect_timeout: 2s
agent:
  max_steps: 4
model:
  provider: ollama
  name: llama3
variables:
  WAREHOUSE: east
env_files:
  - .env.local
`)
	t.Setenv("RAIL_AGENT_MAX_STEPS", "7")
	t.Setenv("RAIL_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, protocol.Endpoint{Network: "unix", Address: "/tmp/rail.sock"}, mustEndpoint(t, cfg))
	assert.Equal(t, 2*time.Second, cfg.Transport.ConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.Transport.CallTimeout)
	assert.Equal(t, 7, cfg.Agent.MaxSteps)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "llama3", cfg.LLM().Name)
	assert.Equal(t, map[string]string{"WAREHOUSE": "east"}, cfg.Variables)
	assert.Equal(t, []string{".env.local"}, cfg.EnvFiles)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	path := writeFile(t, "bad.yaml", `
broker:
  network: udp
agent:
  max_steps: 0
model:
  provider: parrot
logging:
  format: xml
`)
	_, err := Load(path)
	require.Error(t, err)
	for _, want := range []string{"unsupported endpoint network", "agent.max_steps", "parrot", "logging.format"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLLMSubstitutesSecrets(t *testing.T) {
	env := writeFile(t, ".env", "OPENAI_API_KEY=sk-from-dotenv\n")
	cfg := Default()
	cfg.Model = ModelConfig{Provider: "openai", Name: "${MODEL}", APIKey: "${OPENAI_API_KEY}"}
	cfg.Variables = map[string]string{"MODEL": "gpt-4o-mini"}
	cfg.EnvFiles = []string{env}

	got := cfg.LLM()
	assert.Equal(t, "gpt-4o-mini", got.Name)
	assert.Equal(t, "sk-from-dotenv", got.APIKey)
}

func mustEndpoint(t *testing.T, cfg *Config) protocol.Endpoint {
	t.Helper()
	ep, err := cfg.BrokerEndpoint()
	require.NoError(t, err)
	return ep
}
