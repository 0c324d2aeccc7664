// Package config loads rail settings from YAML and RAIL_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/RAIL-Suite/RAIL-sub001/src/llm"
	"github.com/RAIL-Suite/RAIL-sub001/src/protocol"
)

// EnvPrefix prefixes every environment override, e.g. RAIL_BROKER_ADDRESS.
const EnvPrefix = "RAIL"

// Config is the top-level configuration.
type Config struct {
	Broker    BrokerConfig      `mapstructure:"broker"`
	Transport TransportConfig   `mapstructure:"transport"`
	Agent     AgentConfig       `mapstructure:"agent"`
	Model     ModelConfig       `mapstructure:"model"`
	Logging   LoggingConfig     `mapstructure:"logging"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
	Manifest  ManifestConfig    `mapstructure:"manifest"`
	Variables map[string]string `mapstructure:"variables"`
	EnvFiles  []string          `mapstructure:"env_files"`
}

// BrokerConfig locates the broker endpoint.
type BrokerConfig struct {
	Network string `mapstructure:"network"` // tcp or unix
	Address string `mapstructure:"address"`
}

// TransportConfig tunes the transport client.
type TransportConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	PingTimeout    time.Duration `mapstructure:"ping_timeout"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
	MaxFrameBytes  int           `mapstructure:"max_frame_bytes"`
}

// AgentConfig tunes the reasoning loop.
type AgentConfig struct {
	MaxSteps     int    `mapstructure:"max_steps"`
	RecorderPath string `mapstructure:"recorder_path"`
	SystemPrompt string `mapstructure:"system_prompt"`
	ToolLimit    int    `mapstructure:"tool_limit"`
}

// ModelConfig selects the language model.
type ModelConfig struct {
	Provider string        `mapstructure:"provider"` // openai, gemini, ollama, scripted
	Name     string        `mapstructure:"name"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Script   []string      `mapstructure:"script"`
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// MetricsConfig controls the Prometheus endpoint of `rail serve`.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// ManifestConfig points at the manifest a provider advertises.
type ManifestConfig struct {
	Path string `mapstructure:"path"`
}

// Load reads configuration from path, or from rail.yaml in . or ./configs when
// path is empty. A missing default file is not an error. Environment variables
// override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("rail")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("broker.network", protocol.NetworkTCP)
	v.SetDefault("broker.address", protocol.DefaultBrokerAddress)

	v.SetDefault("transport.connect_timeout", 5*time.Second)
	v.SetDefault("transport.ping_timeout", 100*time.Millisecond)
	v.SetDefault("transport.call_timeout", 30*time.Second)
	v.SetDefault("transport.max_frame_bytes", protocol.DefaultMaxFrameSize)

	v.SetDefault("agent.max_steps", 10)
	v.SetDefault("agent.recorder_path", "")
	v.SetDefault("agent.system_prompt", "")
	v.SetDefault("agent.tool_limit", 0)

	v.SetDefault("model.provider", "")
	v.SetDefault("model.name", "")
	v.SetDefault("model.base_url", "")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.timeout", 60*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", "127.0.0.1:9478")

	v.SetDefault("manifest.path", "")
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	var problems []string
	if _, err := c.BrokerEndpoint(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Transport.ConnectTimeout <= 0 {
		problems = append(problems, "transport.connect_timeout must be positive")
	}
	if c.Transport.PingTimeout <= 0 {
		problems = append(problems, "transport.ping_timeout must be positive")
	}
	if c.Transport.CallTimeout <= 0 {
		problems = append(problems, "transport.call_timeout must be positive")
	}
	if c.Transport.MaxFrameBytes <= 0 {
		problems = append(problems, "transport.max_frame_bytes must be positive")
	}
	if c.Agent.MaxSteps <= 0 {
		problems = append(problems, "agent.max_steps must be positive")
	}
	switch strings.ToLower(c.Model.Provider) {
	case "", llm.ProviderOpenAI, llm.ProviderGemini, llm.ProviderOllama, llm.ProviderScripted:
	default:
		problems = append(problems, fmt.Sprintf("model.provider %q is not one of openai, gemini, ollama, scripted", c.Model.Provider))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be console or json", c.Logging.Format))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		problems = append(problems, "metrics.addr is required when metrics are enabled")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// BrokerEndpoint returns the configured broker endpoint.
func (c *Config) BrokerEndpoint() (protocol.Endpoint, error) {
	ep := protocol.Endpoint{Network: c.Broker.Network, Address: c.Broker.Address}
	if err := ep.Validate(); err != nil {
		return protocol.Endpoint{}, fmt.Errorf("broker: %w", err)
	}
	return ep, nil
}

// Resolver returns the variable resolver built from the inline variables
// and env files of c.
func (c *Config) Resolver() *Resolver {
	sources := make([]VariableSource, 0, len(c.EnvFiles))
	for _, f := range c.EnvFiles {
		sources = append(sources, NewDotEnv(f))
	}
	return NewResolver(c.Variables, sources...)
}

// LLM returns the model settings with variables such as ${OPENAI_API_KEY}
// substituted.
func (c *Config) LLM() llm.Config {
	r := c.Resolver()
	return llm.Config{
		Provider: c.Model.Provider,
		Name:     r.SubstituteString(c.Model.Name),
		BaseURL:  r.SubstituteString(c.Model.BaseURL),
		APIKey:   r.SubstituteString(c.Model.APIKey),
		Timeout:  c.Model.Timeout,
		Script:   c.Model.Script,
	}
}
