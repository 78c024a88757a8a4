// Package config loads process configuration for the regent CLI and for
// programs embedding the agent.
//
// Precedence, lowest first: Default, the YAML file named by REGENT_CONFIG,
// environment variables. This is the only package that reads the
// environment; everything else receives explicit values.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/rickchristie/regent"
	"github.com/rickchristie/regent/llm"
)

// APIKeys holds vendor credentials.
type APIKeys struct {
	OpenAI     string `yaml:"openai" env:"OPENAI_API_KEY"`
	Anthropic  string `yaml:"anthropic" env:"ANTHROPIC_API_KEY"`
	Gemini     string `yaml:"gemini" env:"GEMINI_API_KEY"`
	OpenRouter string `yaml:"openrouter" env:"OPENROUTER_API_KEY"`
}

// Config is the full configuration surface.
type Config struct {
	Model        string `yaml:"model" env:"REGENT_MODEL"`
	Instructions string `yaml:"instructions" env:"REGENT_INSTRUCTIONS"`

	// EnabledAdapters is the comma-separated override list. Nil means the
	// default adapters; an empty string disables every adapter, so it is
	// read by presence rather than through env tags.
	EnabledAdapters *string `yaml:"enabled_adapters"`

	StrictMode    bool    `yaml:"strict_mode" env:"REGENT_STRICT_MODE"`
	MaxIterations int     `yaml:"max_iterations" env:"REGENT_MAX_ITERATIONS"`
	Temperature   float64 `yaml:"temperature" env:"REGENT_TEMPERATURE"`
	MaxTokens     int     `yaml:"max_tokens" env:"REGENT_MAX_TOKENS"`
	LogLevel      string  `yaml:"log_level" env:"REGENT_LOG_LEVEL"`

	// SiteName and SiteURL are sent to OpenRouter for app attribution.
	SiteName string `yaml:"site_name" env:"SITE_NAME"`
	SiteURL  string `yaml:"site_url" env:"SITE_URL"`

	APIKeys APIKeys `yaml:"api_keys"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Model:         "gpt-4o-mini",
		Instructions:  "You are a helpful AI agent.",
		StrictMode:    true,
		MaxIterations: regent.DefaultMaxIterations,
		LogLevel:      "info",
	}
}

const (
	// FileEnv names the variable pointing at the YAML config file.
	FileEnv = "REGENT_CONFIG"

	// EnabledAdaptersEnv holds the adapter override list.
	EnabledAdaptersEnv = "ENABLED_ADAPTERS"
)

func lookup(environment map[string]string, key string) (string, bool) {
	if environment == nil {
		return os.LookupEnv(key)
	}
	v, ok := environment[key]
	return v, ok
}

// Load reads configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv(FileEnv), nil)
}

// LoadFrom applies the YAML file at path (skipped when empty) and then the
// given environment over Default. A nil environment means the process
// environment.
func LoadFrom(path string, environment map[string]string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	opts := env.Options{Environment: environment}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if v, ok := lookup(environment, EnabledAdaptersEnv); ok {
		cfg.EnabledAdapters = &v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("max_tokens must not be negative, got %d", c.MaxTokens))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Enablement returns the adapter enablement policy.
func (c Config) Enablement() llm.Enablement {
	return llm.ParseEnablement(c.EnabledAdapters)
}

// Keys returns the credentials by provider. Empty keys are left out.
func (c Config) Keys() map[llm.ProviderID]string {
	keys := make(map[llm.ProviderID]string)
	for id, key := range map[llm.ProviderID]string{
		llm.ProviderOpenAI:     c.APIKeys.OpenAI,
		llm.ProviderAnthropic:  c.APIKeys.Anthropic,
		llm.ProviderGemini:     c.APIKeys.Gemini,
		llm.ProviderOpenRouter: c.APIKeys.OpenRouter,
	} {
		if key != "" {
			keys[id] = key
		}
	}
	return keys
}

// LLMOptions converts the configuration into facade options.
func (c Config) LLMOptions(logger *slog.Logger) []llm.Option {
	callOpts := []llm.CallOption{llm.WithTemperature(c.Temperature)}
	if c.MaxTokens > 0 {
		callOpts = append(callOpts, llm.WithExtra("max_tokens", c.MaxTokens))
	}

	opts := []llm.Option{
		llm.WithEnablement(c.Enablement()),
		llm.WithStrictMode(c.StrictMode),
		llm.WithAPIKeys(c.Keys()),
		llm.WithDefaultCallOptions(callOpts...),
	}
	if c.SiteName != "" {
		opts = append(opts, llm.WithVendorOption("site_name", c.SiteName))
	}
	if c.SiteURL != "" {
		opts = append(opts, llm.WithVendorOption("site_url", c.SiteURL))
	}
	if logger != nil {
		opts = append(opts, llm.WithLogger(logger))
	}
	return opts
}

// AgentOptions converts the configuration into agent options.
func (c Config) AgentOptions(logger *slog.Logger) []regent.Option {
	opts := []regent.Option{regent.WithMaxIterations(c.MaxIterations)}
	if logger != nil {
		opts = append(opts, regent.WithLogger(logger))
	}
	return opts
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Logger builds a text logger writing to w at the configured level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
