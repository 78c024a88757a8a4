package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickchristie/regent/llm"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom("", map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Nil(t, cfg.EnabledAdapters)
	assert.Equal(t, []llm.ProviderID{llm.ProviderOpenAI, llm.ProviderAnthropic, llm.ProviderGemini}, cfg.Enablement().Adapters())
	assert.Empty(t, cfg.Keys())
}

func TestLoadFrom_Environment(t *testing.T) {
	cfg, err := LoadFrom("", map[string]string{
		"REGENT_MODEL":          "openrouter/auto",
		"ENABLED_ADAPTERS":      " OpenRouter, openai ,bogus",
		"OPENROUTER_API_KEY":    "sk-or",
		"REGENT_STRICT_MODE":    "false",
		"REGENT_MAX_ITERATIONS": "4",
		"REGENT_TEMPERATURE":    "0.3",
		"SITE_NAME":             "Regent",
		"SITE_URL":              "https://example.com",
		"REGENT_LOG_LEVEL":      "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, "openrouter/auto", cfg.Model)
	assert.False(t, cfg.StrictMode)
	assert.Equal(t, 4, cfg.MaxIterations)
	assert.Equal(t, 0.3, cfg.Temperature)
	assert.Equal(t, "Regent", cfg.SiteName)
	assert.Equal(t, []llm.ProviderID{llm.ProviderOpenRouter, llm.ProviderOpenAI}, cfg.Enablement().Adapters())
	assert.Equal(t, map[llm.ProviderID]string{llm.ProviderOpenRouter: "sk-or"}, cfg.Keys())
}

func TestLoadFrom_EmptyOverrideDisablesAll(t *testing.T) {
	cfg, err := LoadFrom("", map[string]string{"ENABLED_ADAPTERS": ""})
	require.NoError(t, err)
	require.NotNil(t, cfg.EnabledAdapters)
	assert.Empty(t, cfg.Enablement().Adapters())
}

func TestLoadFrom_FileThenEnvironment(t *testing.T) {
	path := writeFile(t, `
model: claude-3-5-sonnet-20240620
instructions: You are an AI agent
enabled_adapters: anthropic
max_iterations: 6
api_keys:
  anthropic: from-file
  gemini: gemini-file
`)

	cfg, err := LoadFrom(path, map[string]string{
		"ANTHROPIC_API_KEY": "from-env",
	})
	require.NoError(t, err)

	assert.Equal(t, "claude-3-5-sonnet-20240620", cfg.Model)
	assert.Equal(t, "You are an AI agent", cfg.Instructions)
	assert.Equal(t, 6, cfg.MaxIterations)
	assert.True(t, cfg.StrictMode)
	assert.Equal(t, []llm.ProviderID{llm.ProviderAnthropic}, cfg.Enablement().Adapters())
	assert.Equal(t, "from-env", cfg.APIKeys.Anthropic)
	assert.Equal(t, "gemini-file", cfg.APIKeys.Gemini)
}

func TestLoadFrom_Errors(t *testing.T) {
	tests := []struct {
		name        string
		path        func(t *testing.T) string
		environment map[string]string
	}{
		{
			name:        "missing file",
			path:        func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") },
			environment: map[string]string{},
		},
		{
			name:        "bad yaml",
			path:        func(t *testing.T) string { return writeFile(t, "model: [unclosed") },
			environment: map[string]string{},
		},
		{
			name:        "bad number",
			path:        func(*testing.T) string { return "" },
			environment: map[string]string{"REGENT_MAX_ITERATIONS": "many"},
		},
		{
			name:        "non-positive iterations",
			path:        func(*testing.T) string { return "" },
			environment: map[string]string{"REGENT_MAX_ITERATIONS": "0"},
		},
		{
			name:        "bad log level",
			path:        func(*testing.T) string { return "" },
			environment: map[string]string{"REGENT_LOG_LEVEL": "loud"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.path(t), tt.environment)
			assert.Error(t, err)
		})
	}
}

func TestConfig_Options(t *testing.T) {
	cfg := Default()
	cfg.MaxTokens = 512
	cfg.SiteName = "Regent"

	assert.Len(t, cfg.LLMOptions(nil), 5)
	assert.Len(t, cfg.AgentOptions(nil), 1)
}
