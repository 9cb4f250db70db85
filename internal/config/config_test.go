package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearProviderEnv(t *testing.T) {
	for _, k := range []string{"ARK_API_KEY", "OPENAI_API_KEY", "DASHSCOPE_API_KEY", "OLLAMA_API_URL", "LLAMA_MODEL", "RUPPED_RELAY_UPSTREAM_URL"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearProviderEnv(t)

	cfg, err := Load(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8000/api/negotiate", cfg.Relay.UpstreamURL)
	assert.Zero(t, cfg.Relay.Timeout)
	assert.Equal(t, 10, cfg.Negotiator.HistoryWindow)
	assert.Equal(t, "ollama", cfg.Model.Provider)
	assert.Equal(t, 60*time.Second, cfg.Ollama.PullTimeout)
	assert.Equal(t, "* * * * *", cfg.Setup.ProbeCron)
	assert.Equal(t, 24*time.Hour, cfg.Cart.TTL)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Same(t, cfg, Get())
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("RUPPED_RELAY_UPSTREAM_URL", "http://negotiator:8000/api/negotiate")
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("LLAMA_MODEL", "llama3.1:8b")

	cfg, err := Load(writeConfig(t, `
server:
  port: 8000
relay:
  timeout: 15s
model:
  provider: openai
openai:
  model: gpt-4o-mini
negotiator:
  temperature: 0.2
cors:
  allowed_origins: [http://shop.local]
`))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Relay.Timeout)
	assert.Equal(t, "http://negotiator:8000/api/negotiate", cfg.Relay.UpstreamURL)
	assert.Equal(t, "sk-from-env", cfg.OpenAI.APIKey)
	assert.Equal(t, "llama3.1:8b", cfg.Ollama.Model)
	assert.InDelta(t, 0.2, cfg.Negotiator.Temperature, 1e-6)
	assert.Equal(t, []string{"http://shop.local"}, cfg.CORS.AllowedOrigins)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
