package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duhu110/axiom/pkg/config"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")

	path := writeTempConfig(t, "server:\n  addr: \":9090\"\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "test-key", cfg.LLM.APIKey)
	assert.Equal(t, "deepseek-reasoner", cfg.LLM.Model)
	assert.Equal(t, "sqlite3", cfg.Store.Driver)
	assert.NotEmpty(t, cfg.Store.DSN)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("MY_API_KEY", "sk-expanded")

	path := writeTempConfig(t, "llm:\n  api_key: \"${MY_API_KEY}\"\n  base_url: \"https://example.test\"\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-expanded", cfg.LLM.APIKey)
}

func TestLoad_MissingAPIKeyFailsValidation(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	path := writeTempConfig(t, "server:\n  addr: \":8080\"\n")

	_, err := config.Load(path)
	require.Error(t, err)
}
