package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	URL      string        `yaml:"url" env:"TESTCFG_URL"`
	Username string        `yaml:"username" env:"TESTCFG_USERNAME"`
	Timeout  time.Duration `yaml:"timeout" env:"TESTCFG_TIMEOUT"`
	Verbose  bool          `yaml:"verbose" env:"TESTCFG_VERBOSE"`
	Retries  int           `yaml:"retries" env:"TESTCFG_RETRIES"`
	Indexes  []string      `yaml:"indexes" env:"TESTCFG_INDEXES"`
	Nested   struct {
		APIKey string `yaml:"api_key" env:"TESTCFG_API_KEY"`
	} `yaml:"nested"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
url: http://localhost:9200
username: app
timeout: 5s
retries: 3
indexes:
  - articles
  - sources
nested:
  api_key: from-file
`)

	cfg, err := Load[testConfig](path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9200", cfg.URL)
	assert.Equal(t, "app", cfg.Username)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, []string{"articles", "sources"}, cfg.Indexes)
	assert.Equal(t, "from-file", cfg.Nested.APIKey)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
url: http://localhost:9200
verbose: false
retries: 3
`)

	t.Setenv("TESTCFG_URL", "https://es.internal:9243")
	t.Setenv("TESTCFG_VERBOSE", "true")
	t.Setenv("TESTCFG_RETRIES", "7")
	t.Setenv("TESTCFG_TIMEOUT", "30s")
	t.Setenv("TESTCFG_INDEXES", "a, b,c")
	t.Setenv("TESTCFG_API_KEY", "from-env")

	cfg, err := Load[testConfig](path)
	require.NoError(t, err)

	assert.Equal(t, "https://es.internal:9243", cfg.URL)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, 7, cfg.Retries)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Indexes)
	assert.Equal(t, "from-env", cfg.Nested.APIKey)
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeConfig(t, `
url: http://localhost:9200
`)

	cfg, err := LoadWithDefaults(path, func(c *testConfig) {
		if c.Retries == 0 {
			c.Retries = 5
		}
		if c.Timeout == 0 {
			c.Timeout = 10 * time.Second
		}
	})
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retries)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestLoadWithDefaultsEnvWins(t *testing.T) {
	path := writeConfig(t, `
url: http://localhost:9200
`)
	t.Setenv("TESTCFG_RETRIES", "9")

	cfg, err := LoadWithDefaults(path, func(c *testConfig) {
		c.Retries = 5
	})
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Retries)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load[testConfig](filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "url: [unclosed")
	_, err := Load[testConfig](path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "url", Message: "is required"}
	assert.Equal(t, "url: is required", err.Error())
}
