package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, "session_id.ini", cfg.Session.File)
	assert.Equal(t, "credentials.ini", cfg.Credentials.File)
	assert.Equal(t, 64, cfg.Walk.MaxDepth)
	assert.Equal(t, 9, cfg.Nodes.WarnThreshold)
	assert.Equal(t, time.Second, cfg.Download.Interval)
	assert.Equal(t, 300*time.Second, cfg.Download.Timeout)
	assert.Equal(t, "2.8.0", cfg.MS.TestedVersion)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, "none", cfg.Telemetry.Exporter)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nerve.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
url: https://ms.example.com
api:
  timeout: 5s
walk:
  max_depth: 8
telemetry:
  exporter: stdout
`), 0o644))

	t.Setenv("NERVE_USERNAME", "ops@example.com")
	t.Setenv("NERVE_NODES_WARN_THRESHOLD", "25")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "https://ms.example.com", cfg.URL)
	assert.Equal(t, "ops@example.com", cfg.Username)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 8, cfg.Walk.MaxDepth)
	assert.Equal(t, 25, cfg.Nodes.WarnThreshold)
	assert.Equal(t, "stdout", cfg.Telemetry.Exporter)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			API:       API{Timeout: time.Second},
			Walk:      Walk{MaxDepth: 4},
			Download:  Download{Interval: time.Second, Timeout: time.Minute},
			Telemetry: Telemetry{Exporter: "none"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }},
		{"zero depth", func(c *Config) { c.Walk.MaxDepth = 0 }},
		{"interval above timeout", func(c *Config) { c.Download.Interval = 2 * time.Minute }},
		{"unknown exporter", func(c *Config) { c.Telemetry.Exporter = "zipkin" }},
	}

	ok := base()
	require.NoError(t, ok.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
