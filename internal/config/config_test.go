package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "22,80,443,8080,8443", cfg.Scan.DefaultPorts)
	assert.Equal(t, "tcp", cfg.Scan.DefaultProtocol)
	assert.Equal(t, 2*time.Second, cfg.Scan.Timeout)
	assert.Equal(t, 50, cfg.Scan.Concurrency)
	assert.Equal(t, time.Second, cfg.Ping.Timeout)
	assert.Equal(t, 100, cfg.Ping.Concurrency)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netsweep.yaml")
	content := `
scan:
  default_ports: "1-1024"
  timeout: 500ms
  concurrency: 128
logging:
  level: debug
  format: json
  output: stdout
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1-1024", cfg.Scan.DefaultPorts)
	assert.Equal(t, 500*time.Millisecond, cfg.Scan.Timeout)
	assert.Equal(t, 128, cfg.Scan.Concurrency)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Sections the file does not mention keep their defaults.
	assert.Equal(t, 100, cfg.Ping.Concurrency)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan: [not a mapping"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty default ports", func(c *Config) { c.Scan.DefaultPorts = "" }},
		{"unknown default protocol", func(c *Config) { c.Scan.DefaultProtocol = "udp" }},
		{"zero scan timeout", func(c *Config) { c.Scan.Timeout = 0 }},
		{"zero concurrency", func(c *Config) { c.Scan.Concurrency = 0 }},
		{"excessive concurrency", func(c *Config) { c.Scan.Concurrency = 10000 }},
		{"negative delay", func(c *Config) { c.Scan.Delay = -time.Second }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"resolver server not an ip", func(c *Config) { c.Resolver.Servers = []string{"dns.example.com"} }},
		{"metrics enabled without address", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.ListenAddr = ""
		}},
		{"metrics address without port", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.ListenAddr = "127.0.0.1"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeValidation))
		})
	}
}

func TestValidateAcceptsResolverServers(t *testing.T) {
	cfg := Default()
	cfg.Resolver.Servers = []string{"8.8.8.8", "2001:4860:4860::8888"}
	assert.NoError(t, cfg.Validate())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "netsweep.yaml")

	cfg := Default()
	cfg.Scan.DefaultPorts = "443"
	cfg.Scan.Concurrency = 10
	cfg.Logging.Level = "warn"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoggerConfig(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stdout"

	lc := cfg.LoggerConfig()
	assert.Equal(t, logging.LevelDebug, lc.Level)
	assert.Equal(t, logging.FormatJSON, lc.Format)
	assert.Equal(t, "stdout", lc.Output)
	assert.True(t, lc.AddSource)
}
