// Package config handles netsweep configuration loading and validation.
// Configuration comes from an optional YAML file layered over built-in
// defaults; command-line flags override both at the CLI layer.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
)

// Config represents the complete netsweep configuration.
type Config struct {
	// Scan holds defaults for port scans.
	Scan ScanConfig `yaml:"scan" json:"scan"`

	// Ping holds defaults for ICMP sweeps.
	Ping PingConfig `yaml:"ping" json:"ping"`

	// Resolver configures hostname resolution.
	Resolver ResolverConfig `yaml:"resolver" json:"resolver"`

	// Metrics configures the optional Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ScanConfig holds default settings for TCP port scans.
type ScanConfig struct {
	// Ports probed when the command line does not specify any.
	DefaultPorts string `yaml:"default_ports" json:"default_ports" validate:"required"`

	// Protocol used when the command line does not specify one.
	DefaultProtocol string `yaml:"default_protocol" json:"default_protocol" validate:"oneof=tcp icmp"`

	// Per-probe connect timeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`

	// Ceiling on in-flight probes.
	Concurrency int `yaml:"concurrency" json:"concurrency" validate:"gte=1,lte=4096"`

	// Optional minimum delay between probe launches.
	Delay time.Duration `yaml:"delay" json:"delay" validate:"gte=0"`
}

// PingConfig holds default settings for ICMP echo sweeps.
type PingConfig struct {
	// Per-echo timeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`

	// Ceiling on in-flight echoes.
	Concurrency int `yaml:"concurrency" json:"concurrency" validate:"gte=1,lte=4096"`
}

// ResolverConfig holds hostname resolution settings.
type ResolverConfig struct {
	// Servers overrides the nameservers from /etc/resolv.conf. Bare IP
	// addresses; the standard DNS port is assumed.
	Servers []string `yaml:"servers" json:"servers" validate:"omitempty,dive,ip"`

	// Timeout for a single DNS exchange.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
}

// MetricsConfig holds Prometheus endpoint settings.
type MetricsConfig struct {
	// Enabled starts an HTTP listener serving /metrics during a scan.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// ListenAddr is the host:port to serve metrics on.
	ListenAddr string `yaml:"listen_addr" json:"listen_addr" validate:"required_if=Enabled true,omitempty,hostname_port"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error).
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`

	// Log format (text, json).
	Format string `yaml:"format" json:"format" validate:"oneof=text json"`

	// Log output (stdout, stderr, or a file path).
	Output string `yaml:"output" json:"output" validate:"required"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			DefaultPorts:    "22,80,443,8080,8443",
			DefaultProtocol: "tcp",
			Timeout:         2 * time.Second,
			Concurrency:     50,
			Delay:           0,
		},
		Ping: PingConfig{
			Timeout:     1 * time.Second,
			Concurrency: 100,
		},
		Resolver: ResolverConfig{
			Servers: nil,
			Timeout: 3 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load loads configuration from a file. A missing file is not an error;
// defaults are returned so netsweep works without any configuration.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save writes the configuration to a YAML file, creating the directory
// if needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration against its struct tags and reports
// the first offending field.
func (c *Config) Validate() error {
	validate := validator.New()
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if stderrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		return errors.NewConfigFieldError(errors.CodeValidation,
			fmt.Sprintf("configuration field failed %q validation", first.Tag()),
			first.Namespace(), first.Value())
	}
	return errors.WrapConfigError(errors.CodeValidation, "configuration validation failed", err)
}

// LoggerConfig converts the logging section into the logger's own config.
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{
		Level:     logging.LogLevel(c.Logging.Level),
		Format:    logging.LogFormat(c.Logging.Format),
		Output:    c.Logging.Output,
		AddSource: c.Logging.Level == "debug",
	}
}
