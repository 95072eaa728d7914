// Package cli provides command-line interface commands for the netsweep
// network scanner. This package implements the Cobra-based CLI structure
// with commands for port scanning, ping sweeps, hostname resolution, and
// configuration management.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/netsweep/internal/config"
	"github.com/anstrom/netsweep/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "netsweep",
	Short: "Concurrent network scanner",
	Long: `Netsweep probes hosts and ports over TCP and ICMP with bounded
concurrency. Targets are given as single hosts, comma-separated lists, or
CIDR blocks; results are aggregated into a deterministic, sorted report.`,
	Version: getVersion(),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./netsweep.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in current directory
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("netsweep")
	}

	// Read in environment variables that match
	viper.AutomaticEnv()
	viper.SetEnvPrefix("NETSWEEP")

	setConfigDefaults()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	// Initialize structured logging after config is loaded
	initLogging()
}

// setConfigDefaults sets default values for configuration.
func setConfigDefaults() {
	defaults := config.Default()

	viper.SetDefault("scan.default_ports", defaults.Scan.DefaultPorts)
	viper.SetDefault("scan.default_protocol", defaults.Scan.DefaultProtocol)
	viper.SetDefault("scan.timeout", defaults.Scan.Timeout)
	viper.SetDefault("scan.concurrency", defaults.Scan.Concurrency)

	viper.SetDefault("ping.timeout", defaults.Ping.Timeout)
	viper.SetDefault("ping.concurrency", defaults.Ping.Concurrency)

	viper.SetDefault("resolver.timeout", defaults.Resolver.Timeout)

	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("metrics.listen_addr", defaults.Metrics.ListenAddr)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.format", defaults.Logging.Format)
	viper.SetDefault("logging.output", defaults.Logging.Output)
}

// loadConfig loads the full configuration for the current invocation.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.ConfigFileUsed())
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	cfg, err := loadConfig()
	if err != nil {
		logging.SetDefault(logging.NewDefault())
		fmt.Fprintf(os.Stderr, "Warning: failed to load config, using default logging: %v\n", err)
		return
	}

	logConfig := cfg.LoggerConfig()
	if verbose {
		logConfig.Level = logging.LevelDebug
	}

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)
}
