package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/probe"
	"github.com/anstrom/netsweep/internal/scanning"
	"github.com/anstrom/netsweep/internal/target"
)

var (
	scanTargets     string
	scanPorts       string
	scanProtocol    string
	scanTimeout     time.Duration
	scanConcurrency int
	scanDelay       time.Duration
	scanOutput      string
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan targets for open TCP ports",
	Long: `Scan the given targets for open TCP ports using connect probes.

Targets may be single addresses, hostnames, comma-separated lists, or CIDR
blocks. Network and broadcast addresses of a block are skipped. Interrupting
the scan with Ctrl-C stops dispatching new probes, lets the in-flight ones
finish, and prints the partial report.`,
	Example: `  netsweep scan --targets 192.168.1.0/24
  netsweep scan --targets "192.168.1.1,192.168.1.10" --ports "22,80,443"
  netsweep scan --targets webserver.local --ports 1-1024 --concurrency 200
  netsweep scan --targets 10.0.0.1 --ports 443 --timeout 500ms --output json`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanTargets, "targets", "", "targets to scan: hosts, comma-separated list, or CIDR block")
	scanCmd.Flags().StringVar(&scanPorts, "ports", "", "port specification, e.g. '80,443' or '1-1024' (default from config)")
	scanCmd.Flags().StringVar(&scanProtocol, "protocol", "", "probe protocol: tcp or icmp (default from config)")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 0, "per-probe connect timeout (default from config)")
	scanCmd.Flags().IntVar(&scanConcurrency, "concurrency", 0, "maximum in-flight probes (default from config)")
	scanCmd.Flags().DurationVar(&scanDelay, "delay", 0, "minimum delay between probe launches")
	scanCmd.Flags().StringVar(&scanOutput, "output", "table", "output format: table or json")

	if err := scanCmd.MarkFlagRequired("targets"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to mark targets flag required: %v\n", err)
	}
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := validateOutputFormat(scanOutput); err != nil {
		return err
	}

	ports := scanPorts
	if ports == "" {
		ports = cfg.Scan.DefaultPorts
	}
	protocol := scanProtocol
	if protocol == "" {
		protocol = cfg.Scan.DefaultProtocol
	}
	timeout := scanTimeout
	if timeout == 0 {
		timeout = cfg.Scan.Timeout
	}
	concurrency := scanConcurrency
	if concurrency == 0 {
		concurrency = cfg.Scan.Concurrency
	}
	delay := scanDelay
	if delay == 0 {
		delay = cfg.Scan.Delay
	}

	stopMetrics := maybeServeMetrics(cfg)
	defer stopMetrics()

	resolver := target.NewDNSResolver(nil,
		target.WithServers(cfg.Resolver.Servers),
		target.WithQueryTimeout(cfg.Resolver.Timeout))
	scanner := scanning.NewScanner(scanning.WithParser(target.NewParser(resolver)))

	// Ctrl-C aborts the scan but still prints the partial report.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := scanner.Run(ctx, &scanning.Config{
		Targets:     scanTargets,
		Ports:       ports,
		Protocol:    probe.Protocol(protocol),
		Timeout:     timeout,
		Concurrency: concurrency,
		Delay:       delay,
	})
	if err != nil {
		if errors.IsFatal(err) {
			return fmt.Errorf("invalid scan request: %w", err)
		}
		return fmt.Errorf("scan failed: %w", err)
	}

	return renderReport(cmd.OutOrStdout(), report, scanOutput)
}
