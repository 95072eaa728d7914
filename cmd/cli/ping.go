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
	pingTargets     string
	pingTimeout     time.Duration
	pingConcurrency int
	pingOutput      string
)

// pingCmd represents the ping command
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Sweep targets with ICMP echo probes",
	Long: `Send ICMP echo requests to every address the target specification
expands to and report which hosts answered.

Raw ICMP sockets normally require elevated privileges; without them the
sweep falls back to unprivileged datagram ICMP where the platform allows
it, and reports probe errors otherwise.`,
	Example: `  netsweep ping --targets 192.168.1.0/24
  netsweep ping --targets "10.0.0.1,10.0.0.2" --timeout 500ms`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)

	pingCmd.Flags().StringVar(&pingTargets, "targets", "", "targets to sweep: hosts, comma-separated list, or CIDR block")
	pingCmd.Flags().DurationVar(&pingTimeout, "timeout", 0, "per-echo timeout (default from config)")
	pingCmd.Flags().IntVar(&pingConcurrency, "concurrency", 0, "maximum in-flight echoes (default from config)")
	pingCmd.Flags().StringVar(&pingOutput, "output", "table", "output format: table or json")

	if err := pingCmd.MarkFlagRequired("targets"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to mark targets flag required: %v\n", err)
	}
}

func runPing(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := validateOutputFormat(pingOutput); err != nil {
		return err
	}

	timeout := pingTimeout
	if timeout == 0 {
		timeout = cfg.Ping.Timeout
	}
	concurrency := pingConcurrency
	if concurrency == 0 {
		concurrency = cfg.Ping.Concurrency
	}

	stopMetrics := maybeServeMetrics(cfg)
	defer stopMetrics()

	resolver := target.NewDNSResolver(nil,
		target.WithServers(cfg.Resolver.Servers),
		target.WithQueryTimeout(cfg.Resolver.Timeout))
	scanner := scanning.NewScanner(scanning.WithParser(target.NewParser(resolver)))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := scanner.Run(ctx, &scanning.Config{
		Targets:     pingTargets,
		Protocol:    probe.ProtocolICMP,
		Timeout:     timeout,
		Concurrency: concurrency,
	})
	if err != nil {
		if errors.IsFatal(err) {
			return fmt.Errorf("invalid sweep request: %w", err)
		}
		return fmt.Errorf("sweep failed: %w", err)
	}

	return renderReport(cmd.OutOrStdout(), report, pingOutput)
}
