package cli

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/netsweep/internal/target"
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve HOSTNAME...",
	Short: "Resolve hostnames to IP addresses",
	Long: `Resolve one or more hostnames to their IPv4 and IPv6 addresses using
the configured nameservers, falling back to the system resolver.`,
	Example: `  netsweep resolve example.com
  netsweep resolve example.com example.org`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolver := target.NewDNSResolver(nil,
		target.WithServers(cfg.Resolver.Servers),
		target.WithQueryTimeout(cfg.Resolver.Timeout))

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Hostname", "Address")

	failures := 0
	for _, name := range args {
		addrs, err := resolver.LookupHost(cmd.Context(), name)
		if err != nil {
			failures++
			_ = table.Append([]string{name, fmt.Sprintf("error: %v", err)})
			continue
		}
		for _, addr := range addrs {
			_ = table.Append([]string{name, addr.String()})
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	if failures == len(args) {
		return fmt.Errorf("no hostname resolved")
	}
	return nil
}
