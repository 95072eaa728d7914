// netsweep is a concurrent network scanner: TCP connect scans and ICMP
// echo sweeps over hosts, lists, and CIDR blocks.
package main

import (
	"github.com/anstrom/netsweep/cmd/cli"
)

// Build information, set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
