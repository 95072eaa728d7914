// Package probe implements the individual probe executions netsweep performs:
// TCP connect attempts and ICMP echo requests. Each probe consumes one
// Request and produces exactly one immutable Result; per-target failures are
// classified into a status, never raised.
package probe

import (
	"context"
	"time"

	"github.com/anstrom/netsweep/internal/target"
)

// Protocol selects the probe mechanism.
type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolICMP Protocol = "icmp"
)

// Status is the outcome of a single probe.
type Status string

const (
	// StatusOpen means the target accepted the connection or answered the echo.
	StatusOpen Status = "open"
	// StatusClosed means the target actively refused.
	StatusClosed Status = "closed"
	// StatusFiltered means no response arrived within the timeout.
	StatusFiltered Status = "filtered"
	// StatusError means the probe failed for a reason unrelated to the
	// target's reachability (socket errors, permission problems).
	StatusError Status = "error"
)

// Request is one unit of probing work. It is created by the dispatcher and
// consumed exactly once.
type Request struct {
	Target   target.Target
	Protocol Protocol
	Timeout  time.Duration
}

// Result is the immutable outcome of one probe execution.
type Result struct {
	Target   target.Target
	Protocol Protocol
	Status   Status
	Latency  time.Duration
	Detail   string
}

// Prober executes probe requests. Implementations must be safe for
// concurrent use.
type Prober interface {
	Probe(ctx context.Context, req Request) Result
}

// ForProtocol returns a prober for the given protocol. ICMP probers carry
// socket state, so each call builds a fresh instance.
func ForProtocol(protocol Protocol) (Prober, error) {
	switch protocol {
	case ProtocolICMP:
		return NewICMPProber(), nil
	default:
		return NewTCPProber(), nil
	}
}
