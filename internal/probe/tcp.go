package probe

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"
)

const defaultTCPTimeout = 2 * time.Second

// TCPProber performs TCP connect probes. A successful three-way handshake
// reports open, an active refusal reports closed, and silence up to the
// timeout reports filtered.
type TCPProber struct {
	dialer net.Dialer
}

// NewTCPProber creates a TCP connect prober.
func NewTCPProber() *TCPProber {
	return &TCPProber{}
}

// Probe dials the target and classifies the outcome. It never returns an
// error: every failure mode maps to a Result status.
func (p *TCPProber) Probe(ctx context.Context, req Request) Result {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTCPTimeout
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dialer.DialContext(dialCtx, "tcp", req.Target.String())
	latency := time.Since(start)

	res := Result{
		Target:   req.Target,
		Protocol: ProtocolTCP,
		Latency:  latency,
	}

	if err == nil {
		_ = conn.Close()
		res.Status = StatusOpen
		return res
	}

	return classifyDialError(res, err)
}

// classifyDialError maps a dial failure onto a probe status.
func classifyDialError(res Result, err error) Result {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		res.Status = StatusClosed
		res.Detail = "connection refused"
	case isTimeout(err):
		// No response within the timeout. A normal outcome, not an error.
		res.Status = StatusFiltered
		res.Detail = "timeout"
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		res.Status = StatusFiltered
		res.Detail = err.Error()
	default:
		res.Status = StatusError
		res.Detail = err.Error()
	}
	return res
}

// isTimeout reports whether the error is a dial timeout or a canceled
// deadline from the probe context.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
