package scanning

import (
	"fmt"
	"time"

	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/probe"
	"github.com/anstrom/netsweep/internal/throttle"
)

// State is the lifecycle state of a scan.
type State string

const (
	// StatePending means the scan has been configured but not started.
	StatePending State = "pending"
	// StateRunning means probes are being dispatched.
	StateRunning State = "running"
	// StateCompleted means every requested target was probed.
	StateCompleted State = "completed"
	// StateAborted means the scan was canceled externally; the report holds
	// the probes that completed before cancellation.
	StateAborted State = "aborted"
)

// Config represents the configuration for a network scan.
type Config struct {
	// Targets is the target specification: single host, comma-separated
	// list, or CIDR notation.
	Targets string
	// Ports specifies which ports to probe (e.g., "80,443" or "1-1024").
	// Required for TCP scans; ignored for ICMP.
	Ports string
	// Protocol selects TCP connect or ICMP echo probing.
	Protocol probe.Protocol
	// Timeout is the per-probe timeout (0 = default).
	Timeout time.Duration
	// Concurrency is the ceiling on in-flight probes (0 = default).
	Concurrency int
	// Delay is an optional minimum delay between probe launches.
	Delay time.Duration
}

// Validate checks if the scan configuration is valid.
func (c *Config) Validate() error {
	if c.Targets == "" {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"no targets specified", "targets", c.Targets)
	}
	switch c.Protocol {
	case probe.ProtocolTCP:
		if c.Ports == "" {
			return errors.NewConfigFieldError(errors.CodeValidation,
				"TCP scans require a port specification", "ports", c.Ports)
		}
	case probe.ProtocolICMP:
		// Host-level probing; ports are ignored.
	default:
		return errors.NewConfigFieldError(errors.CodeValidation,
			fmt.Sprintf("invalid protocol: %s", c.Protocol), "protocol", string(c.Protocol))
	}
	if c.Concurrency < 0 {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"concurrency must not be negative", "concurrency", c.Concurrency)
	}
	if c.Timeout < 0 {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"timeout must not be negative", "timeout", c.Timeout)
	}
	if c.Delay < 0 {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"delay must not be negative", "delay", c.Delay)
	}
	return nil
}

// effectiveConcurrency returns the configured concurrency or the default.
func (c *Config) effectiveConcurrency() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return throttle.DefaultConcurrency
}

// effectiveTimeout returns the configured per-probe timeout or the default.
func (c *Config) effectiveTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return throttle.DefaultProbeTimeout
}

// Stats summarizes probe outcomes for a scan.
type Stats struct {
	// Open is the number of probes that reached an accepting target.
	Open int
	// Closed is the number of actively refused probes.
	Closed int
	// Filtered is the number of probes with no response within the timeout.
	Filtered int
	// Errors is the number of probes that failed for unrelated reasons.
	Errors int
	// Total is the number of recorded probes.
	Total int
}

// count updates the stats for one probe status.
func (s *Stats) count(status probe.Status) {
	switch status {
	case probe.StatusOpen:
		s.Open++
	case probe.StatusClosed:
		s.Closed++
	case probe.StatusFiltered:
		s.Filtered++
	case probe.StatusError:
		s.Errors++
	}
	s.Total++
}
