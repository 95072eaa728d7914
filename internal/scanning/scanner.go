// Package scanning provides the core scan engine for netsweep: a bounded
// worker pool that pulls targets from an expanded specification, probes
// them, and aggregates outcomes into a sorted report. Individual probe
// failures are absorbed into result statuses; only malformed input aborts
// a scan before it starts.
package scanning

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/metrics"
	"github.com/anstrom/netsweep/internal/probe"
	"github.com/anstrom/netsweep/internal/target"
	"github.com/anstrom/netsweep/internal/throttle"
)

// Scanner dispatches bounded concurrent probes against an expanded target
// specification and aggregates the outcomes.
type Scanner struct {
	parser   *target.Parser
	prober   probe.Prober
	logger   *logging.Logger
	registry metrics.MetricsRegistry

	inFlight atomic.Int64
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithParser sets the target parser (and through it the hostname resolver).
func WithParser(parser *target.Parser) ScannerOption {
	return func(s *Scanner) { s.parser = parser }
}

// WithProber overrides the prober. Intended for tests; by default the
// prober is chosen per scan from the configured protocol.
func WithProber(prober probe.Prober) ScannerOption {
	return func(s *Scanner) { s.prober = prober }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) ScannerOption {
	return func(s *Scanner) { s.logger = logger }
}

// WithMetrics sets the metrics registry the scanner records into. Defaults
// to the package-level registry.
func WithMetrics(registry metrics.MetricsRegistry) ScannerOption {
	return func(s *Scanner) { s.registry = registry }
}

// NewScanner creates a scanner with the given options.
func NewScanner(opts ...ScannerOption) *Scanner {
	s := &Scanner{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	if s.parser == nil {
		s.parser = target.NewParser(nil)
	}
	if s.registry == nil {
		s.registry = metrics.Default()
	}
	return s
}

// Run executes a scan. It validates and parses the configuration, probes
// every expanded target under the configured concurrency ceiling, and
// returns the aggregated report.
//
// Cancellation of ctx is not an error: no new probes are dispatched,
// in-flight probes finish or time out, and the returned report is frozen
// in the aborted state with the results recorded up to that point.
func (s *Scanner) Run(ctx context.Context, config *Config) (*Report, error) {
	scanStart := time.Now()
	protocol := string(config.Protocol)
	defer func() {
		duration := time.Since(scanStart)
		metrics.GetGlobalMetrics().RecordScanDuration(protocol, duration)
		s.registry.Histogram(metrics.MetricScanDuration, duration.Seconds(),
			metrics.Labels{"protocol": protocol})
	}()

	if err := config.Validate(); err != nil {
		s.countScanError(protocol, "config_invalid")
		return nil, err
	}

	spec, err := s.parser.Parse(ctx, config.Targets, s.portsFor(config))
	if err != nil {
		s.countScanError(protocol, "target_invalid")
		return nil, err
	}

	prober := s.prober
	if prober == nil {
		if prober, err = probe.ForProtocol(config.Protocol); err != nil {
			return nil, errors.WrapScanError(errors.CodeScanFailed, "no prober available", err)
		}
	}

	controller := throttle.New(
		throttle.WithConcurrency(config.effectiveConcurrency()),
		throttle.WithProbeTimeout(config.effectiveTimeout()),
		throttle.WithMinDelay(config.Delay),
	)

	report := NewReport(s.logger)
	logger := s.logger.WithScanID(report.ID.String())
	logger.Info("starting scan",
		"protocol", protocol,
		"targets", config.Targets,
		"target_count", spec.Count(),
		"concurrency", controller.Concurrency(),
		"probe_timeout", controller.ProbeTimeout())

	s.dispatch(ctx, spec, prober, controller, report, config.Protocol)

	state := StateCompleted
	if ctx.Err() != nil {
		state = StateAborted
	}
	report.freeze(state)

	metrics.GetGlobalMetrics().IncrementScansTotal(protocol, string(state))
	s.registry.Counter(metrics.MetricScanTotal,
		metrics.Labels{"protocol": protocol, "state": string(state)})
	stats := report.Stats()
	logger.Info("scan finished",
		"state", state,
		"duration", report.Duration(),
		"probes", stats.Total,
		"open", stats.Open,
		"closed", stats.Closed,
		"filtered", stats.Filtered,
		"errors", stats.Errors)

	return report, nil
}

// countScanError records a pre-dispatch scan failure in both registries.
func (s *Scanner) countScanError(protocol, reason string) {
	metrics.GetGlobalMetrics().IncrementScanErrors(protocol, reason)
	s.registry.Counter(metrics.MetricScanErrors,
		metrics.Labels{"protocol": protocol, "reason": reason})
}

// portsFor returns the port specification to expand; ICMP scans probe at
// the host level and ignore ports.
func (s *Scanner) portsFor(config *Config) string {
	if config.Protocol == probe.ProtocolICMP {
		return ""
	}
	return config.Ports
}

// dispatch runs the worker pool until the target sequence is exhausted or
// the context is canceled.
func (s *Scanner) dispatch(
	ctx context.Context,
	spec *target.Spec,
	prober probe.Prober,
	controller *throttle.Controller,
	report *Report,
	protocol probe.Protocol,
) {
	report.setState(StateRunning)
	pm := metrics.GetGlobalMetrics()
	pm.SetActiveScans(1)
	defer pm.SetActiveScans(0)

	workerCount := controller.Concurrency()
	targets := make(chan target.Target)
	results := make(chan probe.Result)

	// Feeder: the only reader of the expanded sequence, so no target is
	// dispatched twice. Stops on cancellation without draining the spec.
	go func() {
		defer close(targets)
		for tgt := range spec.Targets() {
			select {
			case targets <- tgt:
				s.registry.Counter(metrics.MetricTargetsQueued,
					metrics.Labels{"protocol": string(protocol)})
			case <-ctx.Done():
				return
			}
		}
	}()

	var workers sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			s.worker(ctx, targets, results, prober, controller, protocol)
		}()
	}

	// Close the result stream once every worker has retired.
	go func() {
		workers.Wait()
		close(results)
	}()

	// Single-writer aggregation preserves the no-duplicate-key invariant.
	for result := range results {
		pm.IncrementProbesTotal(string(result.Protocol), string(result.Status))
		s.registry.Counter(metrics.MetricProbesTotal,
			metrics.Labels{"protocol": string(result.Protocol), "status": string(result.Status)})
		if result.Latency > 0 {
			pm.RecordProbeLatency(string(result.Protocol), result.Latency)
			s.registry.Histogram(metrics.MetricProbeLatency, result.Latency.Seconds(),
				metrics.Labels{"protocol": string(result.Protocol)})
		}
		report.add(result)
	}
}

// worker pulls targets and probes them until the stream closes or the scan
// is canceled. In-flight probes run to completion on their own timeout even
// after cancellation.
func (s *Scanner) worker(
	ctx context.Context,
	targets <-chan target.Target,
	results chan<- probe.Result,
	prober probe.Prober,
	controller *throttle.Controller,
	protocol probe.Protocol,
) {
	pm := metrics.GetGlobalMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case tgt, ok := <-targets:
			if !ok {
				return
			}
			if err := controller.Acquire(ctx); err != nil {
				// Canceled while waiting for a slot: the target was never
				// probed, so nothing is recorded for it.
				return
			}

			pm.ProbeStarted()
			s.registry.Gauge(metrics.MetricProbesActive, float64(s.inFlight.Add(1)), nil)
			// Detached from the scan context so cancellation lets the
			// probe finish or time out instead of killing it mid-flight.
			probeCtx := context.WithoutCancel(ctx)
			result := prober.Probe(probeCtx, probe.Request{
				Target:   tgt,
				Protocol: protocol,
				Timeout:  controller.ProbeTimeout(),
			})
			pm.ProbeFinished()
			s.registry.Gauge(metrics.MetricProbesActive, float64(s.inFlight.Add(-1)), nil)
			controller.Release()

			results <- result
		}
	}
}
