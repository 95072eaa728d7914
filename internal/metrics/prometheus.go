// Prometheus collectors for netsweep. These expose scan and probe activity
// through the standard client library so operators can scrape a long-running
// sweep the same way they scrape any other service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all netsweep metrics.
	namespace = "netsweep"

	// Subsystems.
	subsystemScan  = "scan"
	subsystemProbe = "probe"
)

// Histogram buckets for probe latencies: sub-millisecond loopback probes up
// to multi-second WAN timeouts.
var probeLatencyBuckets = []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5}

// PrometheusMetrics holds all Prometheus metric collectors.
type PrometheusMetrics struct {
	// Scan metrics
	scansTotal   *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	scanErrors   *prometheus.CounterVec
	activeScans  prometheus.Gauge

	// Probe metrics
	probesTotal    *prometheus.CounterVec
	probeLatency   *prometheus.HistogramVec
	probesInFlight prometheus.Gauge

	startTime time.Time
	registry  *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initScanMetrics()
	pm.initProbeMetrics()
	pm.registerMetrics()

	// Register standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

// initScanMetrics initializes scan-level collectors.
func (pm *PrometheusMetrics) initScanMetrics() {
	pm.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total number of scans by protocol and final state",
		},
		[]string{"protocol", "state"},
	)

	pm.scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Scan duration in seconds by protocol",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"protocol"},
	)

	pm.scanErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "errors_total",
			Help:      "Total number of scan errors by protocol and error type",
		},
		[]string{"protocol", "error_type"},
	)

	pm.activeScans = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "active",
			Help:      "Number of currently running scans",
		},
	)
}

// initProbeMetrics initializes probe-level collectors.
func (pm *PrometheusMetrics) initProbeMetrics() {
	pm.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "total",
			Help:      "Total number of probes by protocol and status",
		},
		[]string{"protocol", "status"},
	)

	pm.probeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "latency_seconds",
			Help:      "Probe latency in seconds by protocol",
			Buckets:   probeLatencyBuckets,
		},
		[]string{"protocol"},
	)

	pm.probesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "in_flight",
			Help:      "Number of probes currently in flight",
		},
	)
}

// registerMetrics registers all collectors with the registry.
func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(
		pm.scansTotal,
		pm.scanDuration,
		pm.scanErrors,
		pm.activeScans,
		pm.probesTotal,
		pm.probeLatency,
		pm.probesInFlight,
	)
}

// GetRegistry returns the underlying Prometheus registry for exposition.
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// IncrementScansTotal records a completed scan.
func (pm *PrometheusMetrics) IncrementScansTotal(protocol, state string) {
	pm.scansTotal.WithLabelValues(protocol, state).Inc()
}

// RecordScanDuration records how long a scan took.
func (pm *PrometheusMetrics) RecordScanDuration(protocol string, duration time.Duration) {
	pm.scanDuration.WithLabelValues(protocol).Observe(duration.Seconds())
}

// IncrementScanErrors records a scan-level error.
func (pm *PrometheusMetrics) IncrementScanErrors(protocol, errorType string) {
	pm.scanErrors.WithLabelValues(protocol, errorType).Inc()
}

// SetActiveScans sets the number of scans currently running.
func (pm *PrometheusMetrics) SetActiveScans(count int) {
	pm.activeScans.Set(float64(count))
}

// IncrementProbesTotal records a completed probe with its status.
func (pm *PrometheusMetrics) IncrementProbesTotal(protocol, status string) {
	pm.probesTotal.WithLabelValues(protocol, status).Inc()
}

// RecordProbeLatency records the latency of one probe.
func (pm *PrometheusMetrics) RecordProbeLatency(protocol string, latency time.Duration) {
	pm.probeLatency.WithLabelValues(protocol).Observe(latency.Seconds())
}

// ProbeStarted increments the in-flight gauge.
func (pm *PrometheusMetrics) ProbeStarted() {
	pm.probesInFlight.Inc()
}

// ProbeFinished decrements the in-flight gauge.
func (pm *PrometheusMetrics) ProbeFinished() {
	pm.probesInFlight.Dec()
}

// GetUptime returns the time since the metrics instance was created.
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	return time.Since(pm.startTime)
}

// Global Prometheus metrics instance.
var (
	globalPrometheus     *PrometheusMetrics
	globalPrometheusOnce sync.Once
)

// GetGlobalMetrics returns the global Prometheus metrics instance,
// initializing it on first use.
func GetGlobalMetrics() *PrometheusMetrics {
	globalPrometheusOnce.Do(func() {
		globalPrometheus = NewPrometheusMetrics()
	})
	return globalPrometheus
}
