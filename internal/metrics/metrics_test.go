package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCounter(t *testing.T) {
	r := NewRegistry()

	r.Counter(MetricProbesTotal, Labels{"protocol": "tcp", "status": "open"})
	r.Counter(MetricProbesTotal, Labels{"protocol": "tcp", "status": "open"})
	r.Counter(MetricProbesTotal, Labels{"protocol": "tcp", "status": "closed"})

	snapshot := r.GetMetrics()
	require.Len(t, snapshot, 2)

	for _, m := range snapshot {
		assert.Equal(t, TypeCounter, m.Type)
		switch m.Labels["status"] {
		case "open":
			assert.Equal(t, float64(2), m.Value)
		case "closed":
			assert.Equal(t, float64(1), m.Value)
		default:
			t.Errorf("unexpected status label %q", m.Labels["status"])
		}
	}
}

func TestRegistryGauge(t *testing.T) {
	r := NewRegistry()

	r.Gauge(MetricProbesActive, 10, nil)
	r.Gauge(MetricProbesActive, 3, nil)

	snapshot := r.GetMetrics()
	require.Len(t, snapshot, 1)
	for _, m := range snapshot {
		assert.Equal(t, TypeGauge, m.Type)
		assert.Equal(t, float64(3), m.Value)
	}
}

func TestRegistryHistogram(t *testing.T) {
	r := NewRegistry()

	r.Histogram(MetricProbeLatency, 0.25, Labels{"protocol": "icmp"})

	snapshot := r.GetMetrics()
	require.Len(t, snapshot, 1)
	for _, m := range snapshot {
		assert.Equal(t, TypeHistogram, m.Type)
		assert.Equal(t, 0.25, m.Value)
	}
}

func TestRegistryDisabled(t *testing.T) {
	r := NewRegistry()
	r.SetEnabled(false)

	r.Counter(MetricScanTotal, nil)
	r.Gauge(MetricProbesActive, 1, nil)
	r.Histogram(MetricProbeLatency, 1, nil)

	assert.Empty(t, r.GetMetrics())
	assert.False(t, r.IsEnabled())
}

func TestRegistryReset(t *testing.T) {
	r := NewRegistry()
	r.Counter(MetricScanTotal, nil)
	require.NotEmpty(t, r.GetMetrics())

	r.Reset()
	assert.Empty(t, r.GetMetrics())
}

func TestSnapshotIsCopy(t *testing.T) {
	r := NewRegistry()
	r.Counter(MetricScanTotal, Labels{"protocol": "tcp"})

	snapshot := r.GetMetrics()
	for _, m := range snapshot {
		m.Value = 999
		m.Labels["protocol"] = "mutated"
	}

	fresh := r.GetMetrics()
	for _, m := range fresh {
		assert.Equal(t, float64(1), m.Value)
		assert.Equal(t, "tcp", m.Labels["protocol"])
	}
}

func TestTimer(t *testing.T) {
	defer Reset()
	Reset()

	timer := NewTimer(MetricScanDuration, Labels{"protocol": "tcp"})
	time.Sleep(5 * time.Millisecond)
	timer.Stop()

	snapshot := Default().GetMetrics()
	require.Len(t, snapshot, 1)
	for _, m := range snapshot {
		assert.Equal(t, TypeHistogram, m.Type)
		assert.Greater(t, m.Value, 0.0)
	}
}

func TestPrometheusCollectors(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncrementProbesTotal("tcp", "open")
	pm.IncrementProbesTotal("tcp", "open")
	pm.IncrementProbesTotal("icmp", "filtered")
	pm.RecordProbeLatency("tcp", 10*time.Millisecond)
	pm.IncrementScansTotal("tcp", "completed")
	pm.RecordScanDuration("tcp", time.Second)
	pm.ProbeStarted()
	pm.ProbeStarted()
	pm.ProbeFinished()

	assert.Equal(t, float64(2),
		testutil.ToFloat64(pm.probesTotal.WithLabelValues("tcp", "open")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(pm.probesTotal.WithLabelValues("icmp", "filtered")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(pm.scansTotal.WithLabelValues("tcp", "completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(pm.probesInFlight))
	assert.NotNil(t, pm.GetRegistry())
	assert.Greater(t, pm.GetUptime(), time.Duration(0))
}

func TestGlobalMetricsSingleton(t *testing.T) {
	first := GetGlobalMetrics()
	second := GetGlobalMetrics()
	assert.Same(t, first, second)
}
