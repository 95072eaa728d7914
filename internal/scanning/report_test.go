package scanning

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netsweep/internal/probe"
	"github.com/anstrom/netsweep/internal/target"
)

func result(addr string, port uint16, status probe.Status) probe.Result {
	return probe.Result{
		Target:   target.Target{Addr: netip.MustParseAddr(addr), Port: port},
		Protocol: probe.ProtocolTCP,
		Status:   status,
		Latency:  time.Millisecond,
	}
}

func TestReportStartsPending(t *testing.T) {
	report := NewReport(nil)
	assert.Equal(t, StatePending, report.State())
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", report.ID.String())
	assert.Zero(t, report.Len())
	assert.True(t, report.EndTime().IsZero())
}

func TestReportFirstResultWins(t *testing.T) {
	report := NewReport(nil)
	report.setState(StateRunning)

	assert.True(t, report.add(result("10.0.0.1", 80, probe.StatusOpen)))
	assert.False(t, report.add(result("10.0.0.1", 80, probe.StatusClosed)))

	require.Equal(t, 1, report.Len())
	recorded, ok := report.Lookup("10.0.0.1:80")
	require.True(t, ok)
	assert.Equal(t, probe.StatusOpen, recorded.Status)

	stats := report.Stats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Open)
	assert.Zero(t, stats.Closed)
}

func TestReportRejectsAfterFreeze(t *testing.T) {
	report := NewReport(nil)
	report.setState(StateRunning)
	require.True(t, report.add(result("10.0.0.1", 80, probe.StatusOpen)))

	report.freeze(StateCompleted)
	assert.False(t, report.add(result("10.0.0.2", 80, probe.StatusOpen)))
	assert.Equal(t, 1, report.Len())
	assert.Equal(t, StateCompleted, report.State())
	assert.False(t, report.EndTime().IsZero())
	assert.Greater(t, report.Duration(), time.Duration(0))
}

func TestReportStatsPerStatus(t *testing.T) {
	report := NewReport(nil)
	report.setState(StateRunning)
	report.add(result("10.0.0.1", 22, probe.StatusOpen))
	report.add(result("10.0.0.1", 23, probe.StatusClosed))
	report.add(result("10.0.0.1", 24, probe.StatusFiltered))
	report.add(result("10.0.0.1", 25, probe.StatusError))

	stats := report.Stats()
	assert.Equal(t, Stats{Open: 1, Closed: 1, Filtered: 1, Errors: 1, Total: 4}, stats)
}

func TestSnapshotSortedByAddressThenPort(t *testing.T) {
	report := NewReport(nil)
	report.setState(StateRunning)
	report.add(result("10.0.0.2", 80, probe.StatusOpen))
	report.add(result("10.0.0.1", 443, probe.StatusClosed))
	report.add(result("10.0.0.1", 80, probe.StatusOpen))
	report.add(result("10.0.0.10", 22, probe.StatusFiltered))

	snapshot := report.Snapshot()
	require.Len(t, snapshot, 4)
	keys := make([]string, 0, len(snapshot))
	for _, r := range snapshot {
		keys = append(keys, r.Target.Key())
	}
	assert.Equal(t, []string{"10.0.0.1:80", "10.0.0.1:443", "10.0.0.2:80", "10.0.0.10:22"}, keys)
}

func TestSnapshotOrderIndependentOfArrival(t *testing.T) {
	results := []probe.Result{
		result("10.0.0.1", 80, probe.StatusOpen),
		result("10.0.0.1", 443, probe.StatusClosed),
		result("10.0.0.2", 80, probe.StatusFiltered),
	}

	forward := NewReport(nil)
	forward.setState(StateRunning)
	for _, r := range results {
		forward.add(r)
	}

	backward := NewReport(nil)
	backward.setState(StateRunning)
	for i := len(results) - 1; i >= 0; i-- {
		backward.add(results[i])
	}

	assert.Equal(t, forward.Snapshot(), backward.Snapshot())
	// Sorting is idempotent: repeated snapshots are identical.
	assert.Equal(t, forward.Snapshot(), forward.Snapshot())
}

func TestSnapshotPartialWhileRunning(t *testing.T) {
	report := NewReport(nil)
	report.setState(StateRunning)
	report.add(result("10.0.0.1", 80, probe.StatusOpen))

	snapshot := report.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, StateRunning, report.State())

	// The snapshot is a copy; later results do not mutate it.
	report.add(result("10.0.0.2", 80, probe.StatusClosed))
	assert.Len(t, snapshot, 1)
}
