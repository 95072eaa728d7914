package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netsweep/internal/probe"
	"github.com/anstrom/netsweep/internal/scanning"
)

// stubProber returns canned statuses keyed by target.
type stubProber struct {
	statuses map[string]probe.Status
	details  map[string]string
}

func (s *stubProber) Probe(_ context.Context, req probe.Request) probe.Result {
	key := req.Target.Key()
	status, ok := s.statuses[key]
	if !ok {
		status = probe.StatusOpen
	}
	return probe.Result{
		Target:   req.Target,
		Protocol: req.Protocol,
		Status:   status,
		Latency:  3 * time.Millisecond,
		Detail:   s.details[key],
	}
}

func TestRootCommandStructure(t *testing.T) {
	assert.Equal(t, "netsweep", rootCmd.Use)

	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"scan", "ping", "resolve", "config"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

func TestScanCommandFlags(t *testing.T) {
	for _, flag := range []string{"targets", "ports", "protocol", "timeout", "concurrency", "delay", "output"} {
		assert.NotNil(t, scanCmd.Flags().Lookup(flag), "missing --%s", flag)
	}
	assert.Equal(t, "table", scanCmd.Flags().Lookup("output").DefValue)
}

func TestPingCommandFlags(t *testing.T) {
	for _, flag := range []string{"targets", "timeout", "concurrency", "output"} {
		assert.NotNil(t, pingCmd.Flags().Lookup(flag), "missing --%s", flag)
	}
	// Ping sweeps probe at the host level and take no port specification.
	assert.Nil(t, pingCmd.Flags().Lookup("ports"))
}

func TestGlobalFlags(t *testing.T) {
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("verbose"))
}

func TestValidateOutputFormat(t *testing.T) {
	assert.NoError(t, validateOutputFormat("table"))
	assert.NoError(t, validateOutputFormat("json"))
	assert.Error(t, validateOutputFormat("xml"))
	assert.Error(t, validateOutputFormat(""))
}

func TestVersionString(t *testing.T) {
	SetVersion("1.2.3", "abc1234", "2026-01-01")
	defer SetVersion("dev", "none", "unknown")

	v := getVersion()
	assert.Contains(t, v, "1.2.3")
	assert.Contains(t, v, "abc1234")
	assert.Contains(t, v, "2026-01-01")
	assert.Equal(t, v, rootCmd.Version)
}

func sampleReport(t *testing.T) *scanning.Report {
	t.Helper()
	scanner := scanning.NewScanner(scanning.WithProber(&stubProber{
		statuses: map[string]probe.Status{"10.0.0.2:443": probe.StatusFiltered},
		details:  map[string]string{"10.0.0.2:443": "timeout"},
	}))
	report, err := scanner.Run(context.Background(), &scanning.Config{
		Targets:  "10.0.0.1,10.0.0.2",
		Ports:    "80,443",
		Protocol: probe.ProtocolTCP,
	})
	require.NoError(t, err)
	return report
}

func TestRenderJSONReport(t *testing.T) {
	report := sampleReport(t)

	var buf bytes.Buffer
	require.NoError(t, renderReport(&buf, report, outputJSON))

	var decoded jsonReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, report.ID.String(), decoded.ScanID)
	assert.Equal(t, "completed", decoded.State)
	assert.Equal(t, 4, decoded.Stats.Total)
	assert.Equal(t, 3, decoded.Stats.Open)
	assert.Equal(t, 1, decoded.Stats.Filtered)
	require.Len(t, decoded.Results, 4)

	// Results are sorted by address then port.
	assert.Equal(t, "10.0.0.1", decoded.Results[0].Address)
	assert.Equal(t, uint16(80), decoded.Results[0].Port)
	assert.Equal(t, "open", decoded.Results[0].Status)
	last := decoded.Results[3]
	assert.Equal(t, "10.0.0.2", last.Address)
	assert.Equal(t, uint16(443), last.Port)
	assert.Equal(t, "filtered", last.Status)
	assert.Equal(t, "timeout", last.Detail)
}

func TestRenderTableReport(t *testing.T) {
	report := sampleReport(t)

	var buf bytes.Buffer
	require.NoError(t, renderReport(&buf, report, outputTable))

	out := buf.String()
	assert.Contains(t, out, "10.0.0.1:80")
	assert.Contains(t, out, "10.0.0.2:443")
	assert.Contains(t, out, "open")
	assert.Contains(t, out, "filtered")
	assert.Contains(t, out, "4 probed: 3 open, 0 closed, 1 filtered, 0 errors")

	// Address order decides row order, not status.
	assert.Less(t, strings.Index(out, "10.0.0.1:80"), strings.Index(out, "10.0.0.2:443"))
}

func TestScanCommandRejectsBadOutputFormat(t *testing.T) {
	defer func() {
		scanTargets = ""
		scanOutput = "table"
	}()
	scanTargets = "127.0.0.1"
	scanOutput = "xml"

	err := runScan(scanCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}
