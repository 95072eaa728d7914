package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/anstrom/netsweep/internal/scanning"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func validateOutputFormat(format string) error {
	switch format {
	case outputTable, outputJSON:
		return nil
	default:
		return fmt.Errorf("invalid output format %q (valid: table, json)", format)
	}
}

// jsonReport is the JSON rendering of a finished scan.
type jsonReport struct {
	ScanID    string       `json:"scan_id"`
	State     string       `json:"state"`
	StartedAt time.Time    `json:"started_at"`
	Duration  string       `json:"duration"`
	Stats     jsonStats    `json:"stats"`
	Results   []jsonResult `json:"results"`
}

type jsonStats struct {
	Open     int `json:"open"`
	Closed   int `json:"closed"`
	Filtered int `json:"filtered"`
	Errors   int `json:"errors"`
	Total    int `json:"total"`
}

type jsonResult struct {
	Address   string `json:"address"`
	Port      uint16 `json:"port,omitempty"`
	Protocol  string `json:"protocol"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Detail    string `json:"detail,omitempty"`
}

// renderReport writes a scan report in the requested format.
func renderReport(w io.Writer, report *scanning.Report, format string) error {
	if format == outputJSON {
		return renderJSON(w, report)
	}
	return renderTable(w, report)
}

func renderJSON(w io.Writer, report *scanning.Report) error {
	stats := report.Stats()
	out := jsonReport{
		ScanID:    report.ID.String(),
		State:     string(report.State()),
		StartedAt: report.StartTime,
		Duration:  report.Duration().String(),
		Stats: jsonStats{
			Open:     stats.Open,
			Closed:   stats.Closed,
			Filtered: stats.Filtered,
			Errors:   stats.Errors,
			Total:    stats.Total,
		},
		Results: make([]jsonResult, 0, report.Len()),
	}
	for _, result := range report.Snapshot() {
		out.Results = append(out.Results, jsonResult{
			Address:   result.Target.Addr.String(),
			Port:      result.Target.Port,
			Protocol:  string(result.Protocol),
			Status:    string(result.Status),
			LatencyMS: result.Latency.Milliseconds(),
			Detail:    result.Detail,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func renderTable(w io.Writer, report *scanning.Report) error {
	table := tablewriter.NewWriter(w)
	table.Header("Target", "Protocol", "Status", "Latency", "Detail")

	for _, result := range report.Snapshot() {
		latency := ""
		if result.Latency > 0 {
			latency = result.Latency.Round(time.Microsecond).String()
		}
		_ = table.Append([]string{
			result.Target.String(),
			string(result.Protocol),
			string(result.Status),
			latency,
			result.Detail,
		})
	}
	if err := table.Render(); err != nil {
		return err
	}

	stats := report.Stats()
	fmt.Fprintf(w, "\nScan %s %s in %v\n",
		report.ID, report.State(), report.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "%d probed: %d open, %d closed, %d filtered, %d errors\n",
		stats.Total, stats.Open, stats.Closed, stats.Filtered, stats.Errors)
	if report.State() == scanning.StateAborted {
		fmt.Fprintln(w, "Scan was interrupted; results above are partial.")
	}
	return nil
}
