package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Report file names written by WriteReport.
const (
	SuccessFile = ".lastrun.success.json"
	FailedFile  = ".lastrun.failed.json"
)

// Failure describes one failed request in the run report.
type Failure struct {
	Ticker    string `json:"ticker"`
	DateRange string `json:"date_range"`
	Reason    string `json:"reason"`
}

// Report is the outcome of a Run grouped by success.
type Report struct {
	Succeeded []string
	Failed    []Failure
}

// NewReport summarises results. A ticker appears once in Succeeded.
func NewReport(results []Result) Report {
	var r Report
	seen := make(map[string]bool)
	for _, res := range results {
		if res.Err != nil {
			r.Failed = append(r.Failed, Failure{Ticker: res.Request.Ticker, DateRange: dateRange(res.Request), Reason: res.Err.Error()})
			continue
		}
		if !seen[res.Request.Ticker] {
			seen[res.Request.Ticker] = true
			r.Succeeded = append(r.Succeeded, res.Request.Ticker)
		}
	}
	return r
}

// WriteReport stores the success and failure lists as JSON files in dir.
// Empty lists are not written.
func WriteReport(dir string, r Report) error {
	if len(r.Succeeded) == 0 && len(r.Failed) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if len(r.Succeeded) > 0 {
		if err := writeJSON(filepath.Join(dir, SuccessFile), r.Succeeded); err != nil {
			return err
		}
	}
	if len(r.Failed) > 0 {
		if err := writeJSON(filepath.Join(dir, FailedFile), r.Failed); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// FailedReasons joins the first failures into one line for logs.
func (r Report) FailedReasons() string {
	var b strings.Builder
	for i, f := range r.Failed {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f.Ticker)
		b.WriteString(": ")
		b.WriteString(f.Reason)
		if i >= 4 && len(r.Failed) > 6 {
			b.WriteString(fmt.Sprintf(" (+%d more)", len(r.Failed)-5))
			break
		}
	}
	return b.String()
}
