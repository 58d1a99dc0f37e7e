// Package reporting renders a finalized run report into its output formats.
// Every sink consumes the same immutable report, so the console table, the
// JSON file and the HTML page always agree.
package reporting

import (
	"fmt"
	"time"

	"github.com/webspec-dev/webspec/results"
	"github.com/webspec-dev/webspec/types"
)

// Sink renders one output format of a run report. Write returns the path of
// the produced file, or "" for sinks that write to a stream.
type Sink interface {
	Name() string
	Write(report *results.Report) (string, error)
}

// formatDuration renders durations at a stable precision so reports from
// consecutive runs diff cleanly.
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func statusText(s types.SpecStatus) string {
	switch s {
	case types.SpecStatusPass:
		return "PASS"
	case types.SpecStatusFail:
		return "FAIL"
	case types.SpecStatusSkip:
		return "SKIP"
	}
	return string(s)
}

func failureText(r types.RunResult) string {
	if r.FailureDetail == nil {
		return ""
	}
	if r.FailureDetail.StepIndex < 0 {
		return r.FailureDetail.Cause
	}
	return fmt.Sprintf("step %d: %s", r.FailureDetail.StepIndex, r.FailureDetail.Cause)
}
