package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/webspec-dev/webspec/results"
	"github.com/webspec-dev/webspec/types"
)

// TextSummarySink writes a plain-text summary of the run, one line per spec
// in discovery order.
type TextSummarySink struct {
	dir string
}

// NewTextSummarySink creates a text sink writing into dir.
func NewTextSummarySink(dir string) *TextSummarySink {
	return &TextSummarySink{dir: dir}
}

func (s *TextSummarySink) Name() string { return "text" }

func (s *TextSummarySink) Write(report *results.Report) (string, error) {
	content := RenderText(report)

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	path := filepath.Join(s.dir, "results.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("writing text summary: %w", err)
	}
	return path, nil
}

// RenderText produces the text summary. Exposed so the console output and
// the file share one renderer.
func RenderText(report *results.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run:      %s\n", report.Meta.RunID)
	fmt.Fprintf(&b, "Target:   %s\n", report.Meta.Target)
	fmt.Fprintf(&b, "Browser:  %s (%s)\n", report.Meta.Browser, report.Meta.Engine)
	fmt.Fprintf(&b, "Status:   %s\n", statusText(report.Status))
	fmt.Fprintf(&b, "Duration: %s\n", formatDuration(report.Stats.EndTime.Sub(report.Stats.StartTime)))
	fmt.Fprintf(&b, "Specs:    %d total, %d passed, %d failed, %d skipped\n",
		report.Stats.Total, report.Stats.Passed, report.Stats.Failed, report.Stats.Skipped)
	b.WriteString("\n")

	for _, r := range report.Results {
		fmt.Fprintf(&b, "%-4s %-40s %8s", statusText(r.Status), r.SpecID, formatDuration(r.Duration))
		if detail := failureText(r); detail != "" {
			fmt.Fprintf(&b, "  %s", detail)
		}
		b.WriteString("\n")
	}

	if report.Stats.Failed > 0 {
		b.WriteString("\nFailed specs:\n")
		for _, r := range report.Results {
			if r.Status == types.SpecStatusFail {
				fmt.Fprintf(&b, "  - %s\n", r.SpecID)
			}
		}
	}
	return b.String()
}
