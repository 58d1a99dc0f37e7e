package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/webspec-dev/webspec/results"
)

// JSONSink writes the run report as machine-readable JSON for CI consumers.
type JSONSink struct {
	dir string
}

// NewJSONSink creates a JSON sink writing into dir.
func NewJSONSink(dir string) *JSONSink {
	return &JSONSink{dir: dir}
}

func (s *JSONSink) Name() string { return "json" }

func (s *JSONSink) Write(report *results.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	path := filepath.Join(s.dir, "results.json")
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("writing json report: %w", err)
	}
	return path, nil
}
