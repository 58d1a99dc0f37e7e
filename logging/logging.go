// Package logging provides the harness logger and the per-run artifact
// directory layout. Each run gets its own directory keyed by run ID, with a
// "latest" symlink pointing at the most recent run.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/acarl005/stripansi"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Levels follow zap's names
// (debug, info, warn, error).
func NewLogger(level string) (*zap.SugaredLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// RunDirectory owns the filesystem layout of one run:
//
//	<base>/runs/<runID>/
//	<base>/runs/<runID>/specs/<specID>/   per-spec logs and artifacts
//	<base>/runs/latest -> <runID>
type RunDirectory struct {
	baseDir string
	runID   string
}

// NewRunDirectory creates the directory tree for a run and repoints the
// "latest" symlink.
func NewRunDirectory(baseDir, runID string) (*RunDirectory, error) {
	if baseDir == "" || runID == "" {
		return nil, fmt.Errorf("run directory needs a base dir and run ID")
	}
	d := &RunDirectory{baseDir: baseDir, runID: runID}
	if err := os.MkdirAll(d.Path(), 0755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	if err := d.updateLatestSymlink(); err != nil {
		return nil, err
	}
	return d, nil
}

// Path is the root of this run's directory.
func (d *RunDirectory) Path() string {
	return filepath.Join(d.baseDir, "runs", d.runID)
}

// RunID returns the run identifier this directory belongs to.
func (d *RunDirectory) RunID() string { return d.runID }

// SpecDir returns (and creates) the directory for one spec's logs and
// artifacts.
func (d *RunDirectory) SpecDir(specID string) (string, error) {
	dir := filepath.Join(d.Path(), "specs", sanitize(specID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating spec directory: %w", err)
	}
	return dir, nil
}

// WriteSpecLog writes a spec's execution log. ANSI escape sequences are
// stripped so the files stay grep-friendly.
func (d *RunDirectory) WriteSpecLog(specID, content string) (string, error) {
	dir, err := d.SpecDir(specID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "spec.log")
	if err := os.WriteFile(path, []byte(stripansi.Strip(content)), 0644); err != nil {
		return "", fmt.Errorf("writing spec log: %w", err)
	}
	return path, nil
}

// WriteSummary writes a run-level file such as the rendered report.
func (d *RunDirectory) WriteSummary(name, content string) (string, error) {
	path := filepath.Join(d.Path(), name)
	if err := os.WriteFile(path, []byte(stripansi.Strip(content)), 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return path, nil
}

func (d *RunDirectory) updateLatestSymlink() error {
	link := filepath.Join(d.baseDir, "runs", "latest")
	_ = os.Remove(link)
	if err := os.Symlink(d.runID, link); err != nil {
		return fmt.Errorf("updating latest symlink: %w", err)
	}
	return nil
}

// sanitize keeps spec IDs usable as directory names.
func sanitize(id string) string {
	out := []rune(id)
	for i, r := range out {
		switch r {
		case '/', '\\', ':', ' ':
			out[i] = '_'
		}
	}
	return string(out)
}
