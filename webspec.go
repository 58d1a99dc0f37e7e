// Package webspec wires the harness together: fixtures, page objects, a
// browser backend and the spec runner, plus periodic execution and report
// publication.
package webspec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"

	"github.com/webspec-dev/webspec/backend"
	"github.com/webspec-dev/webspec/backend/playwright"
	"github.com/webspec-dev/webspec/backend/rodcdp"
	"github.com/webspec-dev/webspec/exitcodes"
	"github.com/webspec-dev/webspec/fixtures"
	"github.com/webspec-dev/webspec/logging"
	"github.com/webspec-dev/webspec/pages"
	"github.com/webspec-dev/webspec/reporting"
	"github.com/webspec-dev/webspec/results"
	"github.com/webspec-dev/webspec/runner"
	"github.com/webspec-dev/webspec/types"
)

// Service runs spec batches against the configured target, once or on an
// interval.
type Service struct {
	ctx      context.Context
	config   *Config
	version  string
	fixtures *fixtures.Store
	pages    *pages.Registry
	report   *results.Report

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*Service, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debugw("creating webspec service",
		"specDir", config.SpecDir,
		"pageDir", config.PageDir,
		"fixtureDir", config.FixtureDir,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	store, err := fixtures.NewStore(fixtures.Config{
		Dir: config.FixtureDir,
		Log: config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load fixtures: %w", err)
	}

	registry, err := pages.NewRegistry(pages.Config{
		Dir:     config.PageDir,
		BaseURL: config.BaseURL,
		Log:     config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load page objects: %w", err)
	}

	return &Service{
		ctx:              ctx,
		config:           config,
		version:          version,
		fixtures:         store,
		pages:            registry,
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the specs, then either exits (run-once) or keeps running them
// at the configured interval.
func (s *Service) Start(ctx context.Context) error {
	defer func() {
		if r := recover(); r != nil {
			s.config.Log.Errorw("runtime error occurred", "error", r)
			os.Exit(exitcodes.SetupErr)
		}
	}()

	s.ctx = ctx
	s.done = make(chan struct{})
	s.running.Store(true)

	if s.config.RunOnce {
		s.config.Log.Info("starting webspec in run-once mode")
	} else {
		s.config.Log.Infow("starting webspec in continuous mode", "interval", s.config.RunInterval)
	}

	if err := s.runSpecs(); err != nil {
		s.config.Log.Errorw("runtime error running specs", "error", err)
		return cli.Exit(err.Error(), exitcodes.SetupErr)
	}

	if s.config.RunOnce {
		s.config.Log.Info("run completed, exiting (run-once mode)")

		if s.report != nil && s.report.Status == types.SpecStatusFail {
			return NewSpecFailureError(fmt.Sprintf("%d of %d specs failed",
				s.report.Stats.Failed, s.report.Stats.Total))
		}

		go func() {
			s.shutdownCallback(nil)
		}()
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.config.Log.Debugw("starting periodic runner goroutine", "interval", s.config.RunInterval)

		for {
			select {
			case <-time.After(s.config.RunInterval):
				if !s.running.Load() {
					return
				}
				s.config.Log.Info("running periodic specs")
				if err := s.runSpecs(); err != nil {
					s.config.Log.Errorw("error running periodic specs", "error", err)
				}

			case <-s.done:
				return

			case <-ctx.Done():
				s.running.Store(false)
				return
			}
		}
	}()
	s.config.Log.Debug("webspec started successfully")
	return nil
}

// newBackend creates the configured automation engine. A fresh engine per
// run keeps long-lived interval deployments from accumulating browser state.
func (s *Service) newBackend() (backend.Backend, error) {
	opts := backend.Options{
		Browser:        s.config.Browser,
		Headless:       s.config.Headless,
		DefaultTimeout: 10 * time.Second,
	}
	switch s.config.Engine {
	case backend.EngineRod:
		return rodcdp.New(opts, s.config.Log)
	default:
		return playwright.New(opts, s.config.Log), nil
	}
}

// runSpecs performs one full run and publishes the report.
func (s *Service) runSpecs() error {
	runID := uuid.New().String()

	runDir, err := logging.NewRunDirectory(s.config.LogDir, runID)
	if err != nil {
		return NewSetupError(err)
	}

	be, err := s.newBackend()
	if err != nil {
		return NewSetupError(err)
	}

	specRunner, err := runner.NewRunner(runner.Config{
		RunID:        runID,
		SpecDir:      s.config.SpecDir,
		Tag:          s.config.Tag,
		BaseURL:      s.config.BaseURL,
		Browser:      string(s.config.Browser),
		Concurrency:  s.config.Concurrency,
		SpecTimeout:  s.config.SpecTimeout,
		DefaultRetry: s.config.DefaultRetry,
		Log:          s.config.Log,
	}, be, s.pages, s.fixtures, runDir)
	if err != nil {
		return NewSetupError(err)
	}

	report, err := specRunner.Run(s.ctx)
	if err != nil {
		// Setup problems, not spec failures; those land in the report.
		return NewSetupError(err)
	}
	s.report = report

	rendered := s.printResultsTable(report)
	if _, err := runDir.WriteSummary("summary.txt", rendered); err != nil {
		s.config.Log.Errorw("could not write run summary", "error", err)
	}
	s.publishReport(runDir, report)
	s.config.Log.Infow("run completed", "run_id", runID, "status", report.Status)
	return nil
}

// publishReport writes every report format into the run directory.
func (s *Service) publishReport(runDir *logging.RunDirectory, report *results.Report) {
	sinks := []reporting.Sink{
		reporting.NewTextSummarySink(runDir.Path()),
		reporting.NewJSONSink(runDir.Path()),
	}
	if htmlSink, err := reporting.NewHTMLSink(runDir.Path()); err != nil {
		s.config.Log.Errorw("could not create html sink", "error", err)
	} else {
		sinks = append(sinks, htmlSink)
	}

	for _, sink := range sinks {
		path, err := sink.Write(report)
		if err != nil {
			s.config.Log.Errorw("could not write report", "sink", sink.Name(), "error", err)
			continue
		}
		s.config.Log.Infow("report written", "sink", sink.Name(), "path", path)
	}
}

// Stop stops the webspec service.
func (s *Service) Stop(ctx context.Context) error {
	s.config.Log.Info("stopping webspec")

	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)
	close(s.done)

	s.config.Log.Info("webspec stopped successfully")
	return nil
}

// Stopped returns true if the webspec service is stopped.
func (s *Service) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until all goroutines have terminated.
// This is useful in tests to ensure complete cleanup before moving on.
func (s *Service) WaitForShutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// printResultsTable prints the run's results to the console and returns the
// rendered table so it can also be written into the run directory.
func (s *Service) printResultsTable(report *results.Report) string {
	duration := report.Stats.EndTime.Sub(report.Stats.StartTime)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Spec Results (%s)", formatDuration(duration)))

	t.AppendHeader(table.Row{
		"Spec", "Duration", "Status", "Error", "Artifacts",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Spec", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, result := range report.Results {
		t.AppendRow(table.Row{
			result.SpecID,
			formatDuration(result.Duration),
			getResultString(result.Status),
			extractKeyErrorMessage(result.FailureDetail),
			strings.Join(result.ArtifactRefs, "\n"),
		})
	}

	switch report.Status {
	case types.SpecStatusPass:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case types.SpecStatusSkip:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		fmt.Sprintf("TOTAL %d (%d passed, %d failed, %d skipped)",
			report.Stats.Total, report.Stats.Passed, report.Stats.Failed, report.Stats.Skipped),
		formatDuration(duration),
		getResultString(report.Status),
		"",
		"",
	})

	return t.Render()
}

// extractKeyErrorMessage keeps failure causes short enough for the table.
func extractKeyErrorMessage(detail *types.FailureDetail) string {
	if detail == nil {
		return ""
	}
	msg := detail.Cause
	if idx := strings.Index(msg, "\n"); idx != -1 {
		msg = msg[:idx]
	}
	if len(msg) > 80 {
		msg = msg[:70] + "..."
	}
	if detail.StepIndex >= 0 {
		return fmt.Sprintf("step %d: %s", detail.StepIndex, msg)
	}
	return msg
}

// getResultString returns a short string representing the spec result
func getResultString(status types.SpecStatus) string {
	switch status {
	case types.SpecStatusPass:
		return "✓ pass"
	case types.SpecStatusSkip:
		return "- skip"
	default:
		return "✗ fail"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
