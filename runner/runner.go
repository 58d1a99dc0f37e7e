// Package runner discovers spec files and executes them against a live
// target through a browser backend. Specs run in a bounded worker pool;
// each spec gets a fresh, isolated browser session.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/webspec-dev/webspec/backend"
	"github.com/webspec-dev/webspec/fixtures"
	"github.com/webspec-dev/webspec/logging"
	"github.com/webspec-dev/webspec/metrics"
	"github.com/webspec-dev/webspec/pages"
	"github.com/webspec-dev/webspec/results"
	"github.com/webspec-dev/webspec/retry"
	"github.com/webspec-dev/webspec/types"
)

// Hook runs before or after a spec's steps, with the spec's session. Hooks
// replace ambient before/beforeEach globals; all state they need arrives
// through their arguments.
type Hook func(ctx context.Context, sess backend.Session) error

// Config contains runner configuration.
type Config struct {
	RunID        string
	SpecDir      string
	Tag          string
	BaseURL      string
	Browser      string
	Concurrency  int
	SpecTimeout  time.Duration
	HTTPTimeout  time.Duration
	DefaultRetry retry.Policy

	// Setup and Teardown, when set, run around every spec's steps in the
	// spec's own session. A Setup failure fails the spec before step 0.
	Setup    Hook
	Teardown Hook

	Log *zap.SugaredLogger
}

// Runner executes one batch of specs. Construct with NewRunner; a Runner is
// good for any number of Run calls (one per run ID would normally be used).
type Runner struct {
	config   Config
	backend  backend.Backend
	pages    *pages.Registry
	fixtures *fixtures.Store
	client   *APIClient
	runDir   *logging.RunDirectory
	log      *zap.SugaredLogger
	tracer   trace.Tracer
}

// NewRunner wires the runner's collaborators and validates configuration.
// runDir may be nil, in which case no logs or artifacts are written.
func NewRunner(cfg Config, be backend.Backend, reg *pages.Registry, store *fixtures.Store, runDir *logging.RunDirectory) (*Runner, error) {
	if cfg.SpecDir == "" {
		return nil, fmt.Errorf("spec directory is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if be == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if reg == nil || store == nil {
		return nil, fmt.Errorf("page registry and fixture store are required")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.SpecTimeout <= 0 {
		cfg.SpecTimeout = 5 * time.Minute
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop().Sugar()
	}
	return &Runner{
		config:   cfg,
		backend:  be,
		pages:    reg,
		fixtures: store,
		client:   NewAPIClient(cfg.BaseURL, cfg.HTTPTimeout),
		runDir:   runDir,
		log:      cfg.Log,
		tracer:   otel.Tracer("webspec/runner"),
	}, nil
}

// Run discovers specs, boots the backend and executes everything. Setup
// problems (unreachable target, backend boot failure, malformed inputs)
// return an error; spec failures do not, they are reported in the Report.
func (r *Runner) Run(ctx context.Context) (*results.Report, error) {
	ctx, span := r.tracer.Start(ctx, "run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", r.config.RunID),
		attribute.String("target", r.config.BaseURL),
	)

	specs, err := Discover(r.config.SpecDir, r.config.Tag)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(specs))
	for _, spec := range specs {
		ids = append(ids, spec.ID)
	}
	agg, err := results.New(results.Meta{
		RunID:   r.config.RunID,
		Target:  r.config.BaseURL,
		Browser: r.config.Browser,
		Engine:  r.backend.Name(),
	}, ids)
	if err != nil {
		return nil, err
	}

	if len(specs) == 0 {
		r.log.Warnw("no specs matched", "dir", r.config.SpecDir, "tag", r.config.Tag)
		return agg.Finalize()
	}

	if err := r.client.CheckReachable(ctx); err != nil {
		return nil, err
	}
	if err := r.backend.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting %s backend: %w", r.backend.Name(), err)
	}
	defer func() {
		if err := r.backend.Stop(); err != nil {
			r.log.Errorw("backend shutdown failed", "error", err)
		}
	}()

	r.log.Infow("starting run",
		"run_id", r.config.RunID,
		"specs", len(specs),
		"concurrency", r.config.Concurrency,
		"engine", r.backend.Name())

	if err := r.executeParallel(ctx, specs, agg); err != nil {
		return nil, err
	}

	report, err := agg.Finalize()
	if err != nil {
		return nil, err
	}
	metrics.RecordRun(r.config.BaseURL, r.config.RunID, string(report.Status),
		report.Stats.Total, report.Stats.Passed, report.Stats.Failed,
		report.Stats.EndTime.Sub(report.Stats.StartTime))
	return report, nil
}

// runSpec executes one spec in a fresh session and returns its result. It
// never returns an error; everything that can go wrong lands in the result.
func (r *Runner) runSpec(ctx context.Context, spec *types.Spec) types.RunResult {
	ctx, span := r.tracer.Start(ctx, "spec")
	defer span.End()
	span.SetAttributes(attribute.String("spec_id", spec.ID))

	start := time.Now()
	if ctx.Err() != nil {
		return skippedResult(spec.ID, start)
	}

	artifactDir := ""
	if r.runDir != nil {
		dir, err := r.runDir.SpecDir(spec.ID)
		if err != nil {
			r.log.Errorw("could not create spec directory", "spec", spec.ID, "error", err)
		} else {
			artifactDir = dir
		}
	}

	sess, err := r.backend.NewSession(ctx, artifactDir)
	if err != nil {
		span.RecordError(err)
		return failedResult(spec.ID, start, -1, fmt.Errorf("creating session: %w", err))
	}

	timeout := r.config.SpecTimeout
	if spec.Timeout > 0 {
		timeout = spec.Timeout
	}
	specCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	slog := newStepLogger()
	done := make(chan error, 1)
	go func() {
		if r.config.Setup != nil {
			if err := r.config.Setup(specCtx, sess); err != nil {
				done <- fmt.Errorf("spec setup: %w", err)
				return
			}
		}
		err := r.execSteps(specCtx, spec, sess, slog)
		if r.config.Teardown != nil {
			if terr := r.config.Teardown(specCtx, sess); terr != nil && err == nil {
				err = fmt.Errorf("spec teardown: %w", terr)
			}
		}
		done <- err
	}()

	var result types.RunResult
	select {
	case err := <-done:
		if err != nil && specCtx.Err() != nil && ctx.Err() == nil {
			// The deadline fired while the failing step was unwinding.
			result = failedResult(spec.ID, start, -1, &types.SpecTimeoutError{SpecID: spec.ID, Limit: timeout})
		} else {
			result = r.resultFor(ctx, spec, sess, start, err)
		}
		if closeErr := sess.Close(); closeErr != nil {
			r.log.Debugw("session close failed", "spec", spec.ID, "error", closeErr)
		}
	case <-specCtx.Done():
		if ctx.Err() != nil {
			result = skippedResult(spec.ID, start)
		} else {
			result = failedResult(spec.ID, start, -1, &types.SpecTimeoutError{SpecID: spec.ID, Limit: timeout})
		}
		// The step goroutine may still hold the session. Discard it in the
		// background rather than handing a possibly wedged session back.
		go func() {
			<-done
			_ = sess.Close()
		}()
	}

	if r.runDir != nil {
		if _, err := r.runDir.WriteSpecLog(spec.ID, slog.String()); err != nil {
			r.log.Errorw("could not write spec log", "spec", spec.ID, "error", err)
		}
	}
	if result.Status == types.SpecStatusFail {
		span.RecordError(errors.New(result.FailureDetail.Cause))
	}
	metrics.RecordSpec(r.config.BaseURL, r.config.RunID, spec.ID, result.Status)
	return result
}

// resultFor classifies the outcome of a completed step sequence and, on
// failure, captures a screenshot of the session's final state.
func (r *Runner) resultFor(ctx context.Context, spec *types.Spec, sess backend.Session, start time.Time, err error) types.RunResult {
	if err == nil {
		return types.RunResult{
			SpecID:   spec.ID,
			Status:   types.SpecStatusPass,
			Duration: time.Since(start),
		}
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return skippedResult(spec.ID, start)
	}

	stepIndex := -1
	var failure *types.StepFailure
	if errors.As(err, &failure) {
		stepIndex = failure.StepIndex
		err = failure.Cause
	}
	result := failedResult(spec.ID, start, stepIndex, err)

	// Failure evidence. Capture errors are logged, never override the
	// original failure.
	if shot, shotErr := sess.CaptureArtifact(ctx, backend.ArtifactScreenshot); shotErr != nil {
		r.log.Debugw("screenshot capture failed", "spec", spec.ID, "error", shotErr)
	} else {
		result.ArtifactRefs = append(result.ArtifactRefs, shot)
	}
	return result
}

func failedResult(specID string, start time.Time, stepIndex int, err error) types.RunResult {
	return types.RunResult{
		SpecID:   specID,
		Status:   types.SpecStatusFail,
		Duration: time.Since(start),
		FailureDetail: &types.FailureDetail{
			StepIndex: stepIndex,
			Cause:     err.Error(),
		},
	}
}

func skippedResult(specID string, start time.Time) types.RunResult {
	return types.RunResult{
		SpecID:   specID,
		Status:   types.SpecStatusSkip,
		Duration: time.Since(start),
		FailureDetail: &types.FailureDetail{
			StepIndex: -1,
			Cause:     (&types.CancelledError{}).Error(),
		},
	}
}
