package runner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/webspec-dev/webspec/backend"
	"github.com/webspec-dev/webspec/retry"
	"github.com/webspec-dev/webspec/types"
)

// stepLogger accumulates a spec's execution log, later written into the run
// directory. A timed-out spec's log is read while the step goroutine is
// still unwinding, so access is guarded.
type stepLogger struct {
	mu    sync.Mutex
	b     strings.Builder
	start time.Time
}

func newStepLogger() *stepLogger {
	return &stepLogger{start: time.Now()}
}

func (l *stepLogger) logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(&l.b, "[%8s] ", time.Since(l.start).Round(time.Millisecond))
	fmt.Fprintf(&l.b, format, args...)
	l.b.WriteByte('\n')
}

func (l *stepLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

// execSteps runs a spec's steps in order against one session. The first
// failing step stops the spec; the returned StepFailure names it.
func (r *Runner) execSteps(ctx context.Context, spec *types.Spec, sess backend.Session, slog *stepLogger) error {
	for i, step := range spec.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch step.Kind {
		case types.StepKindUI:
			slog.logf("step %d: ui %s.%s", i, step.UI.Page, step.UI.Action)
			err = r.execUIStep(ctx, sess, step.UI)
		case types.StepKindAPI:
			slog.logf("step %d: api %s %s", i, step.API.Method, step.API.URL)
			err = r.execAPIStep(ctx, step.API)
		case types.StepKindAssert:
			slog.logf("step %d: assert %s %q", i, step.Assert.Matcher, step.Assert.Expected)
			err = r.execAssertStep(ctx, sess, step.Assert)
		default:
			err = fmt.Errorf("unknown step kind %q", step.Kind)
		}
		if err != nil {
			slog.logf("step %d: FAIL: %v", i, err)
			return &types.StepFailure{SpecID: spec.ID, StepIndex: i, Cause: err}
		}
		slog.logf("step %d: ok", i)
	}
	return nil
}

// resolveArgs dereferences fixture references in step arguments. The input
// map is never mutated; specs stay reusable across runs.
func (r *Runner) resolveArgs(args map[string]string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(args))
	for k, v := range args {
		resolved, err := r.fixtures.Resolve(v)
		if err != nil {
			return nil, err
		}
		out[k] = resolved
	}
	return out, nil
}

func (r *Runner) execUIStep(ctx context.Context, sess backend.Session, step *types.UIStep) error {
	page, err := r.pages.Get(step.Page)
	if err != nil {
		return err
	}
	args, err := r.resolveArgs(step.Args)
	if err != nil {
		return err
	}
	_, err = page.Perform(ctx, sess, step.Action, args)
	return err
}

func (r *Runner) execAPIStep(ctx context.Context, step *types.APIStep) error {
	body, err := r.fixtures.Resolve(step.Body)
	if err != nil {
		return err
	}
	status, _, err := r.client.Do(ctx, step.Method, step.URL, step.Headers, body)
	if err != nil {
		return err
	}
	if step.ExpectStatus != 0 && status != step.ExpectStatus {
		return fmt.Errorf("%s %s returned status %d, expected %d", step.Method, step.URL, status, step.ExpectStatus)
	}
	return nil
}

// execAssertStep polls the assertion's source through the retry engine until
// the matcher holds or the policy budget runs out.
func (r *Runner) execAssertStep(ctx context.Context, sess backend.Session, step *types.AssertStep) error {
	expected, err := r.fixtures.Resolve(step.Expected)
	if err != nil {
		return err
	}

	var probe retry.Probe
	if step.Source.IsUI() {
		if step.Matcher == types.MatcherStatus {
			return fmt.Errorf("matcher %q requires an http source", types.MatcherStatus)
		}
		// Unknown pages and unresolvable arguments cannot heal by waiting.
		page, err := r.pages.Get(step.Source.Page)
		if err != nil {
			return err
		}
		args, err := r.resolveArgs(step.Source.Args)
		if err != nil {
			return err
		}
		action := step.Source.Action
		probe = func() (any, error) {
			actual, err := page.Perform(ctx, sess, action, args)
			if err != nil {
				return nil, classifyProbeError(err)
			}
			return actual, matchValue(step.Matcher, actual, expected)
		}
	} else {
		source := step.Source
		probe = func() (any, error) {
			status, body, err := r.client.Do(ctx, source.Method, source.URL, nil, "")
			if err != nil {
				return nil, err
			}
			actual := body
			if step.Matcher == types.MatcherStatus {
				actual = strconv.Itoa(status)
			}
			return actual, matchValue(step.Matcher, actual, expected)
		}
	}

	policy := r.retryPolicy(step.Retry)
	_, _, err = retry.Await(ctx, policy, probe)
	return err
}

func (r *Runner) retryPolicy(override *types.RetryConfig) retry.Policy {
	policy := r.config.DefaultRetry
	if override != nil {
		if override.Timeout > 0 {
			policy.Timeout = override.Timeout
		}
		if override.Interval > 0 {
			policy.Interval = override.Interval
		}
		if override.BackoffFactor >= 1 {
			policy.BackoffFactor = override.BackoffFactor
		}
	}
	return policy
}

// classifyProbeError separates conditions polling can fix from ones it
// cannot. Missing elements are transient; a missing locator alias or action
// is a defect in the page object and aborts the wait.
func classifyProbeError(err error) error {
	var notFound *backend.ElementNotFoundError
	if errors.As(err, &notFound) {
		return err
	}
	var missing *types.NotFoundError
	if errors.As(err, &missing) {
		return retry.Terminal(err)
	}
	var failure *types.ActionFailure
	if errors.As(err, &failure) && strings.Contains(failure.Cause.Error(), "has no action") {
		return retry.Terminal(err)
	}
	return err
}

// matchValue evaluates one matcher. A mismatch is an ordinary (retryable)
// error carrying both sides for the timeout diagnostics.
func matchValue(matcher, actual, expected string) error {
	switch matcher {
	case types.MatcherEquals:
		if actual == expected {
			return nil
		}
		return fmt.Errorf("expected %q, got %q", expected, actual)
	case types.MatcherContains:
		if strings.Contains(actual, expected) {
			return nil
		}
		return fmt.Errorf("expected value containing %q, got %q", expected, actual)
	case types.MatcherStatus:
		if actual == expected {
			return nil
		}
		return fmt.Errorf("expected status %s, got %s", expected, actual)
	}
	return retry.Terminal(fmt.Errorf("unknown matcher %q", matcher))
}
