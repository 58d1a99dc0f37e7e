package runner

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/webspec-dev/webspec/backend"
	"github.com/webspec-dev/webspec/fixtures"
	"github.com/webspec-dev/webspec/logging"
	"github.com/webspec-dev/webspec/pages"
	"github.com/webspec-dev/webspec/results"
	"github.com/webspec-dev/webspec/retry"
	"github.com/webspec-dev/webspec/types"
)

// fakeBackend hands out in-memory sessions. Each session carries its own
// value store, so page actions in one spec can observe each other while
// specs stay isolated.
type fakeBackend struct {
	mu       sync.Mutex
	started  bool
	stopped  bool
	sessions int
	startErr error
}

type fakeSession struct {
	be     *fakeBackend
	mu     sync.Mutex
	values map[string]string
	closed bool
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.startErr != nil {
		return b.startErr
	}
	b.started = true
	return nil
}

func (b *fakeBackend) NewSession(ctx context.Context, artifactDir string) (backend.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions++
	return &fakeSession{be: b, values: map[string]string{}}, nil
}

func (b *fakeBackend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	return nil
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error { return nil }

func (s *fakeSession) Resolve(ctx context.Context, locator string) (backend.ElementHandle, error) {
	return locator, nil
}

func (s *fakeSession) Interact(ctx context.Context, el backend.ElementHandle, action string, args map[string]string) error {
	return nil
}

func (s *fakeSession) Text(ctx context.Context, el backend.ElementHandle) (string, error) {
	return "", nil
}

func (s *fakeSession) CurrentURL() string { return "" }

func (s *fakeSession) CaptureArtifact(ctx context.Context, kind backend.ArtifactKind) (string, error) {
	return "artifacts/" + string(kind) + ".png", nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *fakeSession) get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// testPage builds a page object whose actions operate on the fake session's
// value store.
func testPage() *pages.Page {
	return pages.NewPage("home", "/", nil, map[string]pages.ActionFunc{
		"open": func(ctx context.Context, sess backend.Session, args map[string]string) (string, error) {
			return "", nil
		},
		"set_title": func(ctx context.Context, sess backend.Session, args map[string]string) (string, error) {
			sess.(*fakeSession).set("title", args["value"])
			return "", nil
		},
		"title": func(ctx context.Context, sess backend.Session, args map[string]string) (string, error) {
			return sess.(*fakeSession).get("title"), nil
		},
		"explode": func(ctx context.Context, sess backend.Session, args map[string]string) (string, error) {
			return "", fmt.Errorf("element detached")
		},
		"stall": func(ctx context.Context, sess backend.Session, args map[string]string) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(2 * time.Second):
				return "", nil
			}
		},
	})
}

type testHarness struct {
	runner  *Runner
	backend *fakeBackend
	server  *httptest.Server
	specDir string
}

func newTestHarness(t *testing.T, concurrency int) *testHarness {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/msg", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "hello from target")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	specDir := t.TempDir()
	fixDir := t.TempDir()

	store, err := fixtures.NewStore(fixtures.Config{Dir: fixDir})
	require.NoError(t, err)

	reg, err := pages.NewRegistry(pages.Config{BaseURL: server.URL})
	require.NoError(t, err)
	require.NoError(t, reg.Register(testPage()))

	be := &fakeBackend{}
	r, err := NewRunner(Config{
		RunID:       "test-run",
		SpecDir:     specDir,
		BaseURL:     server.URL,
		Browser:     "chromium",
		Concurrency: concurrency,
		SpecTimeout: 10 * time.Second,
		DefaultRetry: retry.Policy{
			Timeout:       200 * time.Millisecond,
			Interval:      20 * time.Millisecond,
			BackoffFactor: 1.5,
		},
		Log: zap.NewNop().Sugar(),
	}, be, reg, store, nil)
	require.NoError(t, err)

	return &testHarness{runner: r, backend: be, server: server, specDir: specDir}
}

func TestRun_PassFailMix(t *testing.T) {
	h := newTestHarness(t, 2)

	writeSpecFile(t, h.specDir, "a_pass.spec.yaml", `
id: set and check title
steps:
  - ui:
      page: home
      action: set_title
      args: {value: welcome}
  - assert:
      source: {page: home, action: title}
      matcher: equals
      expected: welcome
`)
	writeSpecFile(t, h.specDir, "b_fail.spec.yaml", `
id: title never matches
steps:
  - assert:
      source: {page: home, action: title}
      matcher: equals
      expected: never
`)

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.SpecStatusFail, report.Status)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "set and check title", report.Results[0].SpecID)
	assert.Equal(t, types.SpecStatusPass, report.Results[0].Status)

	failed := report.Results[1]
	assert.Equal(t, types.SpecStatusFail, failed.Status)
	require.NotNil(t, failed.FailureDetail)
	assert.Equal(t, 0, failed.FailureDetail.StepIndex)
	assert.Contains(t, failed.FailureDetail.Cause, "condition not met")
	assert.NotEmpty(t, failed.ArtifactRefs)

	assert.True(t, h.backend.started)
	assert.True(t, h.backend.stopped)
	assert.Equal(t, 2, h.backend.sessions)
}

func TestRun_FailFastWithinSpec(t *testing.T) {
	h := newTestHarness(t, 1)

	writeSpecFile(t, h.specDir, "a.spec.yaml", `
id: stops at first failure
steps:
  - ui: {page: home, action: explode}
  - ui: {page: home, action: set_title, args: {value: unreachable}}
`)

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	result := report.Results[0]
	assert.Equal(t, types.SpecStatusFail, result.Status)
	assert.Equal(t, 0, result.FailureDetail.StepIndex)
	assert.Contains(t, result.FailureDetail.Cause, "element detached")
}

func TestRun_APISteps(t *testing.T) {
	h := newTestHarness(t, 1)

	writeSpecFile(t, h.specDir, "api.spec.yaml", `
id: api roundtrip
steps:
  - api:
      method: GET
      url: /health
      expectStatus: 200
  - assert:
      source: {method: GET, url: /msg}
      matcher: contains
      expected: hello
  - assert:
      source: {method: GET, url: /health}
      matcher: status
      expected: "200"
`)

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.SpecStatusPass, report.Status)
}

func TestRun_APIStatusMismatch(t *testing.T) {
	h := newTestHarness(t, 1)

	writeSpecFile(t, h.specDir, "api.spec.yaml", `
id: wrong status
steps:
  - api:
      method: GET
      url: /missing
      expectStatus: 200
`)

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	result := report.Results[0]
	assert.Equal(t, types.SpecStatusFail, result.Status)
	assert.Contains(t, result.FailureDetail.Cause, "404")
}

func TestRun_UnknownPageIsTerminal(t *testing.T) {
	h := newTestHarness(t, 1)

	writeSpecFile(t, h.specDir, "ghost.spec.yaml", `
id: unknown page
steps:
  - assert:
      source: {page: ghost, action: title}
      matcher: equals
      expected: anything
`)

	start := time.Now()
	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	result := report.Results[0]
	assert.Equal(t, types.SpecStatusFail, result.Status)
	assert.Contains(t, result.FailureDetail.Cause, "unknown page object")
	// Terminal failures never wait out the retry budget.
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRun_SpecTimeout(t *testing.T) {
	h := newTestHarness(t, 1)

	writeSpecFile(t, h.specDir, "slow.spec.yaml", `
id: slow spec
timeout: 100ms
steps:
  - ui: {page: home, action: stall}
`)

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	result := report.Results[0]
	assert.Equal(t, types.SpecStatusFail, result.Status)
	assert.Contains(t, result.FailureDetail.Cause, "exceeded timeout")
}

func TestRun_SpecTimeoutWritesLog(t *testing.T) {
	h := newTestHarness(t, 1)

	runDir, err := logging.NewRunDirectory(t.TempDir(), "test-run")
	require.NoError(t, err)
	h.runner.runDir = runDir

	// The stalled step is still unwinding when the timed-out spec's log is
	// written; the log must come out intact.
	writeSpecFile(t, h.specDir, "slow.spec.yaml", `
id: slow spec
timeout: 50ms
steps:
  - ui: {page: home, action: stall}
`)

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	result := report.Results[0]
	assert.Equal(t, types.SpecStatusFail, result.Status)
	assert.Contains(t, result.FailureDetail.Cause, "exceeded timeout")

	specDir, err := runDir.SpecDir("slow spec")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(specDir, "spec.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "step 0: ui home.stall")
}

func TestRun_Cancellation(t *testing.T) {
	h := newTestHarness(t, 1)

	for i := 0; i < 4; i++ {
		writeSpecFile(t, h.specDir, fmt.Sprintf("s%d.spec.yaml", i), fmt.Sprintf(`
id: spec %d
steps:
  - ui: {page: home, action: stall}
`, i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	report, err := h.runner.Run(ctx)
	require.NoError(t, err)

	// Every discovered spec appears in the report even though the run was
	// cancelled; none of them completed, so all are skipped.
	require.Len(t, report.Results, 4)
	for _, r := range report.Results {
		assert.Equal(t, types.SpecStatusSkip, r.Status, "spec %s", r.SpecID)
		require.NotNil(t, r.FailureDetail)
		assert.Equal(t, "run cancelled", r.FailureDetail.Cause)
	}
	assert.Equal(t, types.SpecStatusSkip, report.Status)
}

func TestRun_UnreachableTarget(t *testing.T) {
	h := newTestHarness(t, 1)
	writeSpecFile(t, h.specDir, "a.spec.yaml", "id: alpha\nsteps:\n  - ui: {page: home, action: open}\n")
	h.server.Close()

	_, err := h.runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reachable")
	assert.False(t, h.backend.started)
}

func TestRun_BackendBootFailure(t *testing.T) {
	h := newTestHarness(t, 1)
	writeSpecFile(t, h.specDir, "a.spec.yaml", "id: alpha\nsteps:\n  - ui: {page: home, action: open}\n")
	h.backend.startErr = fmt.Errorf("no chromium installed")

	_, err := h.runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no chromium installed")
}

func TestRun_EmptySpecSet(t *testing.T) {
	h := newTestHarness(t, 1)

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.SpecStatusPass, report.Status)
	assert.Empty(t, report.Results)
	assert.False(t, h.backend.started)
}

func TestRun_FixtureResolution(t *testing.T) {
	h := newTestHarness(t, 1)

	fixDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(fixDir, "users.yaml"), []byte("admin:\n  name: Jo Admin\n"), 0644))
	store, err := fixtures.NewStore(fixtures.Config{Dir: fixDir})
	require.NoError(t, err)
	h.runner.fixtures = store

	writeSpecFile(t, h.specDir, "fix.spec.yaml", `
id: fixture driven
steps:
  - ui:
      page: home
      action: set_title
      args: {value: "fixture:admin.name"}
  - assert:
      source: {page: home, action: title}
      matcher: equals
      expected: "fixture:admin.name"
`)

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.SpecStatusPass, report.Status)
}

func TestExecuteParallel_DuplicateRecordIsFatal(t *testing.T) {
	h := newTestHarness(t, 1)

	spec, err := types.ParseSpec([]byte("id: alpha\nsteps:\n  - ui: {page: home, action: open}\n"))
	require.NoError(t, err)

	agg, err := results.New(results.Meta{RunID: "test-run"}, []string{"alpha"})
	require.NoError(t, err)
	require.NoError(t, agg.Record(types.RunResult{SpecID: "alpha", Status: types.SpecStatusPass}))

	err = h.runner.executeParallel(context.Background(), []*types.Spec{spec}, agg)
	var dup *types.DuplicateResultError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "alpha", dup.SpecID)
}

func TestRun_SetupAndTeardownHooks(t *testing.T) {
	h := newTestHarness(t, 1)

	var mu sync.Mutex
	var calls []string
	h.runner.config.Setup = func(ctx context.Context, sess backend.Session) error {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, "setup")
		sess.(*fakeSession).set("title", "seeded")
		return nil
	}
	h.runner.config.Teardown = func(ctx context.Context, sess backend.Session) error {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, "teardown")
		return nil
	}

	writeSpecFile(t, h.specDir, "a.spec.yaml", `
id: sees seeded state
steps:
  - assert:
      source: {page: home, action: title}
      matcher: equals
      expected: seeded
`)

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.SpecStatusPass, report.Status)
	mu.Lock()
	assert.Equal(t, []string{"setup", "teardown"}, calls)
	mu.Unlock()
}

func TestRun_SetupFailureFailsSpec(t *testing.T) {
	h := newTestHarness(t, 1)
	h.runner.config.Setup = func(ctx context.Context, sess backend.Session) error {
		return fmt.Errorf("seed data missing")
	}

	writeSpecFile(t, h.specDir, "a.spec.yaml", "id: alpha\nsteps:\n  - ui: {page: home, action: open}\n")

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	result := report.Results[0]
	assert.Equal(t, types.SpecStatusFail, result.Status)
	assert.Equal(t, -1, result.FailureDetail.StepIndex)
	assert.Contains(t, result.FailureDetail.Cause, "seed data missing")
}

func TestRun_RetryEventuallyPasses(t *testing.T) {
	h := newTestHarness(t, 1)

	// The probe's source settles after a couple of attempts.
	var mu sync.Mutex
	attempts := 0
	flaky := pages.NewPage("flaky", "/", nil, map[string]pages.ActionFunc{
		"value": func(ctx context.Context, sess backend.Session, args map[string]string) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts < 3 {
				return "not yet", nil
			}
			return "ready", nil
		},
	})
	require.NoError(t, h.runner.pages.Register(flaky))

	writeSpecFile(t, h.specDir, "flaky.spec.yaml", `
id: flaky settles
steps:
  - assert:
      source: {page: flaky, action: value}
      matcher: equals
      expected: ready
`)

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.SpecStatusPass, report.Status)
	mu.Lock()
	assert.GreaterOrEqual(t, attempts, 3)
	mu.Unlock()
}
