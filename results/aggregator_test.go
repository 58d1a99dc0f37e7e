package results

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webspec-dev/webspec/types"
)

var testMeta = Meta{RunID: "run-001", Target: "http://app.local", Browser: "chromium", Engine: "playwright"}

func TestRecordAndFinalize(t *testing.T) {
	agg, err := New(testMeta, []string{"login", "checkout", "search"})
	require.NoError(t, err)

	require.NoError(t, agg.Record(types.RunResult{SpecID: "checkout", Status: types.SpecStatusFail,
		FailureDetail: &types.FailureDetail{StepIndex: 2, Cause: "button not found"}}))
	require.NoError(t, agg.Record(types.RunResult{SpecID: "login", Status: types.SpecStatusPass, Duration: time.Second}))
	require.NoError(t, agg.Record(types.RunResult{SpecID: "search", Status: types.SpecStatusPass}))

	report, err := agg.Finalize()
	require.NoError(t, err)

	// Discovery order, not record order.
	ids := make([]string, 0, len(report.Results))
	for _, r := range report.Results {
		ids = append(ids, r.SpecID)
	}
	assert.Equal(t, []string{"login", "checkout", "search"}, ids)

	assert.Equal(t, types.SpecStatusFail, report.Status)
	assert.Equal(t, 3, report.Stats.Total)
	assert.Equal(t, 2, report.Stats.Passed)
	assert.Equal(t, 1, report.Stats.Failed)
	assert.Equal(t, testMeta, report.Meta)
}

func TestNew_DuplicateSpecIDs(t *testing.T) {
	_, err := New(testMeta, []string{"login", "login"})
	assert.Error(t, err)
}

func TestRecord_WriteOnce(t *testing.T) {
	agg, err := New(testMeta, []string{"login"})
	require.NoError(t, err)

	require.NoError(t, agg.Record(types.RunResult{SpecID: "login", Status: types.SpecStatusPass}))
	err = agg.Record(types.RunResult{SpecID: "login", Status: types.SpecStatusFail})

	var dup *types.DuplicateResultError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "login", dup.SpecID)
}

func TestRecord_UnknownSpec(t *testing.T) {
	agg, err := New(testMeta, []string{"login"})
	require.NoError(t, err)

	assert.Error(t, agg.Record(types.RunResult{SpecID: "ghost", Status: types.SpecStatusPass}))
}

func TestRecord_AfterFinalize(t *testing.T) {
	agg, err := New(testMeta, []string{"login"})
	require.NoError(t, err)

	_, err = agg.Finalize()
	require.NoError(t, err)

	assert.Error(t, agg.Record(types.RunResult{SpecID: "login", Status: types.SpecStatusPass}))
}

func TestFinalize_FillsUnrecordedAsSkipped(t *testing.T) {
	agg, err := New(testMeta, []string{"login", "checkout"})
	require.NoError(t, err)

	require.NoError(t, agg.Record(types.RunResult{SpecID: "login", Status: types.SpecStatusPass}))

	report, err := agg.Finalize()
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	checkout := report.Results[1]
	assert.Equal(t, "checkout", checkout.SpecID)
	assert.Equal(t, types.SpecStatusSkip, checkout.Status)
	require.NotNil(t, checkout.FailureDetail)
	assert.Equal(t, "run cancelled", checkout.FailureDetail.Cause)
}

func TestFinalize_Once(t *testing.T) {
	agg, err := New(testMeta, []string{"login"})
	require.NoError(t, err)

	_, err = agg.Finalize()
	require.NoError(t, err)
	_, err = agg.Finalize()
	assert.Error(t, err)
}

func TestFinalize_AllSkippedRun(t *testing.T) {
	agg, err := New(testMeta, []string{"a", "b"})
	require.NoError(t, err)

	report, err := agg.Finalize()
	require.NoError(t, err)
	assert.Equal(t, types.SpecStatusSkip, report.Status)
}

func TestFinalize_EmptyRunPasses(t *testing.T) {
	agg, err := New(testMeta, nil)
	require.NoError(t, err)

	report, err := agg.Finalize()
	require.NoError(t, err)
	assert.Equal(t, types.SpecStatusPass, report.Status)
	assert.Empty(t, report.Results)
}

func TestRecord_ConcurrentWorkers(t *testing.T) {
	const n = 50
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("spec-%03d", i)
	}
	agg, err := New(testMeta, ids)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = agg.Record(types.RunResult{SpecID: id, Status: types.SpecStatusPass})
		}(id)
	}
	wg.Wait()

	report, err := agg.Finalize()
	require.NoError(t, err)
	assert.Equal(t, n, report.Stats.Passed)
	for i, r := range report.Results {
		assert.Equal(t, ids[i], r.SpecID)
	}
}
