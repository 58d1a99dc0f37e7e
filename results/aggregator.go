// Package results collects per-spec outcomes into a single immutable run
// report. Results are write-once per spec ID, and the final report always
// covers every discovered spec in discovery order.
package results

import (
	"fmt"
	"sync"
	"time"

	"github.com/webspec-dev/webspec/types"
)

// Meta identifies one run of the harness.
type Meta struct {
	RunID   string `json:"runId"`
	Target  string `json:"target"`
	Browser string `json:"browser"`
	Engine  string `json:"engine"`
}

// Report is the finalized outcome of a run. Results follow spec discovery
// order so consecutive runs over the same spec set diff cleanly.
type Report struct {
	Meta    Meta             `json:"meta"`
	Status  types.SpecStatus `json:"status"`
	Stats   types.RunStats   `json:"stats"`
	Results []types.RunResult `json:"results"`
}

// Aggregator accumulates results during a run. Safe for concurrent Record
// calls from worker goroutines.
type Aggregator struct {
	meta      Meta
	mu        sync.Mutex
	order     []string
	known     map[string]struct{}
	results   map[string]*types.RunResult
	started   time.Time
	finalized bool
}

// New creates an aggregator for the given spec set. The order of specIDs is
// preserved into the final report.
func New(meta Meta, specIDs []string) (*Aggregator, error) {
	seen := make(map[string]struct{}, len(specIDs))
	for _, id := range specIDs {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate spec ID %q in run set", id)
		}
		seen[id] = struct{}{}
	}
	return &Aggregator{
		meta:    meta,
		order:   append([]string(nil), specIDs...),
		known:   seen,
		results: make(map[string]*types.RunResult, len(specIDs)),
		started: time.Now(),
	}, nil
}

// Record stores one spec result. Each spec ID accepts exactly one result;
// a second write returns DuplicateResultError.
func (a *Aggregator) Record(result types.RunResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return fmt.Errorf("cannot record result for %q after finalize", result.SpecID)
	}
	if _, known := a.known[result.SpecID]; !known {
		return fmt.Errorf("result for unknown spec %q", result.SpecID)
	}
	if _, exists := a.results[result.SpecID]; exists {
		return &types.DuplicateResultError{SpecID: result.SpecID}
	}
	a.results[result.SpecID] = &result
	return nil
}

// Finalize seals the aggregator and builds the report. Specs without a
// recorded result (queued behind a cancellation) are filled in as skipped.
// Finalize may be called only once.
func (a *Aggregator) Finalize() (*Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return nil, fmt.Errorf("run already finalized")
	}
	a.finalized = true

	report := &Report{
		Meta:    a.meta,
		Results: make([]types.RunResult, 0, len(a.order)),
	}
	report.Stats.StartTime = a.started
	report.Stats.EndTime = time.Now()

	cancelled := (&types.CancelledError{}).Error()
	for _, id := range a.order {
		result, ok := a.results[id]
		if !ok {
			result = &types.RunResult{
				SpecID:        id,
				Status:        types.SpecStatusSkip,
				FailureDetail: &types.FailureDetail{StepIndex: -1, Cause: cancelled},
			}
		}
		report.Stats.Record(result.Status)
		report.Results = append(report.Results, *result)
	}
	report.Status = report.Stats.OverallStatus()
	return report, nil
}
