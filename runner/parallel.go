package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/webspec-dev/webspec/results"
	"github.com/webspec-dev/webspec/types"
)

// specWork is one unit of work for the pool.
type specWork struct {
	spec *types.Spec
}

// specWorkResult carries a finished spec's result back to the collector.
type specWorkResult struct {
	spec   *types.Spec
	result types.RunResult
}

// executeParallel runs specs through a bounded worker pool and records every
// result into the aggregator. Cancellation stops the feed; specs that never
// reached a worker stay unrecorded and are filled in at Finalize. A Record
// failure is an invariant violation and fails the run after the pool drains.
func (r *Runner) executeParallel(ctx context.Context, specs []*types.Spec, agg *results.Aggregator) error {
	// Conservative buffering; spec counts can be large but sessions are the
	// real bottleneck.
	bufferSize := min(r.config.Concurrency*2, 100)
	workChan := make(chan specWork, bufferSize)
	resultChan := make(chan specWorkResult, bufferSize)

	var wg sync.WaitGroup
	for i := 0; i < r.config.Concurrency; i++ {
		wg.Add(1)
		go r.worker(ctx, &wg, workChan, resultChan)
	}

	go func() {
		defer close(workChan)
		for _, spec := range specs {
			select {
			case workChan <- specWork{spec: spec}:
			case <-ctx.Done():
				r.log.Debugw("run cancelled while queueing specs")
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var recordErr error
	for workResult := range resultChan {
		if err := agg.Record(workResult.result); err != nil {
			r.log.Errorw("could not record result",
				"spec", workResult.spec.ID, "error", err)
			if recordErr == nil {
				recordErr = fmt.Errorf("recording result for %s: %w", workResult.spec.ID, err)
			}
		}
	}
	return recordErr
}

// worker processes specs until the work channel closes or the run is
// cancelled. The spec currently executing is allowed to finish its step; its
// result is still sent so the aggregator sees it.
func (r *Runner) worker(ctx context.Context, wg *sync.WaitGroup, workChan <-chan specWork, resultChan chan<- specWorkResult) {
	defer wg.Done()

	for {
		select {
		case work, ok := <-workChan:
			if !ok {
				return
			}
			result := r.runSpec(ctx, work.spec)
			// The result is always delivered, even under cancellation; the
			// channel is drained by the collector until all workers exit.
			resultChan <- specWorkResult{spec: work.spec, result: result}
		case <-ctx.Done():
			return
		}
	}
}
