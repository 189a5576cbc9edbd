package sweep

import (
	"context"
	"errors"
	"sync"

	"gocalib/domain/scoring"

	"golang.org/x/sync/semaphore"
)

// forEachCase runs fn for every case with bounded parallelism. Each case is
// weighted by its roster size so that large studies take more of the budget.
// Cases never share a roster. All errors are joined.
func forEachCase(ctx context.Context, cases []Case, capacity int, fn func(context.Context, Case) error) error {
	if capacity <= 0 {
		capacity = 1
	}
	sem := semaphore.NewWeighted(int64(capacity))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, c := range cases {
		weight := int64(len(c.Project.Experts))
		if weight < 1 {
			weight = 1
		}
		if weight > int64(capacity) {
			weight = int64(capacity)
		}
		if err := sem.Acquire(ctx, weight); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(weight)
			if err := fn(ctx, c); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// RunBatch sweeps every case and merges the tables. A failing case does not
// stop the others; its error is part of the joined result.
func (r *Runner) RunBatch(ctx context.Context, cases []Case, presets []scoring.Settings, user scoring.Settings, capacity int) (*Accumulator, error) {
	total := NewAccumulator()
	err := forEachCase(ctx, cases, capacity, func(ctx context.Context, c Case) error {
		acc, err := r.RunCase(ctx, c, presets, user)
		if err != nil {
			r.logger.Error("case %s failed: %v", c.Name, err)
			return err
		}
		total.Merge(acc)
		return nil
	})
	return total, err
}

// DumpBatch collects the per-expert dumps of every case
func (r *Runner) DumpBatch(ctx context.Context, cases []Case, global, globalOpt scoring.Settings, capacity int) (*Dumps, error) {
	total := NewDumps()
	err := forEachCase(ctx, cases, capacity, func(ctx context.Context, c Case) error {
		d, err := r.ExpertDumps(ctx, c, global, globalOpt)
		if err != nil {
			r.logger.Error("case %s failed: %v", c.Name, err)
			return err
		}
		total.Merge(d)
		return nil
	})
	return total, err
}
