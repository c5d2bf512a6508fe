package matcher

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Dcavise/SEEK-sub000/internal/debug"
)

// BatchOptions controls a batch resolution run
type BatchOptions struct {
	// Workers is the resolution worker count; 0 means one per CPU
	Workers int
	// Spatial selects the spatial tier instead of the textual pipeline.
	// The two are never blended within one run.
	Spatial bool
	Debug   bool
}

// BatchRunStats aggregates counters for one batch run. Read-only once the
// run completes.
type BatchRunStats struct {
	RunID              string
	Total              int
	Matched            int
	Unmatched          int
	TierCounts         map[Tier]int
	AverageConfidence  float64 // over matched results only
	ManualReviewCount  int
	DuplicateAddresses int
	Duration           time.Duration
}

// RunBatch builds the candidate index once and resolves every source record
// against it. Resolution is fanned out across workers; results come back in
// input order regardless of scheduling. Cancellation is cooperative: records
// already resolved are returned along with ctx.Err().
func (r *Resolver) RunBatch(ctx context.Context, sources []SourceRecord, canonical []CanonicalRecord, opts BatchOptions) ([]MatchResult, *BatchRunStats, error) {
	start := time.Now()
	defer debug.DebugTiming(opts.Debug, "batch run")()
	debug.DebugOutput(opts.Debug, "Batch run: %d sources against %d canonical records", len(sources), len(canonical))

	buildDone := debug.DebugTiming(opts.Debug, "index build")
	idx := BuildIndex(canonical)
	buildDone()
	debug.DebugOutput(opts.Debug, "Index built: %d records, %d duplicate addresses", idx.Size(), idx.DuplicateAddresses)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(sources) && len(sources) > 0 {
		workers = len(sources)
	}

	results := make([]MatchResult, len(sources))
	resolved := make([]bool, len(sources))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if opts.Spatial {
					results[i] = r.ResolveSpatial(sources[i], idx)
				} else {
					results[i] = r.Resolve(sources[i], idx)
				}
				resolved[i] = true
			}
		}()
	}

	var runErr error
dispatch:
	for i := range sources {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	// keep partial results in input order on cancellation
	out := results
	if runErr != nil {
		out = make([]MatchResult, 0, len(results))
		for i, ok := range resolved {
			if ok {
				out = append(out, results[i])
			}
		}
		debug.DebugOutput(opts.Debug, "Batch cancelled after %d of %d records", len(out), len(sources))
	}

	stats := computeStats(out, idx.DuplicateAddresses, time.Since(start))
	debug.DebugOutput(opts.Debug, "Batch complete: %d matched of %d (%.1f avg confidence, %d need review)",
		stats.Matched, stats.Total, stats.AverageConfidence, stats.ManualReviewCount)

	return out, stats, runErr
}

func computeStats(results []MatchResult, duplicates int, elapsed time.Duration) *BatchRunStats {
	stats := &BatchRunStats{
		RunID:              uuid.NewString(),
		Total:              len(results),
		TierCounts:         make(map[Tier]int),
		DuplicateAddresses: duplicates,
		Duration:           elapsed,
	}

	var confidenceSum float64
	for _, res := range results {
		stats.TierCounts[res.Tier]++
		if res.Matched() {
			stats.Matched++
			confidenceSum += res.Confidence
		} else {
			stats.Unmatched++
		}
		if res.RequiresManualReview {
			stats.ManualReviewCount++
		}
	}

	if stats.Matched > 0 {
		stats.AverageConfidence = confidenceSum / float64(stats.Matched)
	}

	return stats
}
