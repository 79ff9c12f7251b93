package zipdelta

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/crdzbird/zipdelta/internal/bytesource"
)

// Job is one (old, new, out) triple for GenerateBatch.
type Job struct {
	Old bytesource.Source
	New bytesource.Source
	Out io.Writer

	// Label identifies the job in Result and in log lines; purely
	// diagnostic.
	Label string
}

// Result is one Job's outcome.
type Result struct {
	Label string
	Stats Stats
	Err   error
}

// GenerateBatch runs independent Generate calls concurrently, bounded by
// concurrency — the multiple-generations-at-once case spec.md §5
// explicitly sanctions ("implementations may run multiple generations
// concurrently as long as they share no mutable state other than the
// codec object pools"). Adapted from the teacher's BatchProcessor
// semaphore pattern (batch_processor.go): each job acquires a slot,
// calls Generate, and reports its own Result independently of the
// others' success or failure.
func GenerateBatch(ctx context.Context, jobs []Job, concurrency int, opts Options) []Result {
	if concurrency <= 0 {
		concurrency = 5 // default concurrency, matching the teacher's BatchProcessor
	}

	results := make([]Result, len(jobs))
	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, job := range jobs {
		wg.Add(1)
		go func(index int, j Job) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			stats, err := Generate(ctx, j.Old, j.New, j.Out, opts)
			if err != nil {
				err = fmt.Errorf("zipdelta: generate failed for %q: %w", j.Label, err)
			}
			results[index] = Result{Label: j.Label, Stats: stats, Err: err}
		}(i, job)
	}

	wg.Wait()
	return results
}
