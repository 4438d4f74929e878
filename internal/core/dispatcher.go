package core

import (
	"context"
	"sync"
	"time"

	"github.com/tanuj-rai/matrixci/internal/config"
)

// DefaultMaxParallel is the per-category concurrency cap used when a
// category has no entry in the caps table.
const DefaultMaxParallel = 2

// OutputSink persists a finished job's output and hands back where it
// went. The dispatcher treats sink errors as non-fatal: the job result
// stands, it just has no log reference.
type OutputSink interface {
	Save(spec JobSpec, output string) (path, digest string, err error)
}

// Dispatcher fans specs out to an executor, one worker pool per job
// category. Categories run fully in parallel; inside a category at
// most the resolved cap run at once.
type Dispatcher struct {
	Exec     Executor
	Sink     OutputSink
	Caps     config.Table[int]
	FailFast bool
}

func NewDispatcher(exec Executor, sink OutputSink, caps config.Table[int], failFast bool) *Dispatcher {
	if caps == nil {
		caps = config.Table[int]{}
	}
	return &Dispatcher{Exec: exec, Sink: sink, Caps: caps, FailFast: failFast}
}

// capFor resolves the concurrency cap for a category: table entry,
// else the table's "default", else DefaultMaxParallel.
func (d *Dispatcher) capFor(category string) int {
	if limit, ok := config.ResolveEntry(category, d.Caps); ok && limit > 0 {
		return limit
	}
	return DefaultMaxParallel
}

// Run dispatches every spec and streams exactly one JobResult per spec
// on the returned channel. The channel closes once all specs have a
// result, so ranging over it is the run's join barrier.
//
// Fail-fast cancels queued-but-unstarted specs in the failing
// category only; specs already running finish on their own. A
// cancelled context marks everything not yet started as cancelled.
func (d *Dispatcher) Run(ctx context.Context, specs []JobSpec) <-chan JobResult {
	results := make(chan JobResult, len(specs))

	byCategory := make(map[string][]JobSpec)
	var order []string
	for _, spec := range specs {
		if _, ok := byCategory[spec.Category]; !ok {
			order = append(order, spec.Category)
		}
		byCategory[spec.Category] = append(byCategory[spec.Category], spec)
	}

	var wg sync.WaitGroup
	for _, category := range order {
		wg.Add(1)
		go func(category string, queue []JobSpec) {
			defer wg.Done()
			d.runCategory(ctx, category, queue, results)
		}(category, byCategory[category])
	}

	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}

// categoryState is the only mutable state shared between workers of
// one category: the abort flag flipped by the first failure.
type categoryState struct {
	mu      sync.Mutex
	aborted bool
}

func (s *categoryState) abort() {
	s.mu.Lock()
	s.aborted = true
	s.mu.Unlock()
}

func (s *categoryState) isAborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

func (d *Dispatcher) runCategory(ctx context.Context, category string, queue []JobSpec, results chan<- JobResult) {
	slots := make(chan struct{}, d.capFor(category))
	state := &categoryState{}

	var wg sync.WaitGroup
	for _, spec := range queue {
		// Queued-but-unstarted specs drain as cancelled once the
		// category aborted or the run context died.
		if state.isAborted() {
			results <- cancelledResult(spec, "fail-fast")
			continue
		}
		if ctx.Err() != nil {
			results <- cancelledResult(spec, "infrastructure")
			continue
		}

		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			results <- cancelledResult(spec, "infrastructure")
			continue
		}

		// Re-check after waiting for a slot; a sibling may have failed
		// while this spec was queued.
		if state.isAborted() {
			<-slots
			results <- cancelledResult(spec, "fail-fast")
			continue
		}

		wg.Add(1)
		go func(spec JobSpec) {
			defer wg.Done()
			defer func() { <-slots }()

			res := d.execute(ctx, spec)
			if res.Status == StatusFailure && d.FailFast {
				state.abort()
			}
			results <- res
		}(spec)
	}
	wg.Wait()
}

func (d *Dispatcher) execute(ctx context.Context, spec JobSpec) JobResult {
	start := time.Now()
	output, err := d.Exec.Execute(ctx, spec)

	res := JobResult{
		JobName:          spec.Name(),
		Category:         spec.Category,
		Status:           StatusSuccess,
		CoverageArtifact: spec.CoverageArtifact(),
		ReportArtifact:   spec.ReportPath(),
		Duration:         time.Since(start),
	}
	if err != nil {
		res.Status = StatusFailure
		res.Err = err.Error()
		if ctx.Err() != nil {
			// The run was torn down under the job, not a test failure.
			res.Status = StatusCancelled
			res.Cause = "infrastructure"
		}
	}

	if d.Sink != nil && output != "" {
		if path, digest, sinkErr := d.Sink.Save(spec, output); sinkErr == nil {
			res.LogPath = path
			res.LogDigest = digest
		}
	}
	return res
}

func cancelledResult(spec JobSpec, cause string) JobResult {
	return JobResult{
		JobName:  spec.Name(),
		Category: spec.Category,
		Status:   StatusCancelled,
		Cause:    cause,
	}
}
