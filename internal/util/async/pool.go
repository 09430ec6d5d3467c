package async

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTimeout is reported for jobs that were still running when a join
// barrier expired. The job itself keeps running; only the wait is abandoned.
var ErrTimeout = errors.New("job did not finish before the join deadline")

// DefaultSize returns the host CPU count minus one, never less than one.
func DefaultSize() int {
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}
	return 1
}

// Pool bounds the number of jobs executing at the same time.
// A Pool is safe for concurrent use and may be shared across batches.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool creates a pool running at most size jobs at once.
// A size below one selects DefaultSize.
func NewPool(size int) *Pool {
	if size < 1 {
		size = DefaultSize()
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the concurrency bound.
func (p *Pool) Size() int {
	return p.size
}

// Job is a named unit of work producing a T.
type Job[T any] struct {
	Name string
	Run  func(context.Context) (T, error)
}

// Future holds the eventual outcome of a submitted job.
type Future[T any] struct {
	name  string
	done  chan struct{}
	value T
	err   error
}

// Name returns the job name.
func (f *Future[T]) Name() string {
	return f.name
}

// Done is closed once the job has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the job finishes or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result is the joined outcome of one job.
type Result[T any] struct {
	Name  string
	Value T
	Err   error
}

// Submit schedules every job on the pool and returns immediately.
// Jobs wait for a pool slot in submission order; a job whose slot never
// frees before ctx is done resolves with ctx's error. A panicking job
// resolves with an error instead of crashing the batch.
func Submit[T any](ctx context.Context, p *Pool, jobs []Job[T]) []*Future[T] {
	futures := make([]*Future[T], len(jobs))
	for i, job := range jobs {
		f := &Future[T]{name: job.Name, done: make(chan struct{})}
		futures[i] = f

		go func() {
			defer close(f.done)
			if err := p.sem.Acquire(ctx, 1); err != nil {
				f.err = err
				return
			}
			defer p.sem.Release(1)
			f.value, f.err = runJob(ctx, job)
		}()
	}
	return futures
}

func runJob[T any](ctx context.Context, job Job[T]) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()
	return job.Run(ctx)
}

// JoinAll waits for every future under one shared deadline.
// A timeout of zero or less waits indefinitely (bounded only by ctx).
// Results keep submission order; unfinished jobs carry ErrTimeout, or
// ctx's error when ctx ended first.
func JoinAll[T any](ctx context.Context, futures []*Future[T], timeout time.Duration) []Result[T] {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	results := make([]Result[T], len(futures))
	expired := false
	var expiredErr error

	for i, f := range futures {
		results[i].Name = f.name
		if !expired {
			select {
			case <-f.done:
			case <-deadline:
				expired, expiredErr = true, ErrTimeout
			case <-ctx.Done():
				expired, expiredErr = true, ctx.Err()
			}
		}

		select {
		case <-f.done:
			results[i].Value, results[i].Err = f.value, f.err
		default:
			results[i].Err = fmt.Errorf("%s: %w", f.name, expiredErr)
		}
	}
	return results
}

// Errors collects the non-nil errors of a joined batch.
func Errors[T any](results []Result[T]) []error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}
