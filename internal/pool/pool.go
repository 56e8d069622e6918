// Package pool runs independent units of work on a fixed number of workers.
package pool

import (
	"fmt"
	"sync"
)

// Job is a single unit of work handed to a worker
type Job[T any] struct {
	Index int
	Item  T
}

// Result is the outcome of one Job
type Result[R any] struct {
	Index int
	Value R
	Error error
}

// Func processes one item. It runs to completion on the worker that picked it up.
type Func[T, R any] func(item T) (R, error)

// Map applies fn to every item using at most workers goroutines and returns
// the values in input order. If any unit fails, no further jobs are handed
// out and the error of the lowest failing index is returned with no values.
func Map[T, R any](workers int, items []T, fn Func[T, R]) ([]R, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("pool: workers must be positive, got %d", workers)
	}
	if len(items) == 0 {
		return []R{}, nil
	}
	if workers > len(items) {
		workers = len(items)
	}

	jobCh := make(chan Job[T], workers)
	resultCh := make(chan Result[R], workers)
	stop := make(chan struct{})
	var stopOnce sync.Once

	// Feed jobs until everything is queued or a unit has failed
	go func() {
		defer close(jobCh)
		for i, item := range items {
			select {
			case jobCh <- Job[T]{Index: i, Item: item}:
			case <-stop:
				return
			}
		}
	}()

	var workerWg sync.WaitGroup
	for i := 0; i < workers; i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			worker(jobCh, resultCh, fn)
		}()
	}

	go func() {
		workerWg.Wait()
		close(resultCh)
	}()

	values := make([]R, len(items))
	failedAt := -1
	var firstErr error

	for result := range resultCh {
		if result.Error != nil {
			if failedAt < 0 || result.Index < failedAt {
				failedAt = result.Index
				firstErr = result.Error
			}
			stopOnce.Do(func() { close(stop) })
			continue
		}
		values[result.Index] = result.Value
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return values, nil
}

// worker drains jobCh, running fn for each job
func worker[T, R any](jobCh <-chan Job[T], resultCh chan<- Result[R], fn Func[T, R]) {
	for job := range jobCh {
		value, err := fn(job.Item)
		resultCh <- Result[R]{Index: job.Index, Value: value, Error: err}
	}
}

// Sequential applies fn to every item in order on the calling goroutine and
// stops at the first failure.
func Sequential[T, R any](items []T, fn Func[T, R]) ([]R, error) {
	values := make([]R, 0, len(items))
	for _, item := range items {
		value, err := fn(item)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// Collect applies fn to every item like Map but never stops early. Failed units
// leave a zero value and their error at the same index in errs.
func Collect[T, R any](workers int, items []T, fn Func[T, R]) (values []R, errs []error, err error) {
	if workers <= 0 {
		return nil, nil, fmt.Errorf("pool: workers must be positive, got %d", workers)
	}
	values = make([]R, len(items))
	errs = make([]error, len(items))
	if len(items) == 0 {
		return values, errs, nil
	}
	if workers > len(items) {
		workers = len(items)
	}

	jobCh := make(chan Job[T], len(items))
	resultCh := make(chan Result[R], workers)

	for i, item := range items {
		jobCh <- Job[T]{Index: i, Item: item}
	}
	close(jobCh)

	var workerWg sync.WaitGroup
	for i := 0; i < workers; i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			worker(jobCh, resultCh, fn)
		}()
	}

	go func() {
		workerWg.Wait()
		close(resultCh)
	}()

	for result := range resultCh {
		values[result.Index] = result.Value
		errs[result.Index] = result.Error
	}
	return values, errs, nil
}
