package testutil

import (
	"errors"
	"sync"

	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/sentinel"
)

// ConcurrentResult tallies the outcomes of RunConcurrent by domain error code.
type ConcurrentResult struct {
	Successes int32
	Failures  map[dErrors.Code]int32
}

// Total is the number of calls that ran.
func (r *ConcurrentResult) Total() int32 {
	total := r.Successes
	for _, n := range r.Failures {
		total += n
	}
	return total
}

// Locked is the number of calls rejected by a lockout.
func (r *ConcurrentResult) Locked() int32 {
	return r.Failures[dErrors.CodeLocked]
}

// RunConcurrent releases n goroutines at once against fn and tallies the
// results. Store misses (sentinel.ErrNotFound) count as CodeNotFound and
// errors without a domain code as CodeInternal.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		res = &ConcurrentResult{Failures: make(map[dErrors.Code]int32)}
	)

	start := make(chan struct{})
	for i := range n {
		wg.Go(func() {
			<-start
			err := fn(i)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Successes++
			case errors.Is(err, sentinel.ErrNotFound):
				res.Failures[dErrors.CodeNotFound]++
			default:
				res.Failures[dErrors.CodeOf(err)]++
			}
		})
	}
	close(start)
	wg.Wait()
	return res
}
