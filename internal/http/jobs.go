package http

import (
	"context"
)

// jobLimiter bounds how many heavy requests run at once. Each admitted
// request runs its pipeline as one sequential unit.
type jobLimiter struct {
	slots chan struct{}
}

func newJobLimiter(n int) *jobLimiter {
	return &jobLimiter{slots: make(chan struct{}, n)}
}

// acquire waits for a free slot. The returned release must be called once.
func (l *jobLimiter) acquire(ctx context.Context) (release func(), err error) {
	select {
	case l.slots <- struct{}{}:
		return func() { <-l.slots }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// inFlight returns the number of admitted jobs.
func (l *jobLimiter) inFlight() int {
	return len(l.slots)
}
