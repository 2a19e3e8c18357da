// Package concurrency holds the small fan-out primitives shared by the
// indexing and search pipelines: a bounded semaphore for the expansion (~50)
// and quantifier (~30) phases. The vision rate limiter lives in
// internal/resilience.
package concurrency

import "context"

// Semaphore bounds the number of concurrently in-flight tasks. It is a thin
// channel-based wrapper chosen over golang.org/x/sync/semaphore because the
// call sites only ever need integer-weight-one acquisition.
type Semaphore struct {
	tokens chan struct{}
}

// NewSemaphore creates a Semaphore admitting at most n concurrent holders.
func NewSemaphore(n int) *Semaphore {
	if n <= 0 {
		n = 1
	}
	return &Semaphore{tokens: make(chan struct{}, n)}
}

// Acquire blocks until a slot is available or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.tokens <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a previously acquired slot.
func (s *Semaphore) Release() {
	<-s.tokens
}
