// Package mux bounds the number of concurrently active multiplexed client
// sessions (nb_clients), on the sender side and on the receiver side. It
// holds no per-client state of its own — the sender's client readers and the
// receiver's sinks own that — it only gates how many sessions may be open at
// once.
package mux

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Semaphore is a counting semaphore limiting the number of concurrently
// active client sessions (MultiplexControl): TCP clients the sender reads
// from, or sinks the receiver writes to.
// It is the Go-native replacement for the original's
// Mutex+Condvar semaphore, using golang.org/x/sync/semaphore's weighted
// semaphore with weight 1 per session.
type Semaphore struct {
	sem *semaphore.Weighted
}

// NewSemaphore builds a Semaphore permitting up to n concurrent sessions.
func NewSemaphore(n int) *Semaphore {
	return &Semaphore{sem: semaphore.NewWeighted(int64(n))}
}

// Acquire blocks until a session slot is free or ctx is done. The accept
// loop calls this before handing a freshly-accepted TCP connection to a
// client reader goroutine.
func (s *Semaphore) Acquire(ctx context.Context) error {
	return s.sem.Acquire(ctx, 1)
}

// Release frees one session slot. Called once a client's reader goroutine
// has observed EOF, an I/O error, or an Abort/End condition and torn down
// its session.
func (s *Semaphore) Release() {
	s.sem.Release(1)
}

// TryAcquire attempts to take a slot without blocking, reporting whether it
// succeeded. Used by callers that want to reject a connection immediately
// rather than queue it.
func (s *Semaphore) TryAcquire() bool {
	return s.sem.TryAcquire(1)
}
