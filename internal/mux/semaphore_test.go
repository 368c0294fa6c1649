package mux

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSemaphoreBoundsConcurrency(t *testing.T) {
	s := NewSemaphore(2)
	ctx := context.Background()

	if err := s.Acquire(ctx); err != nil {
		t.Fatalf("Acquire 1: %v", err)
	}
	if err := s.Acquire(ctx); err != nil {
		t.Fatalf("Acquire 2: %v", err)
	}
	if s.TryAcquire() {
		t.Fatal("TryAcquire should fail once capacity is exhausted")
	}

	s.Release()
	if !s.TryAcquire() {
		t.Fatal("TryAcquire should succeed after a Release")
	}
}

func TestSemaphoreAcquireUnblocksOnRelease(t *testing.T) {
	s := NewSemaphore(1)
	ctx := context.Background()

	if err := s.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	acquired := make(chan struct{})
	go func() {
		defer wg.Done()
		if err := s.Acquire(ctx); err != nil {
			t.Errorf("blocked Acquire: %v", err)
			return
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("Acquire returned before Release freed a slot")
	case <-time.After(20 * time.Millisecond):
	}

	s.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("blocked Acquire never unblocked after Release")
	}
	wg.Wait()
}

func TestSemaphoreAcquireRespectsContextCancel(t *testing.T) {
	s := NewSemaphore(1)
	ctx := context.Background()
	if err := s.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	cctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Acquire(cctx); err == nil {
		t.Fatal("expected Acquire to fail on a cancelled context")
	}
}
