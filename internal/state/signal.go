package state

import (
	"context"
	"sync"
)

// Signal is a broadcast wake-up primitive.
//
// Every Notify wakes all goroutines currently waiting. Notifications are
// not counted: a waiter that arrives after a Notify waits for the next one.
// The zero value is not usable; call NewSignal.
type Signal struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewSignal creates a Signal with no pending waiters.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// C returns a channel closed at the next Notify. Take the channel before
// checking the condition you wait on, so a Notify in between is not missed.
func (s *Signal) C() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// Notify wakes every current waiter.
func (s *Signal) Notify() {
	s.mu.Lock()
	close(s.ch)
	s.ch = make(chan struct{})
	s.mu.Unlock()
}

// Wait blocks until the next Notify or until ctx is done.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.C():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
