package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSignal_WakesAllWaiters(t *testing.T) {
	s := NewSignal()

	const waiters = 3
	var wg sync.WaitGroup
	chans := make([]<-chan struct{}, waiters)
	for i := range chans {
		chans[i] = s.C()
	}
	for _, ch := range chans {
		ch := ch
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ch
		}()
	}

	s.Notify()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not every waiter woke")
	}
}

func TestSignal_NotifyIsNotSticky(t *testing.T) {
	s := NewSignal()
	s.Notify()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() after earlier Notify error = %v, want DeadlineExceeded", err)
	}
}

func TestSignal_Wait(t *testing.T) {
	s := NewSignal()
	ch := s.C()

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Notify()
	}()

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Notify")
	}
}
