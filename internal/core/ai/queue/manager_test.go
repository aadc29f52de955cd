package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	m := NewManager(1, 1)
	release, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st := m.GetQueueStatus(); st.Active != 1 {
		t.Fatalf("active = %d", st.Active)
	}
	release()
	release()
	st := m.GetQueueStatus()
	if st.Active != 0 || st.ProcessedCount != 1 {
		t.Fatalf("status = %+v", st)
	}
}

func TestAcquireWaitsThenCancels(t *testing.T) {
	m := NewManager(1, 5)
	release, _ := m.Acquire(context.Background())
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestAcquireQueueFull(t *testing.T) {
	m := NewManager(1, 1)
	release, _ := m.Acquire(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	waiterErr := make(chan error, 1)
	go func() {
		r, err := m.Acquire(ctx)
		if err == nil {
			r()
		}
		waiterErr <- err
	}()

	deadline := time.Now().Add(time.Second)
	for m.GetQueueStatus().QueueLength != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("waiter never queued")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := m.Acquire(context.Background()); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}

	release()
	if err := <-waiterErr; err != nil {
		t.Fatalf("waiter: %v", err)
	}
}

func TestAcquireAfterClose(t *testing.T) {
	m := NewManager(2, 0)
	m.Close()
	m.Close()
	if _, err := m.Acquire(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v", err)
	}
}
