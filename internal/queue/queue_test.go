// File path: internal/queue/queue_test.go
package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPriorityOrdering(t *testing.T) {
	q := New(1)
	defer q.Close()

	release := make(chan struct{})
	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup

	wg.Add(1)
	if _, err := q.AddTask(PriorityNormal, 0, func(context.Context) error {
		defer wg.Done()
		<-release
		return nil
	}); err != nil {
		t.Fatalf("add blocker: %v", err)
	}

	add := func(label string, p Priority) {
		wg.Add(1)
		if _, err := q.AddTask(p, 0, func(context.Context) error {
			defer wg.Done()
			mu.Lock()
			order = append(order, label)
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatalf("add %s: %v", label, err)
		}
	}
	add("low", PriorityLow)
	add("high-1", PriorityHigh)
	add("normal", PriorityNormal)
	add("high-2", PriorityHigh)

	close(release)
	wg.Wait()

	want := []string{"high-1", "high-2", "normal", "low"}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(want) {
		t.Fatalf("ran %d tasks, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestBoundedConcurrency(t *testing.T) {
	q := New(2)
	defer q.Close()

	var mu sync.Mutex
	current, peak := 0, 0
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		if _, err := q.AddTask(PriorityNormal, 0, func(context.Context) error {
			defer wg.Done()
			mu.Lock()
			current++
			if current > peak {
				peak = current
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			current--
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatalf("add task: %v", err)
		}
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Fatalf("observed %d concurrent tasks, limit is 2", peak)
	}
	if peak < 2 {
		t.Logf("peak concurrency %d; limit never exercised", peak)
	}
}

func TestRetryWithBackoff(t *testing.T) {
	q := New(1, WithBackoff(5*time.Millisecond, 50*time.Millisecond))
	defer q.Close()

	var mu sync.Mutex
	var delays []time.Duration
	done := make(chan struct{})
	q.Subscribe(func(ev Event) {
		switch ev.To {
		case StatePending:
			mu.Lock()
			delays = append(delays, ev.Delay)
			mu.Unlock()
		case StateCompleted:
			close(done)
		}
	})

	attempts := 0
	id, err := q.AddTask(PriorityNormal, 3, func(context.Context) error {
		attempts++
		if attempts <= 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("add task: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never completed")
	}

	snapshot, ok := q.Task(id)
	if !ok {
		t.Fatal("task not found")
	}
	if snapshot.State != StateCompleted {
		t.Fatalf("state = %s, want completed", snapshot.State)
	}
	if snapshot.Retries != 2 {
		t.Fatalf("retries = %d, want 2", snapshot.Retries)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(delays) != 2 {
		t.Fatalf("retry transitions = %d, want 2", len(delays))
	}
	if delays[0] != 5*time.Millisecond || delays[1] != 10*time.Millisecond {
		t.Fatalf("delays = %v, want [5ms 10ms]", delays)
	}
}

func TestExhaustedRetriesFail(t *testing.T) {
	q := New(1, WithBackoff(time.Millisecond, 10*time.Millisecond))
	defer q.Close()

	done := make(chan struct{})
	q.Subscribe(func(ev Event) {
		if ev.To == StateFailed {
			close(done)
		}
	})

	id, err := q.AddTask(PriorityHigh, 2, func(context.Context) error {
		return errors.New("permanent")
	})
	if err != nil {
		t.Fatalf("add task: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never failed")
	}

	snapshot, _ := q.Task(id)
	if snapshot.State != StateFailed {
		t.Fatalf("state = %s, want failed", snapshot.State)
	}
	if snapshot.Retries != 2 {
		t.Fatalf("retries = %d, want 2", snapshot.Retries)
	}
	if snapshot.LastErr == nil {
		t.Fatal("expected LastErr to be recorded")
	}

	counts := q.Status()
	if counts.Failed != 1 {
		t.Fatalf("failed count = %d, want 1", counts.Failed)
	}
}

func TestCloseCancelsPendingRetries(t *testing.T) {
	q := New(1, WithBackoff(50*time.Millisecond, time.Second))

	var mu sync.Mutex
	attempts := 0
	retried := make(chan struct{})
	q.Subscribe(func(ev Event) {
		if ev.To == StatePending && ev.Retries == 1 {
			close(retried)
		}
	})

	if _, err := q.AddTask(PriorityNormal, 5, func(context.Context) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("always fails")
	}); err != nil {
		t.Fatalf("add task: %v", err)
	}

	select {
	case <-retried:
	case <-time.After(2 * time.Second):
		t.Fatal("retry never scheduled")
	}
	q.Close()

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if attempts != 1 {
		t.Fatalf("attempts after close = %d, want 1", attempts)
	}

	if _, err := q.AddTask(PriorityNormal, 0, func(context.Context) error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("AddTask after close = %v, want ErrQueueClosed", err)
	}
}

func TestSettledTasksEvictedAfterRetention(t *testing.T) {
	q := New(1, WithRetention(time.Minute))
	defer q.Close()

	done := make(chan struct{})
	q.Subscribe(func(ev Event) {
		if ev.To == StateCompleted {
			close(done)
		}
	})

	id, err := q.AddTask(PriorityNormal, 0, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never completed")
	}

	if _, ok := q.Task(id); !ok {
		t.Fatal("settled task evicted before retention elapsed")
	}

	q.mu.Lock()
	q.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	q.mu.Unlock()

	counts := q.Status()
	if _, ok := q.Task(id); ok {
		t.Fatal("settled task retained past the retention window")
	}
	if counts.Completed != 1 {
		t.Fatalf("completed count = %d, want 1 after eviction", counts.Completed)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	q := New(1)
	defer q.Close()

	var mu sync.Mutex
	events := 0
	unsubscribe := q.Subscribe(func(Event) {
		mu.Lock()
		events++
		mu.Unlock()
	})
	unsubscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	if _, err := q.AddTask(PriorityNormal, 0, func(context.Context) error {
		defer wg.Done()
		return nil
	}); err != nil {
		t.Fatalf("add task: %v", err)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if events != 0 {
		t.Fatalf("received %d events after unsubscribe", events)
	}
}
