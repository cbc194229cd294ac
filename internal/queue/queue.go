// File path: internal/queue/queue.go
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/planforge/planforge/internal/common"
)

// Priority orders tasks across classes: high drains before normal before low.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityNormal
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// State is the task lifecycle position. Transitions are
// pending -> processing -> completed, processing -> pending (retry), or
// processing -> failed (retries exhausted).
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Producer is the unit of work: a zero-argument effectful closure.
type Producer func(ctx context.Context) error

// Task is a queue-visible snapshot of one unit of work.
type Task struct {
	ID          string
	Priority    Priority
	State       State
	Retries     int
	MaxRetries  int
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	LastErr     error
}

// Event describes one state transition. Delay is set on retry transitions
// with the scheduled backoff.
type Event struct {
	TaskID   string
	Priority Priority
	From, To State
	Retries  int
	Delay    time.Duration
	Err      error
}

// Counts summarizes queue occupancy by state.
type Counts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

var ErrQueueClosed = errors.New("queue closed")

type task struct {
	Task
	producer Producer
}

// Queue is a priority-class FIFO scheduler with bounded concurrency and
// exponential backoff retry. All cross-task state lives behind one mutex;
// listeners are always invoked outside the lock so a reentrant AddTask from
// a listener cannot deadlock or corrupt internal bookkeeping.
type Queue struct {
	mu            sync.Mutex
	maxConcurrent int
	baseBackoff   time.Duration
	maxBackoff    time.Duration
	retention     time.Duration
	now           func() time.Time

	pending    []*task
	tasks      map[string]*task
	processing int
	completed  int
	failed     int

	listeners map[int]func(Event)
	nextSub   int
	timers    map[string]*time.Timer

	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

// Option tweaks queue construction.
type Option func(*Queue)

// WithBackoff overrides the retry backoff shape. The delay for retry n is
// min(base<<n, cap).
func WithBackoff(base, cap time.Duration) Option {
	return func(q *Queue) {
		if base > 0 {
			q.baseBackoff = base
		}
		if cap > 0 {
			q.maxBackoff = cap
		}
	}
}

// WithRetention overrides how long settled task snapshots stay visible
// through Task before they are evicted.
func WithRetention(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.retention = d
		}
	}
}

// defaultRetention bounds how long completed and failed snapshots linger.
const defaultRetention = time.Hour

// New builds a queue running at most maxConcurrent tasks at once.
func New(maxConcurrent int, opts ...Option) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		maxConcurrent: maxConcurrent,
		baseBackoff:   time.Second,
		maxBackoff:    30 * time.Second,
		retention:     defaultRetention,
		now:           time.Now,
		tasks:         make(map[string]*task),
		listeners:     make(map[int]func(Event)),
		timers:        make(map[string]*time.Timer),
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	return q
}

// AddTask enqueues a producer and returns its task id. Insertion preserves
// arrival order within a priority class and strict ordering across classes.
func (q *Queue) AddTask(priority Priority, maxRetries int, producer Producer) (string, error) {
	if producer == nil {
		return "", errors.New("producer required")
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	t := &task{
		Task: Task{
			ID:         uuid.NewString(),
			Priority:   priority,
			State:      StatePending,
			MaxRetries: maxRetries,
		},
		producer: producer,
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrQueueClosed
	}
	t.CreatedAt = q.now()
	q.tasks[t.ID] = t
	q.insertLocked(t)
	events := q.dispatchLocked()
	q.mu.Unlock()

	q.notify(events)
	return t.ID, nil
}

// Task returns a snapshot of the given task.
func (q *Queue) Task(id string) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return Task{}, false
	}
	return t.Task, true
}

// Status reports occupancy counts by state. Completed and failed counts are
// cumulative and survive snapshot eviction.
func (q *Queue) Status() Counts {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pruneLocked()
	counts := Counts{
		Processing: q.processing,
		Completed:  q.completed,
		Failed:     q.failed,
	}
	for _, t := range q.tasks {
		if t.State == StatePending {
			counts.Pending++
		}
	}
	return counts
}

// Subscribe registers a listener for every state transition. Listeners are
// called synchronously with the transition, outside the queue lock. The
// returned function unsubscribes.
func (q *Queue) Subscribe(listener func(Event)) func() {
	if listener == nil {
		return func() {}
	}
	q.mu.Lock()
	id := q.nextSub
	q.nextSub++
	q.listeners[id] = listener
	q.mu.Unlock()
	return func() {
		q.mu.Lock()
		delete(q.listeners, id)
		q.mu.Unlock()
	}
}

// Close stops dispatching, cancels the context handed to producers, and
// deterministically cancels every pending retry timer.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
	q.mu.Unlock()
	q.cancel()
	common.Logger().Debug("queue: closed")
}

// insertLocked places t after every queued task of the same or higher
// priority class and before any lower class, preserving class FIFO order.
func (q *Queue) insertLocked(t *task) {
	idx := len(q.pending)
	for i, queued := range q.pending {
		if queued.Priority > t.Priority {
			idx = i
			break
		}
	}
	q.pending = append(q.pending, nil)
	copy(q.pending[idx+1:], q.pending[idx:])
	q.pending[idx] = t
}

// dispatchLocked starts pending tasks while slots are free and returns the
// transition events to emit after the lock is released.
func (q *Queue) dispatchLocked() []Event {
	var events []Event
	for !q.closed && q.processing < q.maxConcurrent && len(q.pending) > 0 {
		t := q.pending[0]
		q.pending = q.pending[1:]
		now := q.now()
		t.State = StateProcessing
		t.StartedAt = &now
		q.processing++
		events = append(events, Event{
			TaskID: t.ID, Priority: t.Priority,
			From: StatePending, To: StateProcessing, Retries: t.Retries,
		})
		go q.run(t)
	}
	return events
}

func (q *Queue) run(t *task) {
	err := t.producer(q.ctx)
	q.settle(t, err)
}

func (q *Queue) settle(t *task, err error) {
	logger := common.Logger()
	q.mu.Lock()
	q.processing--

	var events []Event
	switch {
	case err == nil:
		now := q.now()
		t.State = StateCompleted
		t.CompletedAt = &now
		q.completed++
		events = append(events, Event{
			TaskID: t.ID, Priority: t.Priority,
			From: StateProcessing, To: StateCompleted, Retries: t.Retries,
		})
	case t.Retries < t.MaxRetries && !q.closed:
		delay := q.backoffLocked(t.Retries)
		t.LastErr = err
		t.Retries++
		t.State = StatePending
		taskID := t.ID
		q.timers[taskID] = time.AfterFunc(delay, func() { q.requeue(taskID) })
		events = append(events, Event{
			TaskID: t.ID, Priority: t.Priority,
			From: StateProcessing, To: StatePending, Retries: t.Retries,
			Delay: delay, Err: err,
		})
		logger.Debug("queue: task retry scheduled", "task", t.ID, "retries", t.Retries, "delay", delay, "error", err)
	default:
		now := q.now()
		t.LastErr = err
		t.State = StateFailed
		t.CompletedAt = &now
		q.failed++
		events = append(events, Event{
			TaskID: t.ID, Priority: t.Priority,
			From: StateProcessing, To: StateFailed, Retries: t.Retries, Err: err,
		})
		logger.Warn("queue: task failed permanently", "task", t.ID, "retries", t.Retries, "error", err)
	}
	q.pruneLocked()
	events = append(events, q.dispatchLocked()...)
	q.mu.Unlock()

	q.notify(events)
}

// pruneLocked evicts completed and failed snapshots older than the retention
// window so a long-running queue does not grow a map entry per task forever.
func (q *Queue) pruneLocked() {
	cutoff := q.now().Add(-q.retention)
	for id, t := range q.tasks {
		if t.State != StateCompleted && t.State != StateFailed {
			continue
		}
		if t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			delete(q.tasks, id)
		}
	}
}

// requeue re-inserts a backed-off task into the pending order. Retries enter
// by class like any new arrival, behind untried same-class tasks.
func (q *Queue) requeue(taskID string) {
	q.mu.Lock()
	delete(q.timers, taskID)
	t, ok := q.tasks[taskID]
	if !ok || q.closed || t.State != StatePending {
		q.mu.Unlock()
		return
	}
	q.insertLocked(t)
	events := q.dispatchLocked()
	q.mu.Unlock()

	q.notify(events)
}

func (q *Queue) backoffLocked(retries int) time.Duration {
	delay := q.baseBackoff
	for i := 0; i < retries; i++ {
		delay *= 2
		if delay >= q.maxBackoff {
			return q.maxBackoff
		}
	}
	if delay > q.maxBackoff {
		return q.maxBackoff
	}
	return delay
}

func (q *Queue) notify(events []Event) {
	if len(events) == 0 {
		return
	}
	q.mu.Lock()
	listeners := make([]func(Event), 0, len(q.listeners))
	for _, l := range q.listeners {
		listeners = append(listeners, l)
	}
	q.mu.Unlock()
	for _, ev := range events {
		for _, l := range listeners {
			l(ev)
		}
	}
}
