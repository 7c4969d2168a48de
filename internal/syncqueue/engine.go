package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dvanetti/clara/internal/observability"
	"github.com/dvanetti/clara/internal/reliability"
)

const (
	backoffBase = 2 * time.Second
	backoffCap  = 2 * time.Minute
)

// Status is a point-in-time view of the engine for the control surface.
type Status struct {
	QueueDepth  int        `json:"queue_depth"`
	Flushing    bool       `json:"flushing"`
	Attempts    int        `json:"attempts"`
	NextFlushAt *time.Time `json:"next_flush_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// Engine holds the outbound mutation queue and drives delivery. The queue is
// FIFO by enqueue order; items sharing an identity are merged in place.
type Engine struct {
	sender    Sender
	store     Store
	metrics   *observability.Metrics
	batchSize int

	flushing atomic.Bool

	mu          sync.Mutex
	queue       []Item
	attempts    int
	nextFlushAt time.Time
	lastError   string
}

func NewEngine(ctx context.Context, sender Sender, store Store, metrics *observability.Metrics, batchSize int) (*Engine, error) {
	if batchSize <= 0 {
		batchSize = 25
	}

	e := &Engine{
		sender:    sender,
		store:     store,
		metrics:   metrics,
		batchSize: batchSize,
	}

	queued, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore sync queue: %w", err)
	}
	e.queue = queued
	metrics.SyncQueueDepth.Set(float64(len(queued)))

	return e, nil
}

// Enqueue adds a mutation to the queue. If an item with the same identity is
// already pending, the two are merged rather than queued twice; the merged
// item keeps its original queue position. The mirror write happens inside
// the same critical section, so racing enqueues of one identity cannot
// persist the losing stamp.
func (e *Engine) Enqueue(ctx context.Context, item Item) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	stored := item
	found := false
	for i := range e.queue {
		if e.queue[i].ID == item.ID && e.queue[i].Type == item.Type {
			e.queue[i] = merge(e.queue[i], item)
			stored = e.queue[i]
			found = true
			break
		}
	}
	if !found {
		e.queue = append(e.queue, item)
	}
	e.metrics.SyncQueueDepth.Set(float64(len(e.queue)))

	if err := e.store.Put(ctx, stored); err != nil {
		return fmt.Errorf("persist queued item: %w", err)
	}
	return nil
}

// Flush sends at most one batch from the head of the queue. It returns
// immediately when a flush is already in progress or the backoff window from
// a previous failure has not elapsed yet. A failed batch goes back to the
// head of the queue so ordering is preserved. Without a sender the queue
// only accumulates: delivery is disabled, not failing.
func (e *Engine) Flush(ctx context.Context) error {
	if e.sender == nil {
		return nil
	}
	if !e.flushing.CompareAndSwap(false, true) {
		return nil
	}
	defer e.flushing.Store(false)

	e.mu.Lock()
	if len(e.queue) == 0 {
		e.mu.Unlock()
		return nil
	}
	if e.attempts > 0 && time.Now().Before(e.nextFlushAt) {
		e.mu.Unlock()
		e.metrics.SyncFlushes.WithLabelValues("deferred").Inc()
		return nil
	}
	n := len(e.queue)
	if n > e.batchSize {
		n = e.batchSize
	}
	batch := make([]Item, n)
	copy(batch, e.queue[:n])
	e.queue = e.queue[n:]
	e.mu.Unlock()

	if err := e.sender.SendBatch(ctx, batch); err != nil {
		// A status the endpoint will never accept makes the batch a poison
		// pill; drop it instead of blocking everything queued behind it.
		var se *StatusError
		if errors.As(err, &se) && !reliability.IsRetryableHTTPStatus(se.Code) {
			e.mu.Lock()
			e.lastError = err.Error()
			depth := len(e.queue)
			prunable := e.unqueuedLocked(batch)
			e.mu.Unlock()
			if derr := e.store.Delete(ctx, prunable); derr != nil {
				return fmt.Errorf("prune rejected items: %w", derr)
			}
			e.metrics.SyncQueueDepth.Set(float64(depth))
			e.metrics.SyncFlushes.WithLabelValues("rejected").Inc()
			return fmt.Errorf("sync batch rejected: %w", err)
		}

		e.mu.Lock()
		e.queue = append(batch, e.queue...)
		e.attempts++
		e.nextFlushAt = time.Now().Add(reliability.ExponentialBackoff(e.attempts-1, backoffBase, backoffCap))
		e.lastError = err.Error()
		depth := len(e.queue)
		e.mu.Unlock()

		e.metrics.SyncQueueDepth.Set(float64(depth))
		e.metrics.SyncFlushes.WithLabelValues("failure").Inc()
		return fmt.Errorf("flush sync batch: %w", err)
	}

	e.mu.Lock()
	e.attempts = 0
	e.lastError = ""
	depth := len(e.queue)
	prunable := e.unqueuedLocked(batch)
	e.mu.Unlock()

	if err := e.store.Delete(ctx, prunable); err != nil {
		return fmt.Errorf("prune delivered items: %w", err)
	}
	e.metrics.SyncQueueDepth.Set(float64(depth))
	e.metrics.SyncFlushes.WithLabelValues("success").Inc()
	e.metrics.SyncItemsSent.Add(float64(len(batch)))
	return nil
}

// unqueuedLocked filters a sent batch down to identities no longer pending.
// An identity re-enqueued while its batch was in flight keeps its mirror row;
// deleting it would lose the new mutation across a restart. Caller holds mu.
func (e *Engine) unqueuedLocked(batch []Item) []Item {
	out := make([]Item, 0, len(batch))
	for _, it := range batch {
		requeued := false
		for i := range e.queue {
			if e.queue[i].ID == it.ID && e.queue[i].Type == it.Type {
				requeued = true
				break
			}
		}
		if !requeued {
			out = append(out, it)
		}
	}
	return out
}

func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

func (e *Engine) Snapshot() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		QueueDepth: len(e.queue),
		Flushing:   e.flushing.Load(),
		Attempts:   e.attempts,
		LastError:  e.lastError,
	}
	if e.attempts > 0 {
		next := e.nextFlushAt
		st.NextFlushAt = &next
	}
	return st
}

// StartFlusher runs periodic flushes until the context is cancelled.
func (e *Engine) StartFlusher(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = e.Flush(ctx)
			}
		}
	}()
}
