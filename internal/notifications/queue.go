package notifications

import (
	"context"
	"errors"
	"sync"

	"geranium/pkg/logger"
)

var (
	ErrQueueFull   = errors.New("notification queue is full")
	ErrQueueClosed = errors.New("notification queue is closed")
)

// DeliverFunc sends a single notification.
type DeliverFunc func(ctx context.Context, n Notification) error

// Queue decouples submission from delivery. Enqueue never blocks.
type Queue interface {
	Enqueue(n Notification) error
	Start(ctx context.Context, deliver DeliverFunc) error
	Stop(ctx context.Context) error
}

type memoryQueue struct {
	ch          chan Notification
	workers     int
	deadLetters DeadLetterSink
	log         *logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewMemoryQueue returns a buffered in-process queue drained by a fixed
// pool of workers. Failed deliveries go straight to deadLetters.
func NewMemoryQueue(buffer, workers int, deadLetters DeadLetterSink, log *logger.Logger) Queue {
	return &memoryQueue{
		ch:          make(chan Notification, max(buffer, 1)),
		workers:     max(workers, 1),
		deadLetters: deadLetters,
		log:         log,
	}
}

func (q *memoryQueue) Enqueue(n Notification) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *memoryQueue) Start(ctx context.Context, deliver DeliverFunc) error {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(ctx, i, deliver)
	}
	q.log.Info("Notification workers started", "queue", "memory", "workers", q.workers)
	return nil
}

func (q *memoryQueue) work(ctx context.Context, id int, deliver DeliverFunc) {
	defer q.wg.Done()
	for n := range q.ch {
		deliverCtx := context.WithoutCancel(ctx)
		if err := deliver(deliverCtx, n); err != nil {
			q.log.Warn("Notification delivery failed", "worker", id, "kind", n.Kind, "error", err)
			q.deadLetters.Record(deliverCtx, n, err)
		}
	}
}

// Stop closes the queue and waits for queued notifications to drain.
func (q *memoryQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
