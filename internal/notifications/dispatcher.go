package notifications

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"geranium/pkg/logger"
)

const sendTimeout = 30 * time.Second

type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed: %v", e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

type DispatcherStats struct {
	Submitted int64 `json:"submitted"`
	Sent      int64 `json:"sent"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}

// Dispatcher accepts notifications from services and hands them to a
// queue. Delivery renders the email and sends it through the mailer.
type Dispatcher struct {
	queue       Queue
	mailer      Mailer
	renderer    *Renderer
	deadLetters DeadLetterSink
	log         *logger.Logger

	submitted atomic.Int64
	sent      atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

func NewDispatcher(queue Queue, mailer Mailer, renderer *Renderer, deadLetters DeadLetterSink, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		queue:       queue,
		mailer:      mailer,
		renderer:    renderer,
		deadLetters: deadLetters,
		log:         log,
	}
}

func (d *Dispatcher) Start(ctx context.Context) error {
	return d.queue.Start(ctx, d.deliver)
}

// Submit never blocks. A notification the queue cannot take is
// dead-lettered immediately.
func (d *Dispatcher) Submit(n Notification) {
	d.submitted.Add(1)
	if err := d.queue.Enqueue(n); err != nil {
		d.rejected.Add(1)
		d.deadLetters.Record(context.Background(), n, err)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) error {
	email, err := d.renderer.Render(n)
	if err != nil {
		d.failed.Add(1)
		return &RenderError{Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := d.mailer.Send(ctx, email); err != nil {
		d.failed.Add(1)
		return err
	}

	d.sent.Add(1)
	d.log.Info("Notification sent", "notification_id", n.ID, "kind", n.Kind, "to", email.To)
	return nil
}

func (d *Dispatcher) Stop(ctx context.Context) error {
	return d.queue.Stop(ctx)
}

func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Submitted: d.submitted.Load(),
		Sent:      d.sent.Load(),
		Failed:    d.failed.Load(),
		Rejected:  d.rejected.Load(),
	}
}
