package notifications

import (
	"context"
	"errors"
	"sync"

	"geranium/pkg/kafka"
	"geranium/pkg/logger"
)

const (
	eventTypeEmail = "notification.email"
	eventSource    = "geranium-server"
)

type publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

type consumer interface {
	Start(ctx context.Context) error
	Close() error
}

// ConsumerFactory builds the topic consumer once the delivery handler is
// known.
type ConsumerFactory func(handler kafka.MessageHandler) (consumer, error)

type kafkaQueue struct {
	producer    publisher
	newConsumer ConsumerFactory
	deadLetters DeadLetterSink
	log         *logger.Logger

	pending  chan Notification
	mu       sync.RWMutex
	closed   bool
	consumer consumer
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// NewKafkaQueue publishes notifications to a topic and consumes them back
// in-process. Publishing runs on a background goroutine fed by a buffered
// channel so Enqueue never waits on the broker.
func NewKafkaQueue(producer *kafka.Producer, newConsumer func(kafka.MessageHandler) (*kafka.Consumer, error), buffer int, deadLetters DeadLetterSink, log *logger.Logger) Queue {
	return newKafkaQueue(producer, func(h kafka.MessageHandler) (consumer, error) {
		return newConsumer(h)
	}, buffer, deadLetters, log)
}

func newKafkaQueue(producer publisher, newConsumer ConsumerFactory, buffer int, deadLetters DeadLetterSink, log *logger.Logger) *kafkaQueue {
	return &kafkaQueue{
		producer:    producer,
		newConsumer: newConsumer,
		deadLetters: deadLetters,
		log:         log,
		pending:     make(chan Notification, max(buffer, 1)),
	}
}

func (q *kafkaQueue) Enqueue(n Notification) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.pending <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *kafkaQueue) Start(ctx context.Context, deliver DeliverFunc) error {
	c, err := q.newConsumer(q.handler(deliver))
	if err != nil {
		return err
	}
	q.consumer = c

	ctx, q.cancel = context.WithCancel(ctx)

	q.wg.Add(2)
	go q.publishLoop(ctx)
	go func() {
		defer q.wg.Done()
		if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, kafka.ErrConsumerClosed) {
			q.log.Error("Notification consumer stopped", "error", err)
		}
	}()

	q.log.Info("Notification workers started", "queue", "kafka")
	return nil
}

func (q *kafkaQueue) publishLoop(ctx context.Context) {
	defer q.wg.Done()
	for n := range q.pending {
		msg, err := kafka.NewMessage().
			WithKey(bookingKey(n)).
			WithValue(n).
			WithEventID(n.ID).
			WithEventType(eventTypeEmail).
			WithCorrelationID(bookingKey(n)).
			WithSource(eventSource).
			Build()
		if err == nil {
			err = q.producer.Publish(context.WithoutCancel(ctx), msg)
		}
		if err != nil {
			q.deadLetters.Record(ctx, n, err)
		}
	}
}

// handler decodes consumed messages. Rendering problems are permanent;
// mailer failures are retried by the consumer before reaching the DLQ.
func (q *kafkaQueue) handler(deliver DeliverFunc) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var n Notification
		if err := msg.DecodeValue(&n); err != nil {
			return err
		}
		if !n.Kind.IsValid() || n.Booking == nil {
			return kafka.NewPermanentError("malformed notification", nil)
		}
		if err := deliver(ctx, n); err != nil {
			var renderErr *RenderError
			if errors.As(err, &renderErr) {
				return kafka.NewPermanentError("render failed", err)
			}
			return kafka.NewTransientError("delivery failed", err)
		}
		return nil
	}
}

func (q *kafkaQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.pending)
	q.mu.Unlock()

	var errs []error
	if q.consumer != nil {
		errs = append(errs, q.consumer.Close())
	}
	if q.cancel != nil {
		q.cancel()
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}

	errs = append(errs, q.producer.Close())
	return errors.Join(errs...)
}

func bookingKey(n Notification) string {
	if n.Booking != nil && n.Booking.ID != "" {
		return n.Booking.ID
	}
	return n.ID
}
