package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"geranium/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.messages...)
}

type fakeReader struct {
	ch        chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m, ok := <-r.ch:
		if !ok {
			return kafka.Message{}, io.EOF
		}
		return m, nil
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestMessageBuilder(t *testing.T) {
	msg, err := NewMessage().
		WithKey("booking-1").
		WithValue(map[string]string{"kind": "booking_received"}).
		WithEventType("notification.email").
		WithCorrelationID("booking-1").
		Build()
	require.NoError(t, err)

	assert.NotEmpty(t, msg.GetEventID())
	assert.Equal(t, "booking-1", msg.GetCorrelationID())
	assert.Equal(t, "notification.email", msg.GetEventType())
	assert.JSONEq(t, `{"kind":"booking_received"}`, string(msg.Value))

	_, err = NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestRetryCount(t *testing.T) {
	msg, _ := NewMessage().WithKey("k").WithValue(1).Build()
	assert.Equal(t, 0, msg.GetRetryCount())
	for i := 0; i < 12; i++ {
		msg.IncrementRetryCount()
	}
	assert.Equal(t, 12, msg.GetRetryCount())
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, ErrorTypeTransient, ClassifyError(errors.New("dial tcp: Connection Refused")))
	assert.Equal(t, ErrorTypeTransient, ClassifyError(context.DeadlineExceeded))
	assert.Equal(t, ErrorTypePermanent, ClassifyError(errors.New("550 mailbox unavailable")))
	assert.Equal(t, ErrorTypePermanent, ClassifyError(NewPermanentError("bad payload", nil)))
	assert.Equal(t, ErrorTypeTransient, ClassifyError(NewTransientError("smtp busy", nil)))

	assert.True(t, ShouldRetry(NewTransientError("x", nil), 0, 3))
	assert.False(t, ShouldRetry(NewTransientError("x", nil), 3, 3))
	assert.False(t, ShouldRetry(NewPermanentError("x", nil), 0, 3))
}

func TestProducer_PublishAndDLQ(t *testing.T) {
	primary := &fakeWriter{}
	dlq := &fakeWriter{}
	p := &Producer{writer: primary, dlqWriter: dlq, topic: "notifications", log: logger.Discard()}

	var seen []string
	p.Use(func(ctx context.Context, msg Message, next MessageHandler) error {
		seen = append(seen, msg.Topic)
		return next(ctx, msg)
	})

	msg, err := NewMessage().WithKey("b1").WithValue("hello").Build()
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), msg))
	assert.Len(t, primary.written(), 1)
	assert.Equal(t, []string{"notifications"}, seen)

	primary.err = errors.New("broker down")
	err = p.Publish(context.Background(), msg)
	assert.Error(t, err)
	require.Len(t, dlq.written(), 1)
	assert.Equal(t, "notifications", headerValue(dlq.written()[0], HeaderOriginalTopic))
	assert.Equal(t, "broker down", headerValue(dlq.written()[0], HeaderDLQError))

	assert.ErrorIs(t, p.Publish(context.Background(), Message{Value: []byte("x")}), ErrEmptyKey)
	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Publish(context.Background(), msg), ErrProducerClosed)
}

func TestConsumer_RetriesThenDeadLetters(t *testing.T) {
	reader := &fakeReader{ch: make(chan kafka.Message, 2)}
	dlq := &fakeWriter{}

	var mu sync.Mutex
	attempts := map[string]int{}
	handler := func(ctx context.Context, msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		attempts[msg.Key]++
		if msg.Key == "flaky" && attempts[msg.Key] < 3 {
			return NewTransientError("smtp timeout", nil)
		}
		if msg.Key == "broken" {
			return NewTransientError("smtp timeout", nil)
		}
		return nil
	}

	c := &Consumer{
		reader:     reader,
		dlqWriter:  dlq,
		topic:      "notifications",
		maxRetries: 3,
		handler:    handler,
		log:        logger.Discard(),
	}

	reader.ch <- kafka.Message{Key: []byte("flaky"), Value: []byte("{}"), Offset: 1}
	reader.ch <- kafka.Message{Key: []byte("broken"), Value: []byte("{}"), Offset: 2}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	assert.Equal(t, 3, attempts["flaky"])
	assert.Equal(t, 4, attempts["broken"], "one attempt plus three retries")
	mu.Unlock()

	require.Len(t, dlq.written(), 1)
	assert.Equal(t, "broken", string(dlq.written()[0].Key))
	assert.Equal(t, "3", headerValue(dlq.written()[0], HeaderRetryCount))
}
