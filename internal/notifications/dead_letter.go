package notifications

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"geranium/pkg/logger"
)

const recentDeadLetters = 50

type DeadLetter struct {
	Notification Notification `json:"notification"`
	Reason       string       `json:"reason"`
	At           time.Time    `json:"at"`
}

// DeadLetterSink receives notifications that could not be delivered.
type DeadLetterSink interface {
	Record(ctx context.Context, n Notification, reason error)
}

// LogDeadLetters logs every failure and keeps the most recent ones for
// operator inspection.
type LogDeadLetters struct {
	log    *logger.Logger
	total  atomic.Int64
	mu     sync.Mutex
	recent []DeadLetter
}

func NewLogDeadLetters(log *logger.Logger) *LogDeadLetters {
	return &LogDeadLetters{log: log}
}

func (d *LogDeadLetters) Record(_ context.Context, n Notification, reason error) {
	d.total.Add(1)

	entry := DeadLetter{Notification: n, At: time.Now().UTC()}
	if reason != nil {
		entry.Reason = reason.Error()
	}
	bookingID := ""
	if n.Booking != nil {
		bookingID = n.Booking.ID
	}
	d.log.Error("Notification dead-lettered",
		"notification_id", n.ID,
		"kind", n.Kind,
		"booking_id", bookingID,
		"reason", entry.Reason,
	)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.recent = append(d.recent, entry)
	if len(d.recent) > recentDeadLetters {
		d.recent = d.recent[len(d.recent)-recentDeadLetters:]
	}
}

func (d *LogDeadLetters) Total() int64 {
	return d.total.Load()
}

func (d *LogDeadLetters) Recent() []DeadLetter {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DeadLetter(nil), d.recent...)
}
