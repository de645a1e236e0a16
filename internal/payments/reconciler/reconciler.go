package reconciler

import (
	"context"
	"fmt"
	"time"

	"geranium/internal/payments/service"
	"geranium/pkg/logger"

	"github.com/go-co-op/gocron/v2"
)

const jobName = "mpesa-reconcile"

// Reconciler periodically settles M-Pesa payments whose callback never
// arrived.
type Reconciler struct {
	payments  service.PaymentService
	scheduler gocron.Scheduler
	interval  time.Duration
	timeout   time.Duration
	log       *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func New(payments service.PaymentService, interval time.Duration, log *logger.Logger) (*Reconciler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("reconcile interval must be positive, got %s", interval)
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		payments:  payments,
		scheduler: sched,
		interval:  interval,
		timeout:   interval,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

func (r *Reconciler) Start() error {
	_, err := r.scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(r.RunOnce),
		gocron.WithName(jobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", jobName, err)
	}
	r.scheduler.Start()
	r.log.Info("Payment reconciler started", "interval", r.interval.String())
	return nil
}

// RunOnce performs a single reconcile pass.
func (r *Reconciler) RunOnce() {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	report, err := r.payments.ReconcilePending(ctx)
	if err != nil {
		r.log.Error("Payment reconcile failed", "error", err)
		return
	}
	if report.Checked == 0 {
		r.log.Debug("No stale M-Pesa payments")
		return
	}
	r.log.Info("Payment reconcile finished",
		"checked", report.Checked,
		"failed", report.Failed,
		"pending", report.Pending,
		"errors", report.Errors,
	)
}

func (r *Reconciler) Stop(ctx context.Context) error {
	r.cancel()
	done := make(chan error, 1)
	go func() { done <- r.scheduler.Shutdown() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
