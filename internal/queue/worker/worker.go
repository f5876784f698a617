package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/authhub/internal/jobs"
	"github.com/geocoder89/authhub/internal/notifications"
	"github.com/geocoder89/authhub/internal/observability"
	"github.com/geocoder89/authhub/internal/queue/redisclient"
)

// Queue is the slice of the redis client the worker needs; small on purpose
// so tests can fake it.
type Queue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (jobs.Job, error)
	Enqueue(ctx context.Context, j jobs.Job) error
	PromoteDue(ctx context.Context, now time.Time) (int, error)
}

type Config struct {
	// how long each Dequeue blocks before the loop comes up for air and
	// promotes delayed jobs
	DequeueWait time.Duration
}

type Worker struct {
	cfg      Config
	queue    Queue
	notifier notifications.Notifier
	prom     *observability.Prom
	log      *slog.Logger

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, queue Queue, notifier notifications.Notifier, prom *observability.Prom, log *slog.Logger) *Worker {
	if cfg.DequeueWait <= 0 {
		cfg.DequeueWait = 2 * time.Second
	}

	return &Worker{
		cfg:      cfg,
		queue:    queue,
		notifier: notifier,
		prom:     prom,
		log:      log,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	for {
		if ctx.Err() != nil {
			w.log.Info("worker received shutdown signal")
			return nil
		}

		_, err := w.queue.PromoteDue(ctx, time.Now().UTC())

		if err != nil && !errors.Is(err, context.Canceled) {
			w.log.Error("promote delayed jobs", "err", err)
		}

		j, err := w.queue.Dequeue(ctx, w.cfg.DequeueWait)

		if err != nil {
			if errors.Is(err, redisclient.ErrEmpty) {
				continue
			}

			if errors.Is(err, context.Canceled) {
				continue
			}

			w.log.Error("dequeue", "err", err)
			continue
		}

		w.Handle(ctx, j)
	}
}

// Handle runs one job to completion, retrying through the delayed queue with
// exponential backoff until max tries is spent.
func (w *Worker) Handle(ctx context.Context, j jobs.Job) {
	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	start := time.Now()
	err := w.dispatch(ctx, j)

	if w.prom != nil {
		w.prom.JobDuration.WithLabelValues(string(j.Type)).Observe(time.Since(start).Seconds())
	}

	if err == nil {
		w.observeResult(j, "done")
		w.log.Info("job done", "job", j.ID, "type", j.Type, "attempts", j.Attempts)
		return
	}

	j.Attempts++

	if j.Attempts >= j.MaxTries {
		w.observeResult(j, "dead")
		w.log.Error("job dead-lettered", "job", j.ID, "type", j.Type, "attempts", j.Attempts, "err", err)
		return
	}

	msg := err.Error()
	j.LastError = &msg
	j.Status = jobs.JobPending
	j.RunAt = time.Now().UTC().Add(ExponentialBackoff(j.Attempts))
	j.UpdatedAt = time.Now().UTC()

	if qErr := w.queue.Enqueue(ctx, j); qErr != nil {
		w.observeResult(j, "dead")
		w.log.Error("requeue failed, job lost", "job", j.ID, "err", qErr)
		return
	}

	w.observeResult(j, "retried")
	w.log.Warn("job retried", "job", j.ID, "type", j.Type, "attempts", j.Attempts, "err", err)
}

func (w *Worker) dispatch(ctx context.Context, j jobs.Job) error {
	payload, err := jobs.DecodePayload(j)

	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case jobs.PasswordResetPayload:
		return w.notifier.SendPasswordReset(ctx, notifications.SendPasswordResetInput{
			Email:      p.Email,
			ResetToken: p.ResetToken,
			RequestID:  p.RequestID,
		})

	case jobs.WelcomePayload:
		return w.notifier.SendWelcome(ctx, notifications.SendWelcomeInput{
			Email:  p.Email,
			UserID: p.UserID,
		})

	default:
		return fmt.Errorf("%w: %T", jobs.ErrInvalidJobType, payload)
	}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) observeResult(j jobs.Job, result string) {
	if w.prom != nil {
		w.prom.JobResults.WithLabelValues(string(j.Type), result).Inc()
	}
}
