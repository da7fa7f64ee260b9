// Package relay moves profile change events from the SQLite outbox to the
// event publisher.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/profiledir/internal/directory"
	"github.com/kalambet/profiledir/internal/events"
	"github.com/kalambet/profiledir/internal/storage"
)

const defaultPollInterval = 500 * time.Millisecond

var relayedTypes = []string{storage.JobTypeProfileEvent}

// JobStore is the slice of the outbox the worker needs.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// Worker publishes outbox jobs one at a time. A failed publish goes back to
// the outbox with backoff until its attempts run out.
type Worker struct {
	store     JobStore
	publisher events.Publisher
	poll      time.Duration
	logger    *slog.Logger
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the worker's logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorker returns a worker polling every pollInterval, or every 500ms when
// pollInterval is not positive.
func NewWorker(store JobStore, publisher events.Publisher, pollInterval time.Duration, opts ...Option) *Worker {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	w := &Worker{
		store:     store,
		publisher: publisher,
		poll:      pollInterval,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the outbox, sleeps for the poll interval, and repeats until
// ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		w.drain(ctx)
		timer.Reset(w.poll)
	}
}

func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		worked, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("relay iteration failed", "error", err)
			return
		}
		if !worked {
			return
		}
	}
}

// RunOnce claims one job and publishes it. It reports whether a job was
// claimed; a publish failure is recorded on the job and is not returned.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(relayedTypes)
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.publish(ctx, job); err != nil {
		w.logger.Warn("relay job failed", "job_id", job.ID, "attempt", job.Attempts+1, "max_attempts", job.MaxAttempts, "error", err)
		if ferr := w.store.FailJob(job.ID, err.Error()); ferr != nil {
			w.logger.Error("recording job failure", "job_id", job.ID, "error", ferr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	w.logger.Debug("relayed profile event", "job_id", job.ID)
	return true, nil
}

func (w *Worker) publish(ctx context.Context, job *storage.Job) error {
	var p storage.ChangePayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	event, err := events.NewEvent(directory.Change{Kind: p.Kind, Profile: p.Profile, At: p.At})
	if err != nil {
		return err
	}
	// The job id doubles as the event id so redeliveries share one id.
	event.ID = job.ID

	if err := w.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("publishing %s for %s: %w", event.Type, event.ProfileID, err)
	}
	return nil
}
