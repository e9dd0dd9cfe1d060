// Package jobs runs fire-and-forget follow-up work outside of the request path.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"osrs-tracker/internal/config"
	"osrs-tracker/internal/constants"
	"osrs-tracker/internal/domain"
	"osrs-tracker/internal/middleware"
	"osrs-tracker/internal/reporting"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Kind string

const (
	KindConfirmPlayerType Kind = "ConfirmPlayerType"
	KindImportPlayer      Kind = "ImportPlayer"
)

type Job struct {
	Kind      Kind
	PlayerID  int64
	Username  string
	RequestID string

	attempt int
}

type Handler func(ctx context.Context, job Job) error

// Queue is an in-process job queue with a fixed worker pool. Failed jobs are retried with
// exponential backoff unless the failure is caused by the input rather than the environment.
type Queue struct {
	jobs        chan Job
	handlers    map[Kind]Handler
	workers     int
	maxAttempts int
	baseDelay   time.Duration
	logger      zerolog.Logger

	mu      sync.RWMutex
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	group   errgroup.Group
	timers  sync.WaitGroup
}

func NewQueue(cfg *config.Config, logger zerolog.Logger) *Queue {
	return New(cfg.JobWorkers, cfg.JobQueueSize, cfg.JobMaxAttempts, constants.JobRetryBaseDelay, logger)
}

func New(workers, size, maxAttempts int, baseDelay time.Duration, logger zerolog.Logger) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		jobs:        make(chan Job, size),
		handlers:    make(map[Kind]Handler),
		workers:     workers,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      logger.With().Str("component", "jobs").Logger(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Register must be called before Start.
func (q *Queue) Register(kind Kind, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = handler
}

// Enqueue never blocks. Jobs are dropped with a warning when the queue is full or stopped.
func (q *Queue) Enqueue(job Job) {
	job.attempt = 1
	q.enqueue(job)
}

func (q *Queue) enqueue(job Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	logger := q.jobLogger(job)
	if q.stopped {
		logger.Warn().Msg("queue stopped, dropping job")
		return false
	}

	select {
	case q.jobs <- job:
		logger.Debug().Msg("job enqueued")
		return true
	default:
		logger.Warn().Int("capacity", cap(q.jobs)).Msg("queue full, dropping job")
		return false
	}
}

func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true

	for range q.workers {
		q.group.Go(func() error {
			for job := range q.jobs {
				q.run(job)
			}
			return nil
		})
	}
	q.logger.Info().Int("workers", q.workers).Msg("job queue started")
}

// Stop refuses new jobs, lets workers drain the queue and waits for them until ctx is done.
// Jobs still running at that point see their context cancelled.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		// workers are the only ones scheduling retries
		_ = q.group.Wait()
		q.timers.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		q.logger.Info().Msg("job queue stopped")
		return nil
	case <-ctx.Done():
		q.cancel()
		return fmt.Errorf("job queue did not drain: %w", ctx.Err())
	}
}

func (q *Queue) run(job Job) {
	logger := q.jobLogger(job)

	q.mu.RLock()
	handler, ok := q.handlers[job.Kind]
	q.mu.RUnlock()
	if !ok {
		logger.Error().Msg("no handler registered for job")
		return
	}

	ctx := logger.WithContext(q.ctx)
	if job.RequestID != "" {
		ctx = middleware.WithRequestID(ctx, job.RequestID)
	}
	ctx, cancel := context.WithTimeout(ctx, constants.JobTimeout)
	defer cancel()

	start := time.Now()
	err := handler(ctx, job)
	if err == nil {
		logger.Info().Dur("duration", time.Since(start)).Msg("job completed")
		return
	}

	if !Retryable(err) {
		logger.Info().Err(err).Msg("job rejected, not retrying")
		return
	}

	if job.attempt >= q.maxAttempts {
		reporting.Report(ctx, logger, fmt.Errorf("job %s failed after %d attempts: %w", job.Kind, job.attempt, err), map[string]string{
			"job":      string(job.Kind),
			"username": job.Username,
		})
		return
	}

	delay := q.baseDelay << (job.attempt - 1)
	logger.Warn().Err(err).Dur("retry_in", delay).Msg("job failed, retrying")

	job.attempt++
	q.timers.Add(1)
	time.AfterFunc(delay, func() {
		defer q.timers.Done()
		q.enqueue(job)
	})
}

func (q *Queue) jobLogger(job Job) zerolog.Logger {
	ctx := q.logger.With().
		Str("job", string(job.Kind)).
		Str("username", job.Username).
		Int64("player_id", job.PlayerID).
		Int("attempt", job.attempt)
	if job.RequestID != "" {
		ctx = ctx.Str("request_id", job.RequestID)
	}
	return ctx.Logger()
}

var permanentErrors = []error{
	domain.ErrInvalidFormat,
	domain.ErrValidation,
	domain.ErrNotFound,
	domain.ErrPlayerNotFound,
	domain.ErrTooSoon,
	domain.ErrImportTooSoon,
}

// Retryable reports whether err may go away on a later attempt.
func Retryable(err error) bool {
	for _, permanent := range permanentErrors {
		if errors.Is(err, permanent) {
			return false
		}
	}
	return true
}
