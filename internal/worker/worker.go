// Package worker runs the task consumers: a pool of goroutines that
// reserve tasks from the broker, dispatch them to registered handlers and
// acknowledge or retry based on the outcome.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/alxcrm/crm/internal/broker"
	"github.com/alxcrm/crm/internal/log"
	"github.com/alxcrm/crm/internal/metrics"
	"github.com/alxcrm/crm/internal/results"
	"github.com/alxcrm/crm/internal/telemetry"
)

// Handler executes one task. A returned error triggers the retry path.
type Handler func(ctx context.Context, task broker.Task) error

// Config tunes the worker pool.
type Config struct {
	// Concurrency is the number of consumer goroutines.
	Concurrency int
	// Rate limits task executions per second across the pool. Zero
	// disables throttling.
	Rate float64
	// ReserveWait is how long one blocking reserve waits before polling
	// again. Bounds shutdown latency.
	ReserveWait time.Duration
	// DepthPollInterval is how often queue depths are sampled for
	// metrics. Zero disables the sampler.
	DepthPollInterval time.Duration
}

// Worker consumes tasks from the broker.
type Worker struct {
	broker  *broker.Client
	results *results.Store
	cfg     Config
	logger  zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// New creates a worker pool. The results store may be nil.
func New(b *broker.Client, rs *results.Store, cfg Config) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.ReserveWait <= 0 {
		cfg.ReserveWait = 5 * time.Second
	}
	return &Worker{
		broker:   b,
		results:  rs,
		cfg:      cfg,
		logger:   log.WithComponent("worker"),
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to a task name. Registering a name twice
// replaces the previous handler.
func (w *Worker) Register(name string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[name] = h
}

// Run blocks consuming tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	var limiter *rate.Limiter
	if w.cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(w.cfg.Rate), 1)
	}

	w.logger.Info().
		Str("event", "worker.started").
		Int("concurrency", w.cfg.Concurrency).
		Float64("rate", w.cfg.Rate).
		Msg("worker pool started")

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.consume(ctx, id, limiter)
		}(i)
	}

	if w.cfg.DepthPollInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.pollDepth(ctx)
		}()
	}

	wg.Wait()
	w.logger.Info().Str("event", "worker.stopped").Msg("worker pool stopped")
	return ctx.Err()
}

func (w *Worker) consume(ctx context.Context, id int, limiter *rate.Limiter) {
	for {
		if ctx.Err() != nil {
			return
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}

		task, err := w.broker.Reserve(ctx, w.cfg.ReserveWait)
		if errors.Is(err, broker.ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error().Err(err).
				Str("event", "worker.reserve_error").
				Int("consumer", id).
				Msg("failed to reserve task")
			continue
		}

		w.process(ctx, task)
	}
}

func (w *Worker) process(ctx context.Context, task broker.Task) {
	ctx = log.ContextWithTaskID(ctx, task.ID)
	logger := w.logger.With().
		Str("task_id", task.ID).
		Str("task", task.Name).
		Int("attempt", task.Attempt).
		Logger()

	tracer := telemetry.Tracer("worker")
	ctx, span := tracer.Start(ctx, "task "+task.Name)
	defer span.End()

	started := time.Now()
	err := w.dispatch(ctx, task)
	elapsed := time.Since(started)

	if err == nil {
		if ackErr := w.broker.Ack(ctx, task); ackErr != nil {
			logger.Error().Err(ackErr).Str("event", "worker.ack_error").Msg("failed to ack task")
		}
		metrics.RecordTask(task.Name, "ok", elapsed.Seconds())
		w.record(ctx, task, results.StatusOK, "", started, elapsed)
		logger.Info().
			Str("event", "worker.task_done").
			Dur("duration", elapsed).
			Msg("task completed")
		return
	}

	logger.Warn().Err(err).
		Str("event", "worker.task_failed").
		Dur("duration", elapsed).
		Msg("task failed")

	// Retry uses a context detached from cancellation so a shutdown
	// mid-failure still requeues the task instead of losing it.
	requeueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	requeued, retryErr := w.broker.Retry(requeueCtx, task)
	if retryErr != nil {
		logger.Error().Err(retryErr).Str("event", "worker.retry_error").Msg("failed to retry task")
		return
	}
	if requeued {
		metrics.RecordTask(task.Name, "error", elapsed.Seconds())
		w.record(requeueCtx, task, results.StatusError, err.Error(), started, elapsed)
		return
	}
	metrics.RecordTask(task.Name, "dead", elapsed.Seconds())
	w.record(requeueCtx, task, results.StatusDead, err.Error(), started, elapsed)
}

// dispatch runs the handler with panic isolation so one bad task cannot
// take the consumer down.
func (w *Worker) dispatch(ctx context.Context, task broker.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	w.mu.RLock()
	h, ok := w.handlers[task.Name]
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no handler registered for task %q", task.Name)
	}
	return h(ctx, task)
}

func (w *Worker) record(ctx context.Context, task broker.Task, status results.Status, errMsg string, started time.Time, elapsed time.Duration) {
	if w.results == nil {
		return
	}
	res := results.Result{
		TaskID:     task.ID,
		Name:       task.Name,
		Status:     status,
		Error:      errMsg,
		Attempt:    task.Attempt,
		EnqueuedAt: task.EnqueuedAt,
		StartedAt:  started.UTC(),
		FinishedAt: started.Add(elapsed).UTC(),
		DurationMS: elapsed.Milliseconds(),
	}
	if err := w.results.Put(ctx, res); err != nil {
		w.logger.Error().Err(err).
			Str("event", "worker.result_error").
			Str("task_id", task.ID).
			Msg("failed to record task result")
	}
}

func (w *Worker) pollDepth(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.DepthPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending, err := w.broker.Depth(ctx)
			if err != nil {
				continue
			}
			processing, err := w.broker.ProcessingDepth(ctx)
			if err != nil {
				continue
			}
			dead, err := w.broker.DeadDepth(ctx)
			if err != nil {
				continue
			}
			metrics.RecordQueueDepth(pending, processing, dead)
		}
	}
}
