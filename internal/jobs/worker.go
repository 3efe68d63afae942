package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/observability"

	"github.com/cenkalti/backoff/v5"
)

// Handler processes a task payload. Wrap errors with backoff.Permanent to skip retries.
type Handler func(ctx context.Context, payload json.RawMessage) error

// ErrUnknownKind is returned for tasks with no registered handler.
var ErrUnknownKind = errors.New("jobs: no handler for task kind")

// Worker drains a Queue and runs tasks with exponential backoff.
type Worker struct {
	queue    Queue
	handlers map[string]Handler
	mu       sync.RWMutex

	maxTries     uint
	maxElapsed   time.Duration
	initialDelay time.Duration
	pollWait     time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Worker.
type Option func(*Worker)

// WithMaxTries bounds attempts per task.
func WithMaxTries(n uint) Option {
	return func(w *Worker) { w.maxTries = n }
}

// WithInitialDelay sets the first retry delay.
func WithInitialDelay(d time.Duration) Option {
	return func(w *Worker) { w.initialDelay = d }
}

// WithPollWait sets how long one Dequeue call blocks.
func WithPollWait(d time.Duration) Option {
	return func(w *Worker) { w.pollWait = d }
}

// NewWorker returns a stopped worker on queue.
func NewWorker(queue Queue, opts ...Option) *Worker {
	w := &Worker{
		queue:        queue,
		handlers:     make(map[string]Handler),
		maxTries:     5,
		maxElapsed:   2 * time.Minute,
		initialDelay: 500 * time.Millisecond,
		pollWait:     time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Register installs the handler for kind, replacing any previous one.
func (w *Worker) Register(kind string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = h
}

// Enqueue hands a task to the underlying queue.
func (w *Worker) Enqueue(ctx context.Context, task Task) error {
	return w.queue.Enqueue(ctx, task)
}

// Start launches the drain loop. Stop or ctx cancellation ends it.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
}

// Stop ends the drain loop and waits for the in-flight task.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		task, err := w.queue.Dequeue(ctx, w.pollWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			middleware.Logger.Error("Dequeue background task failed", slog.String("error", err.Error()))
			select {
			case <-time.After(w.pollWait):
			case <-ctx.Done():
				return
			}
			continue
		}
		if task == nil {
			continue
		}
		_ = w.Process(ctx, *task)
	}
}

// Process runs one task to completion, retrying transient failures. Failures are logged and
// counted here; the returned error is informational.
func (w *Worker) Process(ctx context.Context, task Task) error {
	w.mu.RLock()
	h, ok := w.handlers[task.Kind]
	w.mu.RUnlock()

	logger := middleware.Logger.With(slog.String("task_id", task.ID), slog.String("kind", task.Kind))

	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownKind, task.Kind)
		logger.Error("Dropping background task", slog.String("error", err.Error()))
		observability.BackgroundTasks.WithLabelValues(task.Kind, "dropped").Inc()
		observability.BackgroundTaskFailures.WithLabelValues(task.Kind).Inc()
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = w.initialDelay

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		return struct{}{}, h(ctx, task.Payload)
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(w.maxTries),
		backoff.WithMaxElapsedTime(w.maxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("Background task failed, retrying",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", next),
			)
		}),
	)

	observability.BackgroundTasks.WithLabelValues(task.Kind, observability.Outcome(err)).Inc()
	if err != nil {
		observability.BackgroundTaskFailures.WithLabelValues(task.Kind).Inc()
		logger.Error("Background task failed",
			slog.String("error", err.Error()),
			slog.Int("attempts", attempts),
		)
		return err
	}
	logger.Debug("Background task done", slog.Int("attempts", attempts))
	return nil
}
