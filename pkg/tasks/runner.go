// Package tasks runs post-response side effects on a bounded worker pool.
// Tasks are attempted once: failures and panics are logged and counted, never retried.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/akeren/lasting-loves-waitlist/internal/log"
	"github.com/akeren/lasting-loves-waitlist/pkg/constants"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
	ResultDropped   = "dropped"
)

type Func func(ctx context.Context) error

// Submitter is the part of the runner that request handlers depend on.
type Submitter interface {
	Submit(ctx context.Context, name string, fn Func) bool
}

type Config struct {
	Workers    int
	QueueSize  int
	Timeout    time.Duration
	Registerer prometheus.Registerer
}

type task struct {
	id   string
	name string
	ctx  context.Context
	fn   Func
}

type Runner struct {
	logger   *log.Logger
	timeout  time.Duration
	tracer   trace.Tracer
	outcomes *prometheus.CounterVec

	mu     sync.RWMutex
	closed bool
	queue  chan task
	wg     sync.WaitGroup
}

func NewRunner(logger *log.Logger, cfg Config) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = constants.DefaultTaskWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = constants.DefaultTaskQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultTaskTimeout
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.NewRegistry()
	}

	r := &Runner{
		logger:   logger,
		timeout:  cfg.Timeout,
		tracer:   otel.Tracer("github.com/akeren/lasting-loves-waitlist/pkg/tasks"),
		outcomes: registerOutcomes(cfg.Registerer),
		queue:    make(chan task, cfg.QueueSize),
	}

	r.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go r.worker()
	}

	logger.Info("Background task runner started", "workers", cfg.Workers, "queue_size", cfg.QueueSize, "timeout", cfg.Timeout)
	return r
}

func registerOutcomes(reg prometheus.Registerer) *prometheus.CounterVec {
	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "background_tasks_total",
			Help: "Background tasks by name and outcome.",
		},
		[]string{"task", "result"},
	)

	if err := reg.Register(outcomes); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(err)
	}
	return outcomes
}

// Submit queues fn without blocking. The task keeps ctx's values (logger,
// correlation id, span) but not its cancellation. It reports false when the
// task was dropped because the queue is full or the runner is shutting down.
func (r *Runner) Submit(ctx context.Context, name string, fn Func) bool {
	t := task{
		id:   uuid.NewString(),
		name: name,
		ctx:  context.WithoutCancel(ctx),
		fn:   fn,
	}
	logger := log.GetLoggerInstanceFromContext(ctx, r.logger)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(logger, t, "runner is shutting down")
		return false
	}

	select {
	case r.queue <- t:
		return true
	default:
		r.drop(logger, t, "queue is full")
		return false
	}
}

func (r *Runner) drop(logger *log.Logger, t task, reason string) {
	r.outcomes.WithLabelValues(t.name, ResultDropped).Inc()
	logger.Warn("Background task dropped", "task", t.name, "task_id", t.id, "reason", reason)
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for t := range r.queue {
		r.run(t)
	}
}

func (r *Runner) run(t task) {
	ctx, cancel := context.WithTimeout(t.ctx, r.timeout)
	defer cancel()

	ctx, span := r.tracer.Start(ctx, "task "+t.name, trace.WithAttributes(
		attribute.String("task.name", t.name),
		attribute.String("task.id", t.id),
	))
	defer span.End()

	logger := log.GetLoggerInstanceFromContext(ctx, r.logger).With("task", t.name, "task_id", t.id)
	start := time.Now()

	err := invoke(ctx, t.fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.outcomes.WithLabelValues(t.name, ResultFailed).Inc()
		logger.Error("Background task failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}

	r.outcomes.WithLabelValues(t.name, ResultSucceeded).Inc()
	logger.Debug("Background task completed", "duration_ms", time.Since(start).Milliseconds())
}

func invoke(ctx context.Context, fn Func) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()
	return fn(ctx)
}

// Shutdown stops intake and waits for queued and running tasks until ctx ends.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Background task runner drained")
		return nil
	case <-ctx.Done():
		r.logger.Warn("Background task runner shutdown timed out", "pending", len(r.queue))
		return fmt.Errorf("tasks: shutdown: %w", ctx.Err())
	}
}
