package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// settleTimeout bounds the status write that follows a job, which must
// happen even when the worker is shutting down
const settleTimeout = 10 * time.Second

// ExhaustedFunc is called once a job has failed for the last time
type ExhaustedFunc func(ctx context.Context, job *Job, err error)

// Worker processes jobs from a queue
type Worker struct {
	store       Store
	config      WorkerConfig
	handlers    map[string]JobHandler
	onExhausted ExhaustedFunc
	logger      zerolog.Logger
	mu          sync.RWMutex
	stopped     bool
	wg          sync.WaitGroup
}

// NewWorker creates a new job worker
func NewWorker(store Store, config WorkerConfig, logger zerolog.Logger) *Worker {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	return &Worker{
		store:    store,
		config:   config,
		handlers: make(map[string]JobHandler),
		logger:   logger.With().Str("queue", config.Queue).Logger(),
	}
}

// RegisterHandler registers a job handler for a specific job type
func (w *Worker) RegisterHandler(handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[handler.GetType()] = handler
	w.logger.Debug().Str("job_type", handler.GetType()).Msg("registered job handler")
}

// OnExhausted sets the callback for jobs that will not be retried again
func (w *Worker) OnExhausted(fn ExhaustedFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onExhausted = fn
}

// Start starts the worker pool
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("worker is stopped, cannot restart")
	}
	w.mu.Unlock()

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i+1)
	}

	w.logger.Info().Int("concurrency", w.config.Concurrency).Msg("job worker started")
	return nil
}

// Stop gracefully stops the worker pool
func (w *Worker) Stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info().Msg("job worker stopped")
}

// Wait waits for all workers to finish
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			w.mu.RLock()
			stopped := w.stopped
			w.mu.RUnlock()
			if stopped {
				return
			}

			// drain everything runnable before waiting for the next tick
			for {
				err := w.processNextJob(ctx, workerID)
				if errors.Is(err, ErrNoJobsAvailable) {
					break
				}
				if err != nil {
					w.logger.Warn().Err(err).Int("worker", workerID).Msg("job worker error")
					break
				}
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// ErrNoJobsAvailable is returned when no jobs are available
var ErrNoJobsAvailable = errors.New("no jobs available")

// processNextJob processes the next available job
func (w *Worker) processNextJob(ctx context.Context, workerID int) error {
	job, err := w.store.Dequeue(ctx, w.config.Queue, w.staleAfter())
	if err != nil {
		return fmt.Errorf("failed to dequeue job: %w", err)
	}
	if job == nil {
		return ErrNoJobsAvailable
	}

	log := w.logger.With().
		Int("worker", workerID).
		Str("job_id", job.ID.String()).
		Str("job_type", job.Type).
		Int("attempt", job.Attempts).
		Logger()

	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	if !exists {
		log.Error().Msg("no handler registered for job type")
		w.fail(ctx, job, fmt.Errorf("no handler registered for job type: %s", job.Type), log)
		return nil
	}

	jobCtx := ctx
	if w.config.Timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.config.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	err = w.handle(jobCtx, handler, job)
	duration := time.Since(startTime)

	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Msg("job failed")
		w.fail(ctx, job, err, log)
		return nil
	}

	log.Debug().Dur("duration", duration).Msg("job completed")
	settleCtx, cancel := settleContext(ctx)
	defer cancel()
	if err := w.store.MarkCompleted(settleCtx, job.ID, nil); err != nil {
		log.Warn().Err(err).Msg("failed to mark job as completed")
	}
	return nil
}

func (w *Worker) handle(ctx context.Context, handler JobHandler, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, job)
}

// staleAfter is how long a claimed job may stay processing before another
// worker reclaims it. Without a job timeout nothing is reclaimed.
func (w *Worker) staleAfter() time.Duration {
	if w.config.Timeout <= 0 {
		return 0
	}
	return w.config.Timeout + settleTimeout
}

func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

func (w *Worker) fail(ctx context.Context, job *Job, cause error, log zerolog.Logger) {
	ctx, cancel := settleContext(ctx)
	defer cancel()

	updated, err := w.store.MarkFailed(ctx, job.ID, cause)
	if err != nil {
		log.Warn().Err(err).Msg("failed to mark job as failed")
		return
	}
	if updated.Status != StatusFailed {
		entry := log.Info()
		if updated.ScheduledAt != nil {
			entry = entry.Time("retry_at", *updated.ScheduledAt)
		}
		entry.Msg("job scheduled for retry")
		return
	}

	w.mu.RLock()
	onExhausted := w.onExhausted
	w.mu.RUnlock()
	if onExhausted != nil {
		onExhausted(ctx, updated, cause)
	}
}

// WorkerPool manages multiple workers across different queues
type WorkerPool struct {
	workers []*Worker
	mu      sync.RWMutex
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool() *WorkerPool {
	return &WorkerPool{
		workers: make([]*Worker, 0),
	}
}

// AddWorker adds a worker to the pool
func (p *WorkerPool) AddWorker(worker *Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workers = append(p.workers, worker)
}

// Start starts all workers in the pool
func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, worker := range p.workers {
		if err := worker.Start(ctx); err != nil {
			return fmt.Errorf("failed to start worker: %w", err)
		}
	}

	return nil
}

// Stop stops all workers in the pool
func (p *WorkerPool) Stop() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var wg sync.WaitGroup
	for _, worker := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Stop()
		}(worker)
	}

	wg.Wait()
}

// Wait waits for all workers to finish
func (p *WorkerPool) Wait() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, worker := range p.workers {
		worker.Wait()
	}
}
