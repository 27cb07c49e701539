package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Service provides high-level job queue functionality
type Service struct {
	queue      *Queue
	workerPool *WorkerPool
	logger     zerolog.Logger
}

// NewService creates a new job service
func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{
		queue:      NewQueue(db),
		workerPool: NewWorkerPool(),
		logger:     logger,
	}
}

// Queue exposes the underlying queue
func (s *Service) Queue() *Queue {
	return s.queue
}

// Cancel cancels a pending job
func (s *Service) Cancel(ctx context.Context, jobID uuid.UUID) error {
	return s.queue.Cancel(ctx, jobID)
}

// ListJobs lists jobs with filters
func (s *Service) ListJobs(ctx context.Context, filter JobFilter) ([]Job, error) {
	return s.queue.ListJobs(ctx, filter)
}

// GetStats retrieves job statistics
func (s *Service) GetStats(ctx context.Context, tenantID *uuid.UUID) (*JobStats, error) {
	return s.queue.GetStats(ctx, tenantID)
}

// RegisterWorker creates and registers a worker for a queue
func (s *Service) RegisterWorker(config WorkerConfig, handlers ...JobHandler) *Worker {
	worker := NewWorker(s.queue, config, s.logger)

	for _, handler := range handlers {
		worker.RegisterHandler(handler)
	}

	s.workerPool.AddWorker(worker)
	return worker
}

// StartWorkers starts all registered workers
func (s *Service) StartWorkers(ctx context.Context) error {
	return s.workerPool.Start(ctx)
}

// StopWorkers stops all workers
func (s *Service) StopWorkers() {
	s.workerPool.Stop()
}

// WaitForWorkers waits for all workers to finish
func (s *Service) WaitForWorkers() {
	s.workerPool.Wait()
}

// Cleanup deletes old completed/failed jobs
func (s *Service) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.queue.DeleteOldJobs(ctx, olderThan)
}
