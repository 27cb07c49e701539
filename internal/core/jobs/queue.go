package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrJobNotCancellable is returned by Cancel for jobs that already started or finished
var ErrJobNotCancellable = errors.New("job not found or not in cancellable state")

// Queue manages job queue operations
type Queue struct {
	db  *gorm.DB
	now func() time.Time
}

// NewQueue creates a new job queue
func NewQueue(db *gorm.DB) *Queue {
	return &Queue{db: db, now: time.Now}
}

// Enqueue adds a new job to the queue
func (q *Queue) Enqueue(ctx context.Context, tenantID *uuid.UUID, jobType string, payload interface{}, opts EnqueueOptions) (*Job, error) {
	if opts.Queue == "" {
		opts.Queue = "default"
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}

	var metadataJSON datatypes.JSON
	if opts.Metadata != nil {
		metadataBytes, err := json.Marshal(opts.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize metadata: %w", err)
		}
		metadataJSON = metadataBytes
	}

	job := &Job{
		TenantID:    tenantID,
		Queue:       opts.Queue,
		Type:        jobType,
		Payload:     payloadJSON,
		Status:      StatusPending,
		Priority:    opts.Priority,
		MaxRetries:  opts.MaxRetries,
		ScheduledAt: opts.ScheduleAt,
		Metadata:    metadataJSON,
	}

	if err := q.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	return job, nil
}

// Dequeue claims the next runnable job, or returns nil when there is none.
// Pending and retrying jobs are eligible once their scheduled time has passed.
// A processing job whose worker has not settled it within staleAfter is
// treated as abandoned and claimed again. Rows locked by other workers are
// skipped.
func (q *Queue) Dequeue(ctx context.Context, queueName string, staleAfter time.Duration) (*Job, error) {
	var job Job

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := q.now()
		runnable := "status IN ? AND (scheduled_at IS NULL OR scheduled_at <= ?)"
		args := []interface{}{[]JobStatus{StatusPending, StatusRetrying}, now}
		if staleAfter > 0 {
			runnable = "(" + runnable + ") OR (status = ? AND started_at < ?)"
			args = append(args, StatusProcessing, now.Add(-staleAfter))
		}

		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("queue = ?", queueName).
			Where(runnable, args...).
			Order("priority DESC, created_at ASC").
			First(&job).Error
		if err != nil {
			return err
		}

		job.Status = StatusProcessing
		job.StartedAt = &now
		job.Attempts++

		return tx.Save(&job).Error
	})

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}

	return &job, nil
}

// MarkCompleted marks a job as completed
func (q *Queue) MarkCompleted(ctx context.Context, jobID uuid.UUID, result interface{}) error {
	updates := map[string]interface{}{
		"status":       StatusCompleted,
		"completed_at": q.now(),
		"error":        "",
	}

	if result != nil {
		resultJSON, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to serialize result: %w", err)
		}
		updates["result"] = datatypes.JSON(resultJSON)
	}

	return q.db.WithContext(ctx).Model(&Job{}).Where("id = ?", jobID).Updates(updates).Error
}

// MarkFailed records a failed attempt. Jobs with attempts left are scheduled
// again after an exponential backoff; others become failed.
func (q *Queue) MarkFailed(ctx context.Context, jobID uuid.UUID, cause error) (*Job, error) {
	var job Job
	if err := q.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		return nil, fmt.Errorf("failed to find job: %w", err)
	}

	applyFailure(&job, cause, q.now())

	if err := q.db.WithContext(ctx).Save(&job).Error; err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}
	return &job, nil
}

// applyFailure moves job to retrying or failed
func applyFailure(job *Job, cause error, now time.Time) {
	job.Error = cause.Error()
	job.FailedAt = &now

	if !job.Exhausted() {
		scheduleAt := now.Add(time.Duration(calculateBackoff(job.Attempts)) * time.Second)
		job.Status = StatusRetrying
		job.ScheduledAt = &scheduleAt
		return
	}
	job.Status = StatusFailed
	job.CompletedAt = &now
}

// Cancel cancels a pending job
func (q *Queue) Cancel(ctx context.Context, jobID uuid.UUID) error {
	result := q.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status IN ?", jobID, []JobStatus{StatusPending, StatusRetrying}).
		Updates(map[string]interface{}{"status": StatusCancelled, "completed_at": q.now()})

	if result.Error != nil {
		return fmt.Errorf("failed to cancel job: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrJobNotCancellable
	}

	return nil
}

// GetJob retrieves a job by ID
func (q *Queue) GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	var job Job
	if err := q.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs lists jobs with optional filters
func (q *Queue) ListJobs(ctx context.Context, filter JobFilter) ([]Job, error) {
	query := q.filtered(ctx, filter.TenantID)

	if filter.Queue != "" {
		query = query.Where("queue = ?", filter.Queue)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != nil {
		query = query.Where("priority = ?", *filter.Priority)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var jobs []Job
	if err := query.Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// GetStats retrieves statistics about jobs
func (q *Queue) GetStats(ctx context.Context, tenantID *uuid.UUID) (*JobStats, error) {
	stats := &JobStats{
		JobsByQueue: make(map[string]int64),
		JobsByType:  make(map[string]int64),
	}

	var byStatus []struct {
		Status JobStatus
		Count  int64
	}
	if err := q.filtered(ctx, tenantID).Select("status, COUNT(*) as count").Group("status").Find(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", err)
	}
	for _, s := range byStatus {
		stats.TotalJobs += s.Count
		switch s.Status {
		case StatusPending:
			stats.PendingJobs = s.Count
		case StatusProcessing:
			stats.ProcessingJobs = s.Count
		case StatusRetrying:
			stats.RetryingJobs = s.Count
		case StatusCompleted:
			stats.CompletedJobs = s.Count
		case StatusFailed:
			stats.FailedJobs = s.Count
		}
	}

	var queueStats []struct {
		Queue string
		Count int64
	}
	q.filtered(ctx, tenantID).Select("queue, COUNT(*) as count").Group("queue").Find(&queueStats)
	for _, qs := range queueStats {
		stats.JobsByQueue[qs.Queue] = qs.Count
	}

	var typeStats []struct {
		Type  string
		Count int64
	}
	q.filtered(ctx, tenantID).Select("type, COUNT(*) as count").Group("type").Find(&typeStats)
	for _, ts := range typeStats {
		stats.JobsByType[ts.Type] = ts.Count
	}

	var avgWait *float64
	q.filtered(ctx, tenantID).
		Select("AVG(EXTRACT(EPOCH FROM (started_at - created_at)))").
		Where("started_at IS NOT NULL").
		Scan(&avgWait)
	if avgWait != nil {
		stats.AverageWaitTime = *avgWait
	}

	return stats, nil
}

// DeleteOldJobs deletes completed/failed jobs older than the specified duration
func (q *Queue) DeleteOldJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := q.now().Add(-olderThan)

	result := q.db.WithContext(ctx).
		Where("status IN ? AND completed_at < ?", []JobStatus{StatusCompleted, StatusFailed, StatusCancelled}, cutoff).
		Delete(&Job{})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old jobs: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (q *Queue) filtered(ctx context.Context, tenantID *uuid.UUID) *gorm.DB {
	query := q.db.WithContext(ctx).Model(&Job{})
	if tenantID != nil {
		query = query.Where("tenant_id = ?", *tenantID)
	}
	return query
}

// calculateBackoff calculates exponential backoff time in seconds
func calculateBackoff(attempt int) int {
	// 2^attempt seconds, max 1 hour
	if attempt >= 12 {
		return 3600
	}
	backoff := 1 << attempt
	if backoff > 3600 {
		backoff = 3600
	}
	return backoff
}
