package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueFollowUps is the Redis list key for attendance follow-up jobs.
	QueueFollowUps = "worker:attendance:followups"
	// QueueReports is the Redis list key for daily report jobs.
	QueueReports = "worker:attendance:reports"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeFollowUp JobType = "attendance_followup"
	JobTypeReport   JobType = "attendance_report"
)

// FollowUpPayload is the payload for follow-up jobs.
type FollowUpPayload struct {
	RecordID uuid.UUID `json:"record_id"`
}

// ReportPayload is the payload for daily report jobs.
type ReportPayload struct {
	Date        string    `json:"date"`
	Category    string    `json:"category"`
	RequestedBy uuid.UUID `json:"requested_by"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Decode unmarshals the job payload into v.
func (j *Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Type, err)
	}
	return nil
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// NewJob builds an envelope for payload.
func NewJob(t JobType, payload any) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   body,
		CreatedAt: time.Now(),
	}, nil
}

// KeyFor returns the list key jobs of type t live on.
func KeyFor(t JobType) (string, error) {
	switch t {
	case JobTypeFollowUp:
		return QueueFollowUps, nil
	case JobTypeReport:
		return QueueReports, nil
	default:
		return "", fmt.Errorf("unknown job type %q", t)
	}
}

func (q *Queue) push(ctx context.Context, job *Job) error {
	key, err := KeyFor(job.Type)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}

// EnqueueFollowUp enqueues a follow-up job for a report-required record.
func (q *Queue) EnqueueFollowUp(ctx context.Context, recordID uuid.UUID) error {
	job, err := NewJob(JobTypeFollowUp, FollowUpPayload{RecordID: recordID})
	if err != nil {
		return err
	}
	if err := q.push(ctx, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued follow-up job", zap.String("job_id", job.ID), zap.String("record_id", recordID.String()))
	return nil
}

// EnqueueReport enqueues a daily report job and returns its id.
func (q *Queue) EnqueueReport(ctx context.Context, payload ReportPayload) (string, error) {
	job, err := NewJob(JobTypeReport, payload)
	if err != nil {
		return "", err
	}
	if err := q.push(ctx, job); err != nil {
		return "", err
	}
	q.logger.Debug("enqueued report job", zap.String("job_id", job.ID), zap.String("date", payload.Date), zap.String("category", payload.Category))
	return job.ID, nil
}

// Dequeue blocks up to timeout for a job on any attendance queue. A nil job
// with nil error means the wait timed out.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, QueueFollowUps, QueueReports).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
// It reports whether the job was dead-lettered.
func (q *Queue) Retry(ctx context.Context, job *Job) (bool, error) {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		raw, err := json.Marshal(job)
		if err != nil {
			return false, err
		}
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return false, err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return true, nil
	}
	if err := q.push(ctx, job); err != nil {
		return false, err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return false, nil
}
