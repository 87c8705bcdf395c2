// Package worker runs attendance background jobs: follow-ups, reports and token sweeps.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gathering-portal/backend/pkg/queue"
)

// JobSource is the part of *queue.Queue the processor consumes.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (bool, error)
}

// HandlerFunc executes one job.
type HandlerFunc func(ctx context.Context, job *queue.Job) error

// JobMetrics counts processed jobs.
type JobMetrics interface {
	Job(jobType, result string)
}

// Processor dispatches dequeued jobs to handlers by type.
type Processor struct {
	source   JobSource
	handlers map[queue.JobType]HandlerFunc
	logger   *zap.Logger
	metrics  JobMetrics
	backoff  time.Duration
	poll     time.Duration
}

// NewProcessor creates a job processor.
func NewProcessor(source JobSource, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		source:   source,
		handlers: make(map[queue.JobType]HandlerFunc),
		logger:   logger,
		backoff:  queue.RetryBackoff,
		poll:     5 * time.Second,
	}
}

// Handle registers fn for jobs of type t.
func (p *Processor) Handle(t queue.JobType, fn HandlerFunc) {
	p.handlers[t] = fn
}

// SetMetrics installs a job counter.
func (p *Processor) SetMetrics(m JobMetrics) { p.metrics = m }

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	fn, ok := p.handlers[job.Type]
	if !ok {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	return fn(ctx, job)
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("job worker stopping")
			return
		default:
		}

		job, err := p.source.Dequeue(ctx, p.poll)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, p.backoff)
			continue
		}
		if job == nil {
			continue
		}
		p.runOne(ctx, job)
	}
}

func (p *Processor) runOne(ctx context.Context, job *queue.Job) {
	p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	if err := p.Process(ctx, job); err != nil {
		p.logger.Error("job failed", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Error(err))
		dead, reErr := p.source.Retry(ctx, job)
		if reErr != nil {
			p.logger.Error("retry enqueue failed", zap.Error(reErr))
		}
		if dead {
			p.count(job, "dead")
		} else {
			p.count(job, "retry")
		}
		sleep(ctx, p.backoff)
		return
	}
	p.count(job, "ok")
}

func (p *Processor) count(job *queue.Job, result string) {
	if p.metrics != nil {
		p.metrics.Job(string(job.Type), result)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
