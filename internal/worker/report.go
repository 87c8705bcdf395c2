package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/gathering-portal/backend/internal/models"
	"github.com/gathering-portal/backend/pkg/queue"
)

// ReportGenerator builds and stores a daily report.
type ReportGenerator interface {
	Generate(ctx context.Context, date string, category models.Category) (key string, rows int, err error)
}

// ReportHandler returns the handler for daily report jobs.
func ReportHandler(gen ReportGenerator, logger *zap.Logger) HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, job *queue.Job) error {
		var payload queue.ReportPayload
		if err := job.Decode(&payload); err != nil {
			return err
		}
		key, rows, err := gen.Generate(ctx, payload.Date, models.Category(payload.Category))
		if err != nil {
			return err
		}
		logger.Info("report job done", zap.String("job_id", job.ID), zap.String("key", key), zap.Int("rows", rows),
			zap.String("requested_by", payload.RequestedBy.String()))
		return nil
	}
}
