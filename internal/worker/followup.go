package worker

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gathering-portal/backend/pkg/queue"
)

// FollowUpCreator opens a follow-up for a record; created is false when one already existed.
type FollowUpCreator interface {
	CreateFollowUp(ctx context.Context, recordID uuid.UUID) (created bool, err error)
}

// FollowUpHandler returns the handler for follow-up jobs. The row normally exists
// already, written with the record; the handler re-asserts it idempotently.
func FollowUpHandler(store FollowUpCreator, logger *zap.Logger) HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, job *queue.Job) error {
		var payload queue.FollowUpPayload
		if err := job.Decode(&payload); err != nil {
			return err
		}
		created, err := store.CreateFollowUp(ctx, payload.RecordID)
		if err != nil {
			return err
		}
		logger.Info("attendance follow-up opened",
			zap.String("record_id", payload.RecordID.String()), zap.Bool("created", created))
		return nil
	}
}
