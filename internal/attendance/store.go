package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gathering-portal/backend/internal/models"
)

// TokenStore persists issued tokens. GetToken returns ErrNotFound for unknown values.
type TokenStore interface {
	CreateToken(ctx context.Context, t *models.AttendanceToken) error
	GetToken(ctx context.Context, value string) (*models.AttendanceToken, error)
}

// InsertOutcome tags the result of an idempotent insert.
type InsertOutcome int

const (
	// Inserted means this call created the record.
	Inserted InsertOutcome = iota + 1
	// Conflict means a record for the triple already existed; Record holds it.
	Conflict
)

func (o InsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// InsertResult is Inserted(record) or Conflict(existing). Failures travel as errors.
type InsertResult struct {
	Outcome InsertOutcome
	Record  *models.AttendanceRecord
}

// RecordStore performs the atomic insert-or-fetch on (subject, category, day).
// Inserting a report-required record also opens its follow-up atomically.
type RecordStore interface {
	InsertRecord(ctx context.Context, rec *models.AttendanceRecord) (InsertResult, error)
}

// Filter narrows a records listing. Zero values match everything.
type Filter struct {
	Date     string
	Category models.Category
}

// RecordReader serves the audit listing. ListAllRecords reads one snapshot
// without paging.
type RecordReader interface {
	ListRecords(ctx context.Context, f Filter, limit, offset int) ([]models.AttendanceRecordView, int, error)
	ListAllRecords(ctx context.Context, f Filter) ([]models.AttendanceRecordView, error)
}

// Notifier receives newly inserted records (live board, event stream).
type Notifier interface {
	Publish(ctx context.Context, rec *models.AttendanceRecord) error
}

// FollowUpEnqueuer schedules manual follow-up for report-required records.
type FollowUpEnqueuer interface {
	EnqueueFollowUp(ctx context.Context, recordID uuid.UUID) error
}

// Metrics counts issuance and check-in outcomes.
type Metrics interface {
	TokenIssued(category models.Category)
	CheckIn(category models.Category, outcome string)
}

// TokenSweeper removes tokens that expired before a cutoff.
type TokenSweeper interface {
	DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}

type nopMetrics struct{}

func (nopMetrics) TokenIssued(models.Category)     {}
func (nopMetrics) CheckIn(models.Category, string) {}
