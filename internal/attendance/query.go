package attendance

import (
	"context"
	"strings"
	"time"

	"github.com/gathering-portal/backend/internal/models"
	"github.com/gathering-portal/backend/pkg/response"
)

// Paging defaults for the records listing.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is one window of the records listing.
type Page struct {
	Rows       []models.AttendanceRecordView
	Pagination response.Pagination
}

// QueryService serves the read-only audit listing.
type QueryService struct {
	reader RecordReader
	policy *Policy
}

// NewQueryService creates a query service.
func NewQueryService(reader RecordReader, policy *Policy) *QueryService {
	return &QueryService{reader: reader, policy: policy}
}

// NormalizeFilter validates date (YYYY-MM-DD) and category; both may be empty.
func (q *QueryService) NormalizeFilter(date, category string) (Filter, error) {
	var f Filter
	if date = strings.TrimSpace(date); date != "" {
		if _, err := time.Parse(time.DateOnly, date); err != nil {
			return Filter{}, validationErrorf("date must be YYYY-MM-DD")
		}
		f.Date = date
	}
	if strings.TrimSpace(category) != "" {
		cp, err := q.policy.Category(category)
		if err != nil {
			return Filter{}, err
		}
		f.Category = cp.Category
	}
	return f, nil
}

// ListAttendance returns records matching f, most recent first.
// page < 1 becomes 1; pageSize < 1 becomes DefaultPageSize and is capped at MaxPageSize.
func (q *QueryService) ListAttendance(ctx context.Context, f Filter, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	rows, total, err := q.reader.ListRecords(ctx, f, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, storageError("list records", err)
	}
	if rows == nil {
		rows = []models.AttendanceRecordView{}
	}
	return &Page{Rows: rows, Pagination: response.NewPagination(page, pageSize, total)}, nil
}

// ListAll returns every record matching f in one read, so rows committed
// while a report is built cannot shift pages and duplicate lines.
func (q *QueryService) ListAll(ctx context.Context, f Filter) ([]models.AttendanceRecordView, error) {
	rows, err := q.reader.ListAllRecords(ctx, f)
	if err != nil {
		return nil, storageError("list all records", err)
	}
	if rows == nil {
		rows = []models.AttendanceRecordView{}
	}
	return rows, nil
}
