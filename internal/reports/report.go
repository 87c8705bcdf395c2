// Package reports renders daily attendance sheets and publishes them to object storage.
package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gathering-portal/backend/internal/attendance"
	"github.com/gathering-portal/backend/internal/models"
	"github.com/gathering-portal/backend/pkg/storage"
)

var header = []string{
	"recorded_at", "day", "category", "full_name", "email", "group", "cell",
	"status", "fee", "report_required", "record_id",
}

// Render writes rows as CSV with a header line. Times are written in loc.
func Render(w io.Writer, rows []models.AttendanceRecordView, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			r.RecordedAt.In(loc).Format(time.RFC3339),
			r.DayKey,
			string(r.Category),
			r.FullName,
			r.Email,
			r.GroupName,
			r.CellName,
			string(r.Status),
			strconv.Itoa(r.Fee),
			strconv.FormatBool(r.ReportRequired),
			r.ID.String(),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Uploader stores a rendered report.
type Uploader interface {
	UploadReport(ctx context.Context, key string, body io.Reader, contentLength int64) error
}

// Lister reads every record matching a filter.
type Lister interface {
	ListAll(ctx context.Context, f attendance.Filter) ([]models.AttendanceRecordView, error)
}

// Generator builds and uploads daily reports.
type Generator struct {
	records  Lister
	uploader Uploader
	loc      *time.Location
	logger   *zap.Logger
}

// NewGenerator creates a report generator.
func NewGenerator(records Lister, uploader Uploader, loc *time.Location, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{records: records, uploader: uploader, loc: loc, logger: logger}
}

// Generate renders the report for date and category (empty for all) and uploads it.
// It returns the object key and the number of rows written.
func (g *Generator) Generate(ctx context.Context, date string, category models.Category) (string, int, error) {
	if date == "" {
		return "", 0, errors.New("report date is required")
	}
	rows, err := g.records.ListAll(ctx, attendance.Filter{Date: date, Category: category})
	if err != nil {
		return "", 0, fmt.Errorf("list records: %w", err)
	}

	var buf bytes.Buffer
	if err := Render(&buf, rows, g.loc); err != nil {
		return "", 0, fmt.Errorf("render csv: %w", err)
	}
	key := storage.ReportKey(date, string(category))
	if err := g.uploader.UploadReport(ctx, key, &buf, int64(buf.Len())); err != nil {
		return "", 0, err
	}
	g.logger.Info("attendance report generated",
		zap.String("key", key), zap.String("date", date), zap.String("category", strings.ToUpper(string(category))), zap.Int("rows", len(rows)))
	return key, len(rows), nil
}
