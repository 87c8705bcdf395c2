package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gathering-portal/backend/internal/clock"
	"github.com/gathering-portal/backend/internal/models"
)

func TestListAttendanceRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	subject := uuid.New()
	f.store.users[subject] = models.User{ID: subject, FullName: "Kim Minji", Email: "minji@example.com", GroupName: "Youth", CellName: "Cell 3"}

	f.clock.Set(f.anchor.Add(45 * time.Minute))
	out, err := f.processor.CheckIn(ctx, subject, nil, f.issue(t, "GENERAL").Value, "")
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	q := NewQueryService(f.store, f.policy)
	filter, err := q.NormalizeFilter(out.Record.DayKey, "general")
	if err != nil {
		t.Fatalf("NormalizeFilter: %v", err)
	}
	page, err := q.ListAttendance(ctx, filter, 1, 20)
	if err != nil {
		t.Fatalf("ListAttendance: %v", err)
	}
	if len(page.Rows) != 1 || page.Pagination.Total != 1 || page.Pagination.TotalPages != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	row := page.Rows[0]
	if row.ID != out.Record.ID || row.Status != models.StatusLate || row.Fee != 1000 {
		t.Errorf("row does not match record: %+v", row)
	}
	if row.FullName != "Kim Minji" || row.CellName != "Cell 3" {
		t.Errorf("profile not joined: %+v", row)
	}

	other, _ := q.NormalizeFilter("2024-03-04", "")
	empty, err := q.ListAttendance(ctx, other, 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Rows == nil || len(empty.Rows) != 0 || empty.Pagination.TotalPages != 0 {
		t.Errorf("expected empty non-nil rows, got %+v", empty)
	}
}

func TestListAttendancePaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 45; i++ {
		f.clock.Set(f.anchor.Add(time.Duration(i) * time.Second))
		if _, err := f.processor.CheckIn(ctx, uuid.New(), nil, f.issue(t, "GENERAL").Value, ""); err != nil {
			t.Fatal(err)
		}
	}
	q := NewQueryService(f.store, f.policy)

	p, err := q.ListAttendance(ctx, Filter{}, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if p.Pagination.Page != 1 || p.Pagination.PageSize != DefaultPageSize || p.Pagination.TotalPages != 3 || len(p.Rows) != 20 {
		t.Errorf("defaults not applied: %+v", p.Pagination)
	}
	if !p.Rows[0].RecordedAt.After(p.Rows[1].RecordedAt) {
		t.Error("rows should be most recent first")
	}

	last, _ := q.ListAttendance(ctx, Filter{}, 3, 20)
	if len(last.Rows) != 5 {
		t.Errorf("expected 5 rows on last page, got %d", len(last.Rows))
	}

	capped, _ := q.ListAttendance(ctx, Filter{}, 1, 1000)
	if capped.Pagination.PageSize != MaxPageSize {
		t.Errorf("page size not capped: %d", capped.Pagination.PageSize)
	}

	all, err := q.ListAll(ctx, Filter{Category: models.CategoryGeneral})
	if err != nil || len(all) != 45 {
		t.Errorf("ListAll: %d rows, %v", len(all), err)
	}
}

func TestNormalizeFilterValidation(t *testing.T) {
	q := NewQueryService(newMemStore(), DefaultPolicy())
	if _, err := q.NormalizeFilter("03/03/2024", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("bad date: got %v", err)
	}
	if _, err := q.NormalizeFilter("", "PICNIC"); !errors.Is(err, ErrValidation) {
		t.Errorf("bad category: got %v", err)
	}
	f, err := q.NormalizeFilter("", "")
	if err != nil || f != (Filter{}) {
		t.Errorf("empty filter: %+v, %v", f, err)
	}
}

// committingReader commits a new record every time a page is read, like a
// check-in landing while a report is being built.
type committingReader struct {
	*memStore
	clock *clock.Fixed
}

func (r *committingReader) ListRecords(ctx context.Context, f Filter, limit, offset int) ([]models.AttendanceRecordView, int, error) {
	r.clock.Advance(time.Second)
	rec := &models.AttendanceRecord{ID: uuid.New(), SubjectID: uuid.New(), Category: models.CategoryGeneral,
		DayKey: "2024-03-03", Status: models.StatusPresent, RecordedAt: r.clock.Now()}
	if _, err := r.memStore.InsertRecord(ctx, rec); err != nil {
		return nil, 0, err
	}
	return r.memStore.ListRecords(ctx, f, limit, offset)
}

func TestListAllReadsOneSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 250; i++ {
		f.clock.Set(f.anchor.Add(time.Duration(i) * time.Second))
		if _, err := f.processor.CheckIn(ctx, uuid.New(), nil, f.issue(t, "GENERAL").Value, ""); err != nil {
			t.Fatal(err)
		}
	}

	q := NewQueryService(&committingReader{memStore: f.store, clock: f.clock}, f.policy)
	rows, err := q.ListAll(ctx, Filter{Date: "2024-03-03"})
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(rows) != 250 {
		t.Errorf("expected 250 rows, got %d", len(rows))
	}
	seen := make(map[uuid.UUID]bool, len(rows))
	for _, r := range rows {
		if seen[r.ID] {
			t.Fatalf("record %s listed twice", r.ID)
		}
		seen[r.ID] = true
	}
}
