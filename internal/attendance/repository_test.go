package attendance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/gathering-portal/backend/internal/models"
	"github.com/gathering-portal/backend/pkg/database"
)

func TestBuildListFilter(t *testing.T) {
	tests := []struct {
		name      string
		filter    Filter
		wantWhere string
		wantArgs  []any
	}{
		{"none", Filter{}, "", nil},
		{"date", Filter{Date: "2024-03-03"}, " WHERE ar.day_key = $1::date", []any{"2024-03-03"}},
		{"category", Filter{Category: models.CategoryOD}, " WHERE ar.category = $1", []any{"OD"}},
		{"both", Filter{Date: "2024-03-03", Category: models.CategoryGeneral},
			" WHERE ar.day_key = $1::date AND ar.category = $2", []any{"2024-03-03", "GENERAL"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildListFilter(tt.filter)
			if where != tt.wantWhere {
				t.Errorf("where = %q, want %q", where, tt.wantWhere)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505"}
	if !isUniqueViolation(fmt.Errorf("insert: %w", dup)) {
		t.Error("wrapped 23505 should be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("foreign key violation is not a unique violation")
	}
	if isUniqueViolation(errors.New("boom")) {
		t.Error("plain error is not a unique violation")
	}
}

// testPool connects to ATTENDANCE_TEST_DSN and applies migrations. Tests using
// it are skipped when the variable is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("ATTENDANCE_TEST_DSN")
	if dsn == "" {
		t.Skip("ATTENDANCE_TEST_DSN not set")
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, dsn, 40, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := database.Migrate(ctx, pool, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

// testSubject inserts a user and removes it with everything it recorded at cleanup.
func testSubject(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, email, password_hash, full_name) VALUES ($1, $2, 'x', 'Repository Test')`,
		id, id.String()+"@example.test")
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = pool.Exec(ctx, `DELETE FROM attendance_followups WHERE record_id IN (SELECT id FROM attendance_records WHERE subject_id = $1)`, id)
		_, _ = pool.Exec(ctx, `DELETE FROM attendance_records WHERE subject_id = $1`, id)
		_, _ = pool.Exec(ctx, `DELETE FROM attendance_tokens WHERE issued_by = $1`, id)
		_, _ = pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	})
	return id
}

func TestRepositoryInsertRecordConcurrent(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool)
	subject := testSubject(t, pool)
	recordedAt := time.Date(2024, 3, 3, 11, 15, 0, 0, time.UTC)

	const n = 16
	results := make([]InsertResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = repo.InsertRecord(context.Background(), &models.AttendanceRecord{
				ID:             uuid.New(),
				SubjectID:      subject,
				Category:       models.CategoryGeneral,
				DayKey:         "2024-03-03",
				Status:         models.StatusLate,
				Fee:            4000,
				ReportRequired: true,
				RecordedAt:     recordedAt,
			})
		}(i)
	}
	wg.Wait()

	var winner uuid.UUID
	inserted, conflicts := 0, 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("attempt %d: %v", i, errs[i])
		}
		switch results[i].Outcome {
		case Inserted:
			inserted++
			winner = results[i].Record.ID
		case Conflict:
			conflicts++
		}
	}
	if inserted != 1 || conflicts != n-1 {
		t.Fatalf("inserted=%d conflicts=%d, want 1 and %d", inserted, conflicts, n-1)
	}
	for i, r := range results {
		if r.Record.ID != winner {
			t.Errorf("attempt %d returned %s, want %s", i, r.Record.ID, winner)
		}
		if r.Record.DayKey != "2024-03-03" || r.Record.Fee != 4000 {
			t.Errorf("attempt %d: unexpected record %+v", i, r.Record)
		}
	}

	ctx := context.Background()
	var records, followUps int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM attendance_records WHERE subject_id = $1`, subject).Scan(&records); err != nil {
		t.Fatal(err)
	}
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM attendance_followups WHERE record_id = $1`, winner).Scan(&followUps); err != nil {
		t.Fatal(err)
	}
	if records != 1 || followUps != 1 {
		t.Errorf("records=%d follow-ups=%d, want 1 and 1", records, followUps)
	}
}

func TestRepositoryOnTimeRecordOpensNoFollowUp(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool)
	subject := testSubject(t, pool)
	ctx := context.Background()

	res, err := repo.InsertRecord(ctx, &models.AttendanceRecord{
		ID: uuid.New(), SubjectID: subject, Category: models.CategoryOD, DayKey: "2024-03-03",
		Status: models.StatusPresent, RecordedAt: time.Date(2024, 3, 3, 1, 0, 0, 0, time.UTC),
	})
	if err != nil || res.Outcome != Inserted {
		t.Fatalf("InsertRecord: %+v, %v", res, err)
	}
	var followUps int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM attendance_followups WHERE record_id = $1`, res.Record.ID).Scan(&followUps); err != nil {
		t.Fatal(err)
	}
	if followUps != 0 {
		t.Errorf("expected no follow-up, got %d", followUps)
	}
	if created, err := repo.CreateFollowUp(ctx, res.Record.ID); err != nil || !created {
		t.Errorf("CreateFollowUp: created=%t, %v", created, err)
	}
	if created, err := repo.CreateFollowUp(ctx, res.Record.ID); err != nil || created {
		t.Errorf("second CreateFollowUp should be a no-op: created=%t, %v", created, err)
	}
}

func TestRepositoryTokensAndListing(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool)
	subject := testSubject(t, pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	tok := &models.AttendanceToken{Value: uuid.NewString(), Category: models.CategoryGeneral, IssuedBy: subject,
		ExpiresAt: now.Add(time.Minute), CreatedAt: now}
	if err := repo.CreateToken(ctx, tok); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	got, err := repo.GetToken(ctx, tok.Value)
	if err != nil || !got.ExpiresAt.Equal(tok.ExpiresAt) || got.Category != tok.Category {
		t.Fatalf("GetToken: %+v, %v", got, err)
	}
	if _, err := repo.GetToken(ctx, "missing-"+tok.Value); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing token: got %v, want ErrNotFound", err)
	}

	for i, day := range []string{"2031-05-04", "2031-05-05"} {
		_, err := repo.InsertRecord(ctx, &models.AttendanceRecord{
			ID: uuid.New(), SubjectID: subject, Category: models.CategoryGeneral, DayKey: day,
			Status: models.StatusPresent, RecordedAt: now.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	rows, total, err := repo.ListRecords(ctx, Filter{Date: "2031-05-05"}, 10, 0)
	if err != nil || total != 1 || len(rows) != 1 || rows[0].FullName != "Repository Test" {
		t.Fatalf("ListRecords: %+v total=%d, %v", rows, total, err)
	}
	all, err := repo.ListAllRecords(ctx, Filter{Category: models.CategoryGeneral})
	if err != nil {
		t.Fatal(err)
	}
	var mine []models.AttendanceRecordView
	for _, r := range all {
		if r.SubjectID == subject {
			mine = append(mine, r)
		}
	}
	if len(mine) != 2 || mine[0].DayKey != "2031-05-05" {
		t.Errorf("ListAllRecords should return both days newest first: %+v", mine)
	}
}
