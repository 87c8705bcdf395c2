package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gathering-portal/backend/internal/models"
)

const uniqueViolation = "23505"

const recordColumns = `id, subject_id, category, day_key::text, status, fee, report_required, recorded_at`

// Repository is the Postgres token and attendance store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an attendance repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateToken inserts an issued token.
func (r *Repository) CreateToken(ctx context.Context, t *models.AttendanceToken) error {
	const q = `INSERT INTO attendance_tokens (token, category, issued_by, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, q, t.Value, string(t.Category), t.IssuedBy, t.ExpiresAt, t.CreatedAt)
	return err
}

// GetToken returns a token by value, or ErrNotFound.
func (r *Repository) GetToken(ctx context.Context, value string) (*models.AttendanceToken, error) {
	const q = `SELECT token, category, issued_by, expires_at, created_at FROM attendance_tokens WHERE token = $1`
	var t models.AttendanceToken
	err := r.pool.QueryRow(ctx, q, value).Scan(&t.Value, &t.Category, &t.IssuedBy, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// DeleteExpiredTokens removes tokens that expired before the cutoff.
func (r *Repository) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM attendance_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertRecord inserts rec unless a record for its (subject, category, day)
// already exists, in which case the committed record is returned as Conflict.
// A report-required record gets its attendance_followups row in the same statement.
func (r *Repository) InsertRecord(ctx context.Context, rec *models.AttendanceRecord) (InsertResult, error) {
	// The follow-up row for a report-required record commits with the record itself.
	const q = `WITH ins AS (
			INSERT INTO attendance_records (id, subject_id, category, day_key, status, fee, report_required, recorded_at)
			VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8)
			ON CONFLICT (subject_id, category, day_key) DO NOTHING
			RETURNING ` + recordColumns + `
		), followup AS (
			INSERT INTO attendance_followups (record_id)
			SELECT id FROM ins WHERE report_required
			ON CONFLICT (record_id) DO NOTHING
		)
		SELECT * FROM ins`

	// A second pass covers a winner that rolled back between our insert and re-select.
	for attempt := 0; attempt < 2; attempt++ {
		inserted, err := scanRecord(r.pool.QueryRow(ctx, q,
			rec.ID, rec.SubjectID, string(rec.Category), rec.DayKey,
			string(rec.Status), rec.Fee, rec.ReportRequired, rec.RecordedAt))
		switch {
		case err == nil:
			return InsertResult{Outcome: Inserted, Record: inserted}, nil
		case err != pgx.ErrNoRows && !isUniqueViolation(err):
			return InsertResult{}, err
		}

		existing, err := r.findRecord(ctx, rec.SubjectID, rec.Category, rec.DayKey)
		if err == nil {
			return InsertResult{Outcome: Conflict, Record: existing}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return InsertResult{}, err
		}
	}
	return InsertResult{}, fmt.Errorf("record for %s/%s/%s neither inserted nor found", rec.SubjectID, rec.Category, rec.DayKey)
}

// GetRecord returns a record by ID, or ErrNotFound.
func (r *Repository) GetRecord(ctx context.Context, id uuid.UUID) (*models.AttendanceRecord, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

func (r *Repository) findRecord(ctx context.Context, subjectID uuid.UUID, category models.Category, dayKey string) (*models.AttendanceRecord, error) {
	const q = `SELECT ` + recordColumns + ` FROM attendance_records
		WHERE subject_id = $1 AND category = $2 AND day_key = $3::date`
	rec, err := scanRecord(r.pool.QueryRow(ctx, q, subjectID, string(category), dayKey))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

const viewSelect = `SELECT ar.id, ar.subject_id, ar.category, ar.day_key::text, ar.status, ar.fee, ar.report_required, ar.recorded_at,
		u.full_name, u.email, COALESCE(u.group_name,''), COALESCE(u.cell_name,'')
	FROM attendance_records ar
	JOIN users u ON u.id = ar.subject_id`

const viewOrder = ` ORDER BY ar.recorded_at DESC, ar.id DESC`

// ListRecords returns one page of records joined with user profiles plus the total match count.
func (r *Repository) ListRecords(ctx context.Context, f Filter, limit, offset int) ([]models.AttendanceRecordView, int, error) {
	where, args := buildListFilter(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM attendance_records ar`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := viewSelect + where + viewOrder + fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	out, err := r.queryViews(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListAllRecords returns every record matching f from one snapshot, in listing order.
func (r *Repository) ListAllRecords(ctx context.Context, f Filter) ([]models.AttendanceRecordView, error) {
	where, args := buildListFilter(f)
	return r.queryViews(ctx, viewSelect+where+viewOrder, args...)
}

func (r *Repository) queryViews(ctx context.Context, q string, args ...any) ([]models.AttendanceRecordView, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.AttendanceRecordView{}
	for rows.Next() {
		var v models.AttendanceRecordView
		if err := rows.Scan(&v.ID, &v.SubjectID, &v.Category, &v.DayKey, &v.Status, &v.Fee, &v.ReportRequired, &v.RecordedAt,
			&v.FullName, &v.Email, &v.GroupName, &v.CellName); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// buildListFilter returns a WHERE clause over alias ar and its positional args.
func buildListFilter(f Filter) (string, []any) {
	var conds []string
	var args []any
	if f.Date != "" {
		args = append(args, f.Date)
		conds = append(conds, fmt.Sprintf("ar.day_key = $%d::date", len(args)))
	}
	if f.Category != "" {
		args = append(args, string(f.Category))
		conds = append(conds, fmt.Sprintf("ar.category = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanRecord(row pgx.Row) (*models.AttendanceRecord, error) {
	var rec models.AttendanceRecord
	err := row.Scan(&rec.ID, &rec.SubjectID, &rec.Category, &rec.DayKey, &rec.Status, &rec.Fee, &rec.ReportRequired, &rec.RecordedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
