package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gathering-portal/backend/internal/models"
)

const followUpSelect = `SELECT f.id, f.record_id, ar.subject_id, u.full_name, ar.category, ar.day_key::text,
		ar.status, ar.fee, f.created_at, f.resolved_at, f.resolved_by
	FROM attendance_followups f
	JOIN attendance_records ar ON ar.id = f.record_id
	JOIN users u ON u.id = ar.subject_id`

// CreateFollowUp opens a follow-up for a record. It is a no-op when one exists.
func (r *Repository) CreateFollowUp(ctx context.Context, recordID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `INSERT INTO attendance_followups (record_id) VALUES ($1)
		ON CONFLICT (record_id) DO NOTHING`, recordID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListPendingFollowUps returns unresolved follow-ups, oldest first.
func (r *Repository) ListPendingFollowUps(ctx context.Context, category models.Category, limit int) ([]models.AttendanceFollowUp, error) {
	q := followUpSelect + ` WHERE f.resolved_at IS NULL AND ($1 = '' OR ar.category = $1)
		ORDER BY f.created_at, f.id LIMIT $2`
	rows, err := r.pool.Query(ctx, q, string(category), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.AttendanceFollowUp{}
	for rows.Next() {
		f, err := scanFollowUp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// ResolveFollowUp marks a follow-up handled. Resolving twice keeps the first resolution.
func (r *Repository) ResolveFollowUp(ctx context.Context, id, resolvedBy uuid.UUID, at time.Time) (*models.AttendanceFollowUp, error) {
	_, err := r.pool.Exec(ctx, `UPDATE attendance_followups SET resolved_at = $2, resolved_by = $3
		WHERE id = $1 AND resolved_at IS NULL`, id, at, resolvedBy)
	if err != nil {
		return nil, err
	}
	f, err := scanFollowUp(r.pool.QueryRow(ctx, followUpSelect+` WHERE f.id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	return f, err
}

func scanFollowUp(row pgx.Row) (*models.AttendanceFollowUp, error) {
	var f models.AttendanceFollowUp
	err := row.Scan(&f.ID, &f.RecordID, &f.SubjectID, &f.FullName, &f.Category, &f.DayKey,
		&f.Status, &f.Fee, &f.CreatedAt, &f.ResolvedAt, &f.ResolvedBy)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
