package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gathering-portal/backend/internal/models"
)

const userColumns = `id, email, password_hash, full_name, roles,
	COALESCE(group_name,''), COALESCE(cell_name,''), created_at, updated_at`

// ErrEmailTaken is returned by Create when the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.Roles, &u.GroupName, &u.CellName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.Roles, &u.GroupName, &u.CellName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUserParams holds optional profile fields for registration.
type CreateUserParams struct {
	GroupName string
	CellName  string
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, email, passwordHash, fullName string, roles []string, profile *CreateUserParams) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, full_name, roles, group_name, cell_name)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), NULLIF($6,''))
		RETURNING ` + userColumns
	group, cell := "", ""
	if profile != nil {
		group, cell = profile.GroupName, profile.CellName
	}
	var u models.User
	err := r.pool.QueryRow(ctx, q, email, passwordHash, fullName, roles, group, cell).
		Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.Roles, &u.GroupName, &u.CellName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, createError(err)
	}
	return &u, nil
}

// createError maps the users email unique violation to ErrEmailTaken.
func createError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrEmailTaken
	}
	return err
}

// SetRoles replaces a user's role set.
func (r *Repository) SetRoles(ctx context.Context, id uuid.UUID, roles []string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET roles = $2, updated_at = NOW() WHERE id = $1`, id, roles)
	return err
}
