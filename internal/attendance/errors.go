package attendance

import (
	"errors"
	"fmt"

	"github.com/gathering-portal/backend/internal/models"
)

var (
	// ErrUnauthorized means the caller may not operate a presenter screen.
	ErrUnauthorized = errors.New("presenter role required")
	// ErrValidation wraps malformed input (unknown category, bad date, ...).
	ErrValidation = errors.New("validation failed")
	// ErrCategoryClosed means tokens for the category cannot be issued right now.
	ErrCategoryClosed = errors.New("category is not open for check-in yet")
	// ErrInvalidToken means the token value is unknown.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken means the token is known but past its expiry.
	ErrExpiredToken = errors.New("token expired")
	// ErrForbidden is matched by every *ForbiddenError.
	ErrForbidden = errors.New("forbidden")
	// ErrStorage wraps transient persistence failures; callers may retry.
	ErrStorage = errors.New("storage failure")
	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = errors.New("not found")
)

// ReasonRequiresLeadership is the deny reason for restricted categories.
const ReasonRequiresLeadership = "requires_leadership"

// ForbiddenError is returned when the subject lacks a role the category requires.
type ForbiddenError struct {
	Category models.Category
	Reason   string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("check-in for %s denied: %s", e.Category, e.Reason)
}

// Is makes errors.Is(err, ErrForbidden) hold.
func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
