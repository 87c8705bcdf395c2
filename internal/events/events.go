// Package events fans newly inserted attendance records out to side channels.
package events

import (
	"context"
	"errors"

	"github.com/gathering-portal/backend/internal/models"
)

// Publisher receives a newly inserted record.
type Publisher interface {
	Publish(ctx context.Context, rec *models.AttendanceRecord) error
}

// Multi publishes to every non-nil publisher and joins their errors.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, rec *models.AttendanceRecord) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
