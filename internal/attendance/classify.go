package attendance

import (
	"time"

	"github.com/gathering-portal/backend/internal/clock"
	"github.com/gathering-portal/backend/internal/models"
)

// Classification is the punctuality verdict for one redemption instant.
type Classification struct {
	DayKey         string
	Anchor         time.Time
	Elapsed        time.Duration
	Status         models.AttendanceStatus
	Fee            int
	ReportRequired bool
}

// Classify places now into the tier table relative to the category anchor on
// now's civil date. Tiers are closed-open; the last tier whose From is not
// after the elapsed time wins, and anything earlier (arriving early included)
// is on time.
func (p *Policy) Classify(cp CategoryPolicy, now time.Time) Classification {
	anchor := cp.Anchor.On(now, p.Location)
	elapsed := now.Sub(anchor)

	tier := p.OnTime
	for _, t := range p.Tiers {
		if elapsed < t.From {
			break
		}
		tier = t
	}
	return Classification{
		DayKey:         clock.DayKey(now, p.Location),
		Anchor:         anchor,
		Elapsed:        elapsed,
		Status:         tier.Status,
		Fee:            tier.Fee,
		ReportRequired: tier.ReportRequired,
	}
}
