package attendance

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gathering-portal/backend/config"
	"github.com/gathering-portal/backend/internal/auth"
	"github.com/gathering-portal/backend/internal/models"
)

// ClockTime is a time of day in the policy's civil timezone.
type ClockTime struct {
	Hour, Minute, Second int
}

// ParseClockTime parses "HH:MM" or "HH:MM:SS".
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return ClockTime{}, fmt.Errorf("clock time %q: want HH:MM[:SS]", s)
	}
	var vals [3]int
	limits := [3]int{24, 60, 60}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n >= limits[i] {
			return ClockTime{}, fmt.Errorf("clock time %q: bad component %q", s, p)
		}
		vals[i] = n
	}
	return ClockTime{Hour: vals[0], Minute: vals[1], Second: vals[2]}, nil
}

// On returns the instant of the clock time on t's civil date in loc.
func (c ClockTime) On(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), c.Hour, c.Minute, c.Second, 0, loc)
}

func (c ClockTime) sinceMidnight() time.Duration {
	return time.Duration(c.Hour)*time.Hour + time.Duration(c.Minute)*time.Minute + time.Duration(c.Second)*time.Second
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// IssueWindow restricts when tokens for a category may be issued.
// An empty Weekdays list means every day. The window is [From, To).
type IssueWindow struct {
	Weekdays []time.Weekday
	From     ClockTime
	To       ClockTime
}

// Open reports whether t (in loc) falls inside the window.
func (w *IssueWindow) Open(t time.Time, loc *time.Location) bool {
	if w == nil {
		return true
	}
	local := t.In(loc)
	if len(w.Weekdays) > 0 {
		match := false
		for _, d := range w.Weekdays {
			if d == local.Weekday() {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	tod := local.Sub(time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc))
	return tod >= w.From.sinceMidnight() && tod < w.To.sinceMidnight()
}

func (w *IssueWindow) String() string {
	if w == nil {
		return "always"
	}
	days := "daily"
	if len(w.Weekdays) > 0 {
		names := make([]string, len(w.Weekdays))
		for i, d := range w.Weekdays {
			names[i] = d.String()[:3]
		}
		days = strings.Join(names, ",")
	}
	return fmt.Sprintf("%s %s-%s", days, w.From, w.To)
}

// Tier is one closed-open punctuality band starting at From after the anchor.
type Tier struct {
	From           time.Duration
	Status         models.AttendanceStatus
	Fee            int
	ReportRequired bool
}

// CategoryPolicy holds the per-category rules.
type CategoryPolicy struct {
	Category     models.Category
	Restricted   bool
	AllowedRoles auth.RoleSet
	Anchor       ClockTime
	IssueWindow  *IssueWindow
}

// Policy is the full set of check-in rules.
type Policy struct {
	Location       *time.Location
	TokenTTL       time.Duration
	PresenterRoles auth.RoleSet
	AuditorRoles   auth.RoleSet
	// OnTime applies to arrivals before the first tier, early arrivals included.
	OnTime     Tier
	Tiers      []Tier
	Categories map[models.Category]CategoryPolicy
}

// NewPolicy validates cfg and builds a Policy.
func NewPolicy(cfg config.PolicyConfig) (*Policy, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("policy timezone: %w", err)
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("policy token_ttl must be positive, got %s", cfg.TokenTTL)
	}
	p := &Policy{
		Location:       loc,
		TokenTTL:       cfg.TokenTTL,
		PresenterRoles: auth.NewRoleSet(cfg.PresenterRoles...),
		AuditorRoles:   auth.NewRoleSet(cfg.AuditorRoles...),
		OnTime:         Tier{Status: models.StatusPresent},
		Categories:     make(map[models.Category]CategoryPolicy, len(cfg.Categories)),
	}

	for _, tc := range cfg.Tiers {
		status := models.AttendanceStatus(strings.ToLower(tc.Status))
		switch status {
		case models.StatusPresent, models.StatusLate, models.StatusUnexcusedAbsence:
		default:
			return nil, fmt.Errorf("policy tier at %ds: unknown status %q", tc.FromSeconds, tc.Status)
		}
		if tc.Fee < 0 {
			return nil, fmt.Errorf("policy tier at %ds: negative fee", tc.FromSeconds)
		}
		p.Tiers = append(p.Tiers, Tier{
			From:           time.Duration(tc.FromSeconds) * time.Second,
			Status:         status,
			Fee:            tc.Fee,
			ReportRequired: tc.ReportRequired,
		})
	}
	sort.Slice(p.Tiers, func(i, j int) bool { return p.Tiers[i].From < p.Tiers[j].From })
	for i := 1; i < len(p.Tiers); i++ {
		if p.Tiers[i].From == p.Tiers[i-1].From {
			return nil, fmt.Errorf("policy tiers: duplicate boundary %s", p.Tiers[i].From)
		}
	}

	for _, cc := range cfg.Categories {
		cat := models.Category(strings.ToUpper(strings.TrimSpace(cc.Name)))
		if cat == "" {
			return nil, fmt.Errorf("policy category with empty name")
		}
		anchor, err := ParseClockTime(cc.Anchor)
		if err != nil {
			return nil, fmt.Errorf("policy category %s anchor: %w", cat, err)
		}
		cp := CategoryPolicy{
			Category:     cat,
			Restricted:   cc.Restricted,
			AllowedRoles: auth.NewRoleSet(cc.AllowedRoles...),
			Anchor:       anchor,
		}
		if cp.Restricted && len(cp.AllowedRoles) == 0 {
			return nil, fmt.Errorf("policy category %s is restricted but lists no roles", cat)
		}
		if cc.IssueWindow != nil {
			w, err := parseIssueWindow(*cc.IssueWindow)
			if err != nil {
				return nil, fmt.Errorf("policy category %s issue window: %w", cat, err)
			}
			cp.IssueWindow = w
		}
		p.Categories[cat] = cp
	}
	if len(p.Categories) == 0 {
		return nil, fmt.Errorf("policy defines no categories")
	}
	return p, nil
}

// DefaultPolicy is the policy built from config.DefaultPolicyConfig.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(config.DefaultPolicyConfig())
	if err != nil {
		panic("default attendance policy: " + err.Error())
	}
	return p
}

// Category resolves a category name. Unknown names are a validation error.
func (p *Policy) Category(name string) (CategoryPolicy, error) {
	cat := models.Category(strings.ToUpper(strings.TrimSpace(name)))
	if cat == "" {
		return CategoryPolicy{}, validationErrorf("category is required")
	}
	cp, ok := p.Categories[cat]
	if !ok {
		return CategoryPolicy{}, validationErrorf("unknown category %q", name)
	}
	return cp, nil
}

func parseIssueWindow(c config.IssueWindowConfig) (*IssueWindow, error) {
	from, err := ParseClockTime(c.From)
	if err != nil {
		return nil, err
	}
	to, err := ParseClockTime(c.To)
	if err != nil {
		return nil, err
	}
	if to.sinceMidnight() <= from.sinceMidnight() {
		return nil, fmt.Errorf("window end %s is not after start %s", to, from)
	}
	w := &IssueWindow{From: from, To: to}
	for _, name := range c.Weekdays {
		d, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		w.Weekdays = append(w.Weekdays, d)
	}
	return w, nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}
