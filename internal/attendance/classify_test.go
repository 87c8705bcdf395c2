package attendance

import (
	"testing"
	"time"

	"github.com/gathering-portal/backend/internal/models"
)

func TestClassifyBoundaries(t *testing.T) {
	p := DefaultPolicy()
	cp, _ := p.Category("GENERAL")
	anchor := time.Date(2024, 3, 3, 10, 0, 0, 0, p.Location)

	tests := []struct {
		elapsed time.Duration
		status  models.AttendanceStatus
		fee     int
		report  bool
	}{
		{-30 * time.Minute, models.StatusPresent, 0, false},
		{0, models.StatusPresent, 0, false},
		{2399 * time.Second, models.StatusPresent, 0, false},
		{2400 * time.Second, models.StatusLate, 1000, false},
		{2999 * time.Second, models.StatusLate, 1000, false},
		{3000 * time.Second, models.StatusLate, 2000, false},
		{3600 * time.Second, models.StatusLate, 3000, false},
		{3900 * time.Second, models.StatusLate, 3000, false},
		{4200 * time.Second, models.StatusLate, 4000, true},
		{4799 * time.Second, models.StatusLate, 4000, true},
		{4800 * time.Second, models.StatusUnexcusedAbsence, 5000, true},
		{6 * time.Hour, models.StatusUnexcusedAbsence, 5000, true},
	}
	for _, tt := range tests {
		got := p.Classify(cp, anchor.Add(tt.elapsed))
		if got.Status != tt.status || got.Fee != tt.fee || got.ReportRequired != tt.report {
			t.Errorf("elapsed %s: got %s/%d/%v, want %s/%d/%v",
				tt.elapsed, got.Status, got.Fee, got.ReportRequired, tt.status, tt.fee, tt.report)
		}
		if got.DayKey != "2024-03-03" {
			t.Errorf("elapsed %s: day key %s", tt.elapsed, got.DayKey)
		}
		if got.Elapsed != tt.elapsed {
			t.Errorf("elapsed %s: computed %s", tt.elapsed, got.Elapsed)
		}
	}
}

func TestClassifyUsesCivilDate(t *testing.T) {
	p := DefaultPolicy()
	cp, _ := p.Category("GENERAL")
	// 2024-03-02 23:30 UTC is 2024-03-03 08:30 in Seoul.
	now := time.Date(2024, 3, 2, 23, 30, 0, 0, time.UTC)
	got := p.Classify(cp, now)
	if got.DayKey != "2024-03-03" {
		t.Errorf("expected Seoul civil date, got %s", got.DayKey)
	}
	if got.Status != models.StatusPresent || got.Elapsed != -90*time.Minute {
		t.Errorf("expected early present, got %s elapsed %s", got.Status, got.Elapsed)
	}
}

func TestClassifyPerCategoryAnchor(t *testing.T) {
	p := DefaultPolicy()
	cp, _ := p.Category("OD")
	cp.Anchor = ClockTime{Hour: 19}
	now := time.Date(2024, 3, 3, 19, 45, 0, 0, p.Location)
	if got := p.Classify(cp, now); got.Status != models.StatusLate || got.Fee != 1000 {
		t.Errorf("expected late/1000 against 19:00 anchor, got %s/%d", got.Status, got.Fee)
	}
}

func TestAuthorize(t *testing.T) {
	p := DefaultPolicy()
	od, _ := p.Category("OD")
	gen, _ := p.Category("GENERAL")

	if err := Authorize(nil, gen); err != nil {
		t.Errorf("GENERAL should allow anyone, got %v", err)
	}
	if err := Authorize([]string{"member", "cell_leader"}, od); err != nil {
		t.Errorf("cell_leader should pass OD, got %v", err)
	}
	err := Authorize([]string{"member"}, od)
	fe, ok := err.(*ForbiddenError)
	if !ok {
		t.Fatalf("expected *ForbiddenError, got %T", err)
	}
	if fe.Reason != ReasonRequiresLeadership || fe.Category != models.CategoryOD {
		t.Errorf("unexpected forbidden error %+v", fe)
	}
}
