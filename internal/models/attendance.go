package models

import (
	"time"

	"github.com/google/uuid"
)

// Category scopes a token and the records redeemed with it.
type Category string

const (
	// CategoryGeneral is the event type open to every member.
	CategoryGeneral Category = "GENERAL"
	// CategoryOD is the leadership-only event type.
	CategoryOD Category = "OD"
)

// AttendanceStatus is the punctuality classification of a record.
type AttendanceStatus string

const (
	StatusPresent          AttendanceStatus = "present"
	StatusLate             AttendanceStatus = "late"
	StatusUnexcusedAbsence AttendanceStatus = "unexcused_absence"
)

// AttendanceToken is a bearer capability rendered as a QR code.
// It is never mutated; an expired token is rejected by time comparison.
type AttendanceToken struct {
	Value     string    `json:"token"`
	Category  Category  `json:"category"`
	IssuedBy  uuid.UUID `json:"issuedBy"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// UsableAt reports whether the token can be redeemed at now.
func (t *AttendanceToken) UsableAt(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}

// AttendanceRecord is the single outcome for a (subject, category, day) triple.
type AttendanceRecord struct {
	ID             uuid.UUID        `json:"id"`
	SubjectID      uuid.UUID        `json:"subjectId"`
	Category       Category         `json:"category"`
	DayKey         string           `json:"dayKey"`
	Status         AttendanceStatus `json:"status"`
	Fee            int              `json:"fee"`
	ReportRequired bool             `json:"reportRequired"`
	RecordedAt     time.Time        `json:"recordedAt"`
}

// AttendanceRecordView is a record joined with the subject's profile for audit screens.
type AttendanceRecordView struct {
	AttendanceRecord
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	GroupName string `json:"groupName,omitempty"`
	CellName  string `json:"cellName,omitempty"`
}

// AttendanceFollowUp escalates a report-required record for manual handling.
type AttendanceFollowUp struct {
	ID         uuid.UUID        `json:"id"`
	RecordID   uuid.UUID        `json:"recordId"`
	SubjectID  uuid.UUID        `json:"subjectId"`
	FullName   string           `json:"fullName"`
	Category   Category         `json:"category"`
	DayKey     string           `json:"dayKey"`
	Status     AttendanceStatus `json:"status"`
	Fee        int              `json:"fee"`
	CreatedAt  time.Time        `json:"createdAt"`
	ResolvedAt *time.Time       `json:"resolvedAt,omitempty"`
	ResolvedBy *uuid.UUID       `json:"resolvedBy,omitempty"`
}
