package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gathering-portal/backend/internal/clock"
	"github.com/gathering-portal/backend/internal/models"
)

// MessageAlreadyChecked accompanies a repeated check-in.
const MessageAlreadyChecked = "already checked in"

// Check-in outcomes reported to Metrics.
const (
	OutcomeInserted       = "inserted"
	OutcomeAlreadyChecked = "already_checked"
	OutcomeInvalidToken   = "invalid_token"
	OutcomeExpiredToken   = "expired_token"
	OutcomeForbidden      = "forbidden"
	OutcomeInvalid        = "invalid"
	OutcomeError          = "error"
)

// Outcome is the result of a check-in. A repeated check-in is a success
// carrying the originally committed record.
type Outcome struct {
	AlreadyChecked bool                     `json:"alreadyChecked"`
	Message        string                   `json:"message,omitempty"`
	Record         *models.AttendanceRecord `json:"record"`
}

// Processor redeems tokens into attendance records.
type Processor struct {
	tokens    TokenStore
	records   RecordStore
	policy    *Policy
	clock     clock.Clock
	logger    *zap.Logger
	notifier  Notifier
	followUps FollowUpEnqueuer
	metrics   Metrics
}

// NewProcessor creates a check-in processor.
func NewProcessor(tokens TokenStore, records RecordStore, policy *Policy, clk clock.Clock, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{tokens: tokens, records: records, policy: policy, clock: clk, logger: logger, metrics: nopMetrics{}}
}

// SetNotifier installs the receiver of newly inserted records.
func (p *Processor) SetNotifier(n Notifier) { p.notifier = n }

// SetFollowUps installs the follow-up queue for report-required records.
func (p *Processor) SetFollowUps(f FollowUpEnqueuer) { p.followUps = f }

// SetMetrics installs a metrics sink.
func (p *Processor) SetMetrics(m Metrics) {
	if m != nil {
		p.metrics = m
	}
}

// CheckIn redeems tokenValue for subjectID. category is optional; when given
// it must match the token's category.
//
// Checks run in a fixed order: token lookup, expiry, authorization, then
// classification and the idempotent insert. A subject who is denied never
// reaches classification or storage.
func (p *Processor) CheckIn(ctx context.Context, subjectID uuid.UUID, roles []string, tokenValue, category string) (*Outcome, error) {
	out, err := p.checkIn(ctx, subjectID, roles, tokenValue, category)
	cat := p.labelCategory(category)
	if out != nil && out.Record != nil {
		cat = out.Record.Category
	}
	p.metrics.CheckIn(cat, outcomeLabel(out, err))
	return out, err
}

func (p *Processor) checkIn(ctx context.Context, subjectID uuid.UUID, roles []string, tokenValue, category string) (*Outcome, error) {
	tokenValue = strings.TrimSpace(tokenValue)
	if tokenValue == "" {
		return nil, ErrInvalidToken
	}
	tok, err := p.tokens.GetToken(ctx, tokenValue)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, storageError("get token", err)
	}

	now := p.clock.Now()
	if !tok.UsableAt(now) {
		return nil, ErrExpiredToken
	}

	if category != "" && models.Category(strings.ToUpper(strings.TrimSpace(category))) != tok.Category {
		return nil, validationErrorf("token is not valid for category %q", category)
	}
	cp, ok := p.policy.Categories[tok.Category]
	if !ok {
		return nil, validationErrorf("token category %q is no longer configured", tok.Category)
	}
	if err := Authorize(roles, cp); err != nil {
		return nil, err
	}

	cls := p.policy.Classify(cp, now)
	rec := &models.AttendanceRecord{
		ID:             uuid.New(),
		SubjectID:      subjectID,
		Category:       tok.Category,
		DayKey:         cls.DayKey,
		Status:         cls.Status,
		Fee:            cls.Fee,
		ReportRequired: cls.ReportRequired,
		RecordedAt:     now,
	}
	res, err := p.records.InsertRecord(ctx, rec)
	if err != nil {
		return nil, storageError("insert record", err)
	}

	switch res.Outcome {
	case Conflict:
		return &Outcome{AlreadyChecked: true, Message: MessageAlreadyChecked, Record: res.Record}, nil
	case Inserted:
		p.afterInsert(ctx, res.Record)
		return &Outcome{Record: res.Record}, nil
	default:
		return nil, storageError("insert record", fmt.Errorf("unexpected insert outcome %d", res.Outcome))
	}
}

// afterInsert feeds side channels. Their failures never reach the attendee.
func (p *Processor) afterInsert(ctx context.Context, rec *models.AttendanceRecord) {
	fields := []zap.Field{
		zap.String("record_id", rec.ID.String()),
		zap.String("subject_id", rec.SubjectID.String()),
		zap.String("category", string(rec.Category)),
		zap.String("day_key", rec.DayKey),
	}
	p.logger.Info("attendance recorded", append(fields,
		zap.String("status", string(rec.Status)), zap.Int("fee", rec.Fee))...)

	if p.notifier != nil {
		if err := p.notifier.Publish(ctx, rec); err != nil {
			p.logger.Warn("publish check-in failed", append(fields, zap.Error(err))...)
		}
	}
	if rec.ReportRequired && p.followUps != nil {
		if err := p.followUps.EnqueueFollowUp(ctx, rec.ID); err != nil {
			p.logger.Error("enqueue follow-up failed", append(fields, zap.Error(err))...)
		}
	}
}

func (p *Processor) labelCategory(category string) models.Category {
	cat := models.Category(strings.ToUpper(strings.TrimSpace(category)))
	if _, ok := p.policy.Categories[cat]; ok {
		return cat
	}
	return "unknown"
}

func outcomeLabel(out *Outcome, err error) string {
	var fe *ForbiddenError
	switch {
	case err == nil && out.AlreadyChecked:
		return OutcomeAlreadyChecked
	case err == nil:
		return OutcomeInserted
	case errors.Is(err, ErrInvalidToken):
		return OutcomeInvalidToken
	case errors.Is(err, ErrExpiredToken):
		return OutcomeExpiredToken
	case errors.As(err, &fe):
		return OutcomeForbidden
	case errors.Is(err, ErrValidation):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}
