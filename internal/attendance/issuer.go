package attendance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gathering-portal/backend/internal/clock"
	"github.com/gathering-portal/backend/internal/models"
	"github.com/gathering-portal/backend/pkg/utils"
)

// tokenBytes gives 256 bits of entropy per token.
const tokenBytes = 32

// Issuer creates short-lived check-in tokens for presenter screens.
type Issuer struct {
	tokens  TokenStore
	policy  *Policy
	clock   clock.Clock
	logger  *zap.Logger
	metrics Metrics
}

// NewIssuer creates a token issuer.
func NewIssuer(tokens TokenStore, policy *Policy, clk clock.Clock, logger *zap.Logger) *Issuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Issuer{tokens: tokens, policy: policy, clock: clk, logger: logger, metrics: nopMetrics{}}
}

// SetMetrics installs a metrics sink.
func (i *Issuer) SetMetrics(m Metrics) {
	if m != nil {
		i.metrics = m
	}
}

// IssueToken creates a token for category valid for the policy TTL.
func (i *Issuer) IssueToken(ctx context.Context, issuerID uuid.UUID, issuerRoles []string, category string) (*models.AttendanceToken, error) {
	cp, err := i.policy.Category(category)
	if err != nil {
		return nil, err
	}
	if !i.policy.CanIssue(issuerRoles) {
		return nil, ErrUnauthorized
	}
	now := i.clock.Now()
	if !cp.IssueWindow.Open(now, i.policy.Location) {
		return nil, ErrCategoryClosed
	}

	value, err := utils.RandomToken(tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	t := &models.AttendanceToken{
		Value:     value,
		Category:  cp.Category,
		IssuedBy:  issuerID,
		ExpiresAt: now.Add(i.policy.TokenTTL),
		CreatedAt: now,
	}
	if err := i.tokens.CreateToken(ctx, t); err != nil {
		return nil, storageError("create token", err)
	}
	i.metrics.TokenIssued(cp.Category)
	i.logger.Debug("attendance token issued",
		zap.String("category", string(cp.Category)),
		zap.String("issued_by", issuerID.String()),
		zap.Time("expires_at", t.ExpiresAt))
	return t, nil
}
