package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gathering-portal/backend/internal/attendance"
	"github.com/gathering-portal/backend/internal/clock"
)

// SweepLockKey is the Redis key guarding the token sweep.
const SweepLockKey = "lock:attendance:token-sweep"

// Locker grants a single-instance lease.
type Locker interface {
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

// TokenSweeper deletes tokens that expired more than Grace ago.
type TokenSweeper struct {
	store    attendance.TokenSweeper
	lock     Locker
	clock    clock.Clock
	interval time.Duration
	grace    time.Duration
	logger   *zap.Logger
}

// NewTokenSweeper creates a sweeper. lock may be nil for a single instance.
func NewTokenSweeper(store attendance.TokenSweeper, lock Locker, clk clock.Clock, interval, grace time.Duration, logger *zap.Logger) *TokenSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenSweeper{store: store, lock: lock, clock: clk, interval: interval, grace: grace, logger: logger}
}

// SweepOnce runs one sweep if this instance wins the lease. It returns the number of deleted tokens.
func (s *TokenSweeper) SweepOnce(ctx context.Context) (int64, error) {
	if s.lock != nil {
		release, ok, err := s.lock.Acquire(ctx)
		if err != nil {
			return 0, err
		}
		if !ok {
			s.logger.Debug("token sweep held by another instance")
			return 0, nil
		}
		defer release()
	}
	cutoff := s.clock.Now().Add(-s.grace)
	n, err := s.store.DeleteExpiredTokens(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired tokens swept", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// Run sweeps every interval until ctx is done.
func (s *TokenSweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("token sweeper stopping")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Warn("token sweep failed", zap.Error(err))
			}
		}
	}
}
