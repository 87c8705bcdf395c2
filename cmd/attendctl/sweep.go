package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gathering-portal/backend/internal/attendance"
	"github.com/gathering-portal/backend/internal/clock"
	"github.com/gathering-portal/backend/internal/worker"
	"github.com/gathering-portal/backend/pkg/redis"
)

func sweepCmd() *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "sweep-tokens",
		Short: "Delete expired check-in tokens once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := e.pool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			rdb, err := redis.NewClient(ctx, e.cfg.Redis.Addr, e.cfg.Redis.Password, e.cfg.Redis.DB, e.logger)
			if err != nil {
				return err
			}
			defer rdb.Close()

			if !cmd.Flags().Changed("grace") {
				grace = e.cfg.Worker.SweepGrace
			}
			sweeper := worker.NewTokenSweeper(attendance.NewRepository(pool), rdb.NewKeyLock(worker.SweepLockKey, time.Minute),
				clock.NewSystem(e.policy.Location), e.cfg.Worker.SweepInterval, grace, e.logger)
			n, err := sweeper.SweepOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired token(s)\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", time.Hour, "keep tokens this long past expiry (defaults to TOKEN_SWEEP_GRACE)")
	return cmd
}
