// Package main is the operator CLI for the attendance portal.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gathering-portal/backend/config"
	"github.com/gathering-portal/backend/internal/attendance"
	"github.com/gathering-portal/backend/pkg/database"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "attendctl",
		Short:         "Operator tools for the attendance portal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(policyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is the shared state a command needs; fields are filled on demand.
type env struct {
	cfg    *config.Config
	policy *attendance.Policy
	logger *zap.Logger
}

func loadEnv() (*env, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	policyCfg, err := cfg.Attendance.Policy()
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	policy, err := attendance.NewPolicy(policyCfg)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, policy: policy, logger: logger}, nil
}

func (e *env) pool(ctx context.Context) (*pgxpool.Pool, error) {
	return database.NewPostgresPool(ctx, e.cfg.Database.DSN(), e.cfg.Database.MaxConns, e.logger)
}
