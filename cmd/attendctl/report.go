package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gathering-portal/backend/internal/attendance"
	"github.com/gathering-portal/backend/internal/reports"
	"github.com/gathering-portal/backend/pkg/storage"
)

func reportCmd() *cobra.Command {
	var date, category string
	var stdout bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build the daily attendance CSV",
		Long: `Build the CSV for one day and optional category.

By default the report is uploaded to the reports bucket; --stdout prints it instead.

Examples:
  attendctl report --date 2024-03-03
  attendctl report --date 2024-03-03 --category OD --stdout`,
		Args: cobra.NoArgs,
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

			query := attendance.NewQueryService(attendance.NewRepository(pool), e.policy)
			f, err := query.NormalizeFilter(date, category)
			if err != nil {
				return err
			}
			if stdout {
				rows, err := query.ListAll(ctx, f)
				if err != nil {
					return err
				}
				return reports.Render(cmd.OutOrStdout(), rows, e.policy.Location)
			}

			s3Client, err := storage.NewS3(ctx, storage.S3Config{
				Region:               e.cfg.AWS.Region,
				AccessKeyID:          e.cfg.AWS.AccessKeyID,
				SecretAccessKey:      e.cfg.AWS.SecretAccessKey,
				ReportsBucket:        e.cfg.AWS.ReportsBucket,
				PresignExpireMinutes: e.cfg.AWS.PresignExpireMinutes,
			}, e.logger)
			if err != nil {
				return err
			}
			key, n, err := reports.NewGenerator(query, s3Client, e.policy.Location, e.logger).Generate(ctx, f.Date, f.Category)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d rows)\n", key, n)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day key YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&category, "category", "", "restrict to one category")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print the CSV instead of uploading it")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
