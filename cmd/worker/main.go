// Package main runs the background job worker (late arrival follow-ups, daily reports, token sweeps).
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gathering-portal/backend/config"
	"github.com/gathering-portal/backend/internal/attendance"
	"github.com/gathering-portal/backend/internal/clock"
	"github.com/gathering-portal/backend/internal/metrics"
	"github.com/gathering-portal/backend/internal/reports"
	"github.com/gathering-portal/backend/internal/worker"
	"github.com/gathering-portal/backend/pkg/database"
	"github.com/gathering-portal/backend/pkg/queue"
	"github.com/gathering-portal/backend/pkg/redis"
	"github.com/gathering-portal/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	policyCfg, err := cfg.Attendance.Policy()
	if err != nil {
		logger.Fatal("load attendance policy", zap.Error(err))
	}
	policy, err := attendance.NewPolicy(policyCfg)
	if err != nil {
		logger.Fatal("attendance policy", zap.Error(err))
	}
	clk := clock.NewSystem(policy.Location)

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	attMetrics := metrics.NewAttendance(prometheus.DefaultRegisterer)
	attRepo := attendance.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	processor := worker.NewProcessor(jobQueue, logger)
	processor.SetMetrics(attMetrics)
	processor.Handle(queue.JobTypeFollowUp, worker.FollowUpHandler(attRepo, logger))

	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ReportsBucket:        cfg.AWS.ReportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
		generator := reports.NewGenerator(attendance.NewQueryService(attRepo, policy), s3Client, policy.Location, logger)
		processor.Handle(queue.JobTypeReport, worker.ReportHandler(generator, logger))
	} else {
		logger.Warn("AWS_REGION not set, report jobs will be retried until dead-lettered")
	}

	sweeper := worker.NewTokenSweeper(attRepo, rdb.NewKeyLock(worker.SweepLockKey, time.Minute), clk,
		cfg.Worker.SweepInterval, cfg.Worker.SweepGrace, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	go sweeper.Run(workerCtx)

	var metricsSrv *http.Server
	if cfg.Worker.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.Worker.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener", zap.Error(err))
			}
		}()
	}
	logger.Info("worker started", zap.String("metrics_addr", cfg.Worker.MetricsAddr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	if metricsSrv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := zcfg.Build()
	return logger
}
