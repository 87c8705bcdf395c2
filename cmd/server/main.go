// Package main runs the attendance portal HTTP server with the live board websocket and graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gathering-portal/backend/config"
	"github.com/gathering-portal/backend/internal/attendance"
	"github.com/gathering-portal/backend/internal/auth"
	"github.com/gathering-portal/backend/internal/clock"
	"github.com/gathering-portal/backend/internal/events"
	"github.com/gathering-portal/backend/internal/metrics"
	"github.com/gathering-portal/backend/internal/middleware"
	"github.com/gathering-portal/backend/internal/models"
	"github.com/gathering-portal/backend/internal/realtime"
	"github.com/gathering-portal/backend/internal/reports"
	"github.com/gathering-portal/backend/internal/worker"
	"github.com/gathering-portal/backend/pkg/database"
	"github.com/gathering-portal/backend/pkg/queue"
	"github.com/gathering-portal/backend/pkg/redis"
	"github.com/gathering-portal/backend/pkg/response"
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

	if _, err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var reportStore reports.Presigner
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ReportsBucket:        cfg.AWS.ReportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			reportStore = s3Client
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	attMetrics := metrics.NewAttendance(prometheus.DefaultRegisterer)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Live board: local rooms fed through Redis so every instance sees every check-in.
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	publishers := events.Multi{hub}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger)
		defer kafkaPublisher.Close()
		publishers = append(publishers, kafkaPublisher)
		logger.Info("check-in events enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Attendance
	attRepo := attendance.NewRepository(pool)
	issuer := attendance.NewIssuer(attRepo, policy, clk, logger)
	issuer.SetMetrics(attMetrics)
	processor := attendance.NewProcessor(attRepo, attRepo, policy, clk, logger)
	processor.SetNotifier(publishers)
	processor.SetFollowUps(jobQueue)
	processor.SetMetrics(attMetrics)
	query := attendance.NewQueryService(attRepo, policy)
	attHandler := attendance.NewHandler(issuer, processor, query, attRepo, clk, logger)
	reportHandler := reports.NewHandler(query, jobQueue, reportStore, logger)

	sweeper := worker.NewTokenSweeper(attRepo, rdb.NewKeyLock(worker.SweepLockKey, time.Minute), clk,
		cfg.Worker.SweepInterval, cfg.Worker.SweepGrace, logger)

	liveAuth := func(token string) (uuid.UUID, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, err
		}
		if !policy.CanIssue(claims.Roles) {
			return uuid.Nil, attendance.ErrUnauthorized
		}
		return claims.UserID, nil
	}
	liveCategory := func(name string) (models.Category, error) {
		cp, err := policy.Category(name)
		if err != nil {
			return "", err
		}
		return cp.Category, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger, "/health", "/metrics"))

	// Health
	router.GET("/health", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		dbHealthy := pool.Ping(hctx) == nil
		redisHealthy := rdb.Healthy(hctx)
		if !dbHealthy || !redisHealthy {
			c.JSON(http.StatusServiceUnavailable, response.Body{Success: false, Error: "unhealthy",
				Data: gin.H{"db": dbHealthy, "redis": redisHealthy}})
			return
		}
		response.OK(c, gin.H{"status": "ok", "db": true, "redis": true})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.PUT("/users/:id/roles", middleware.RequireRole(models.RoleAdmin), authHandler.SetRoles)

		// Presenter screens and attendee devices; role rules live in the attendance policy.
		api.POST("/attendance/tokens", attHandler.IssueToken)
		api.POST("/attendance/check-ins", attHandler.CheckIn)

		auditors := middleware.RequireAnyRole(policy.AuditorRoles)
		api.GET("/attendance/records", auditors, attHandler.ListRecords)
		api.GET("/attendance/follow-ups", auditors, attHandler.ListFollowUps)
		api.POST("/attendance/follow-ups/:id/resolve", auditors, attHandler.ResolveFollowUp)
		api.POST("/attendance/reports", auditors, reportHandler.Create)
		api.GET("/attendance/reports/download-url", auditors, reportHandler.DownloadURL)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/attendance/live", realtime.ServeLive(hub, realtime.NewUpgrader(cfg.Server.CORSAllowedOrigins), logger, liveAuth, liveCategory))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go sweeper.Run(workerCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port),
			zap.String("timezone", policy.Location.String()), zap.Duration("token_ttl", policy.TokenTTL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down", zap.String("signal", fmt.Sprint(sig)))

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := zcfg.Build()
	return logger
}
