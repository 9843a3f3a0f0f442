package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/glec-io/lead-pipeline/cmd/awsconfig"
	"github.com/glec-io/lead-pipeline/internal/analytics"
	"github.com/glec-io/lead-pipeline/internal/api/router"
	appconfig "github.com/glec-io/lead-pipeline/internal/config"
	"github.com/glec-io/lead-pipeline/internal/downloads"
	"github.com/glec-io/lead-pipeline/internal/events"
	"github.com/glec-io/lead-pipeline/internal/http/handlers"
	"github.com/glec-io/lead-pipeline/internal/leads"
	"github.com/glec-io/lead-pipeline/internal/notify"
	"github.com/glec-io/lead-pipeline/internal/observability/metrics"
	"github.com/glec-io/lead-pipeline/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting lead-pipeline API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// The admin handlers go through database/sql; the hot path stays on pgx.
	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open sql db", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	awsCfg, err := awsconfig.Load(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	sqsClient := sqs.NewFromConfig(awsCfg)
	sesClient := sesv2.NewFromConfig(awsCfg)
	s3Client := s3.NewFromConfig(awsCfg)

	cooldown := leads.NewCooldownCache(buildRedisClient(ctx, cfg, logger), cfg.DuplicateCooldown, logger)

	emailQueue := buildEmailQueue(cfg, sqsClient, logger)
	sender := buildEmailSender(cfg, sesClient, logger)

	weights := leads.ScoreWeights{
		EmailOpened:      cfg.ScoreEmailOpened,
		LinkClicked:      cfg.ScoreLinkClicked,
		QualifyingSignal: cfg.ScoreQualifyingSignal,
		CorporateDomain:  cfg.ScoreCorporateDomain,
		Cap:              cfg.ScoreCap,
	}

	issuer, err := downloads.NewTokenIssuer(cfg.DownloadTokenSecret, cfg.DownloadTokenTTL)
	if err != nil {
		logger.Error("failed to build download token issuer", "error", err)
		os.Exit(1)
	}
	downloadStore := downloads.NewStore(pool)
	presigner := downloads.NewS3Presigner(s3Client, cfg.DownloadBucket, cfg.DownloadURLExpiry)
	downloadSvc := downloads.NewService(issuer, downloadStore, presigner, cfg.PublicBaseURL, logger)

	repo := leads.NewPostgresRepository(pool)
	dispatcher := notify.NewDispatcher(emailQueue, repo, downloadSvc, cfg.NotifyToEmail, logger)
	intake := leads.NewIntakeService(repo, cooldown, dispatcher, cfg.DuplicateCooldown, logger)

	eventStore := events.NewStore(pool)
	pipelineMetrics := metrics.NewPipelineMetrics(nil)

	webhookHandler, err := handlers.NewEmailWebhookHandler(
		cfg.EmailWebhookSecret, cfg.WebhookTolerance, repo, eventStore, weights, pipelineMetrics, logger,
	)
	if err != nil {
		logger.Error("failed to build webhook handler", "error", err)
		os.Exit(1)
	}

	r := router.New(router.Deps{
		Logger:             logger,
		Leads:              leads.NewHandler(intake, pipelineMetrics, logger),
		Webhook:            webhookHandler,
		Downloads:          handlers.NewDownloadHandler(downloadSvc, pipelineMetrics, logger),
		Admin:              handlers.NewAdminLeadsHandler(sqlDB, logger),
		Analytics:          analytics.NewHandler(analytics.NewRepository(pool), logger),
		AdminJWTSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins: splitOrigins(cfg.CORSAllowedOrigins),
		RateLimitPerSec:    cfg.RateLimitPerSec,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	workerCtx, stopWorker := context.WithCancel(ctx)
	worker := notify.NewWorker(emailQueue, sender, repo, logger, notify.WithWorkerCount(cfg.WorkerCount))
	worker.Start(workerCtx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	stopWorker()
	worker.Wait()

	logger.Info("server stopped")
}

func buildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, duplicate cooldown degraded", "error", err)
		return nil
	}
	return client
}

func buildEmailQueue(cfg *appconfig.Config, sqsClient *sqs.Client, logger *logging.Logger) notify.Queue {
	if cfg.UseMemoryQueue || cfg.EmailQueueURL == "" {
		logger.Info("using in-memory email queue")
		return notify.NewMemoryQueue(64)
	}
	return notify.NewSQSQueue(sqsClient, cfg.EmailQueueURL)
}

func buildEmailSender(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) notify.EmailSender {
	provider := strings.ToLower(strings.TrimSpace(cfg.EmailProvider))
	switch provider {
	case "sendgrid":
		if s := sendGridSender(cfg, logger); s != nil {
			return s
		}
	case "ses":
		if s := sesSender(cfg, sesClient, logger); s != nil {
			return s
		}
	case "stub":
		return notify.NewStubEmailSender(logger)
	default: // auto
		if s := sendGridSender(cfg, logger); s != nil {
			return s
		}
		if s := sesSender(cfg, sesClient, logger); s != nil {
			return s
		}
	}
	logger.Warn("no email provider configured, using stub sender")
	return notify.NewStubEmailSender(logger)
}

func sendGridSender(cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	if cfg.SendGridAPIKey == "" {
		return nil
	}
	return notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger)
}

func sesSender(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) notify.EmailSender {
	if cfg.SESFromEmail == "" {
		return nil
	}
	return notify.NewSESSender(sesClient, notify.SESConfig{
		FromEmail: cfg.SESFromEmail,
		FromName:  cfg.SESFromName,
	}, logger)
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
