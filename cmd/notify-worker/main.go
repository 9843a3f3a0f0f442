package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/glec-io/lead-pipeline/cmd/awsconfig"
	appconfig "github.com/glec-io/lead-pipeline/internal/config"
	"github.com/glec-io/lead-pipeline/internal/leads"
	"github.com/glec-io/lead-pipeline/internal/notify"
	"github.com/glec-io/lead-pipeline/pkg/logging"
)

// Standalone consumer for the email job queue. The API server runs an
// in-process worker too; this binary exists so queue consumption can be
// scaled independently when SQS backs the queue.
func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" || cfg.EmailQueueURL == "" {
		logger.Error("notify worker requires DATABASE_URL and EMAIL_QUEUE_URL")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := awsconfig.Load(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	queue := notify.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.EmailQueueURL)
	sender := buildSender(cfg, sesv2.NewFromConfig(awsCfg), logger)
	repo := leads.NewPostgresRepository(pool)

	worker := notify.NewWorker(queue, sender, repo, logger, notify.WithWorkerCount(cfg.WorkerCount))
	worker.Start(ctx)
	logger.Info("notify worker started", "workers", cfg.WorkerCount)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("notify worker shutting down")
	cancel()
	worker.Wait()
}

func buildSender(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) notify.EmailSender {
	if cfg.SendGridAPIKey != "" {
		return notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	}
	if cfg.SESFromEmail != "" {
		return notify.NewSESSender(sesClient, notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
	}
	logger.Warn("no email provider configured, using stub sender")
	return notify.NewStubEmailSender(logger)
}
