package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/drivenova/internal/config"
	"github.com/benvon/drivenova/internal/logger"
	"github.com/benvon/drivenova/internal/queue"
	"github.com/benvon/drivenova/internal/services/notify"
	"github.com/benvon/drivenova/internal/telemetry"
	"github.com/benvon/drivenova/internal/workers"
	"go.uber.org/zap"
)

const (
	dlqSweepInterval = time.Hour
	dlqRetention     = 24 * time.Hour
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.New(telemetry.ServiceWorker, debugMode, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("Starting worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("smtp_host", cfg.SMTP.Host),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := telemetry.Setup(ctx, cfg.OTELEnabled, telemetry.ServiceWorker, cfg.OTELEndpoint, zapLogger)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	mailer, err := notify.NewMailer(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.User,
		Password: cfg.SMTP.Pass,
		From:     cfg.SMTP.From,
		To:       cfg.SMTP.NotifyTo,
		SSL:      cfg.SMTP.Secure,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create mailer", zap.Error(err))
	}

	jobQueue, err := queue.ConnectWithRetry(ctx, cfg.RabbitMQURL, queue.DefaultConnectAttempts, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("Failed to close RabbitMQ connection", zap.Error(err))
		}
	}()
	zapLogger.Info("Connected to RabbitMQ")

	sender := workers.NewNotificationSender(mailer, jobQueue, zapLogger)

	janitor := queue.NewJanitor(jobQueue, dlqSweepInterval, dlqRetention, zapLogger)
	go func() {
		if err := janitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("DLQ janitor stopped", zap.Error(err))
		}
	}()
	zapLogger.Info("Started DLQ janitor",
		zap.Duration("interval", dlqSweepInterval),
		zap.Duration("retention", dlqRetention),
	)

	done := make(chan error, 1)
	go func() {
		done <- sender.Run(ctx, cfg.RabbitMQPrefetch)
	}()
	zapLogger.Info("Worker started, consuming messages from queue")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		zapLogger.Info("Shutdown signal received, stopping worker...")
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			zapLogger.Error("Worker stopped unexpectedly", zap.Error(err))
		}
	}

	zapLogger.Info("Worker stopped")
}
