package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/storefront-api/internal/application/notification"
	"github.com/storefront-api/internal/config"
	"github.com/storefront-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/storefront-api/internal/infrastructure/jwt"
	"github.com/storefront-api/internal/infrastructure/rabbitmq"
	"github.com/storefront-api/internal/infrastructure/razorpay"
	s3infra "github.com/storefront-api/internal/infrastructure/s3"
	"github.com/storefront-api/internal/infrastructure/smtp"
	"github.com/storefront-api/internal/infrastructure/sns"
	transporthttp "github.com/storefront-api/internal/transport/http"
	"github.com/storefront-api/internal/transport/websocket"
)

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)
	if cfg.MigrateLegacyCarts {
		n, err := dynamo.MigrateLegacyCarts(ctx, dynamoClient, cfg.DynamoTables.Users)
		if err != nil {
			slog.Warn("legacy cart migration incomplete", "migrated", n, "err", err)
		} else {
			slog.Info("legacy cart migration finished", "migrated", n)
		}
	}

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		fatal("JWT provider not available", "err", err)
	}

	// S3 invoice archive (optional, invoices are still emailed without it).
	var invoiceStore *s3infra.Store
	if s3Client, err := s3infra.NewClient(cfg); err != nil {
		slog.Warn("S3 client not available, invoice archive disabled", "err", err)
	} else {
		invoiceStore = s3infra.NewStore(s3Client, cfg.S3BucketName)
		if err := invoiceStore.EnsureBucket(ctx); err != nil {
			slog.Warn("S3 bucket not available, invoice archive disabled", "bucket", cfg.S3BucketName, "err", err)
			invoiceStore = nil
		}
	}

	// SNS SMS sender (optional).
	var smsSender sns.SMSSender
	if cfg.SMSEnabled {
		if sender, err := sns.NewSender(cfg); err == nil {
			smsSender = sender
		} else {
			slog.Warn("SNS sender not available", "err", err)
		}
	}

	poolDeps := notification.PoolDeps{
		Mailer:      smtp.NewMailer(cfg),
		Workers:     cfg.Notify.Workers,
		QueueSize:   cfg.Notify.QueueSize,
		MaxRetries:  cfg.Notify.MaxRetries,
		SendTimeout: cfg.Notify.SendTimeout,
		Logger:      logger.With("component", "notifications"),
	}
	if smsSender != nil {
		poolDeps.SMSSender = smsSender
	}
	if invoiceStore != nil {
		poolDeps.Archiver = invoiceStore
	}
	pool := notification.NewPool(poolDeps)
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	pool.Start(workerCtx)

	var dispatcher transporthttp.Dispatcher = pool
	var publisher *rabbitmq.Publisher
	if cfg.Notify.AMQPURL != "" {
		publisher, err = rabbitmq.NewPublisher(cfg.Notify.AMQPURL, cfg.Notify.Exchange, cfg.Notify.Queue)
		if err != nil {
			fatal("RabbitMQ publisher not available", "err", err)
		}
		consumer, err := rabbitmq.NewConsumer(cfg.Notify.AMQPURL, cfg.Notify.Exchange, cfg.Notify.Queue, cfg.Notify.Prefetch, logger.With("component", "amqp"))
		if err != nil {
			fatal("RabbitMQ consumer not available", "err", err)
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Start(workerCtx, pool.Deliver); err != nil {
				slog.Error("notification consumer stopped", "err", err)
			}
		}()
		dispatcher = publisher
		slog.Info("notifications routed through RabbitMQ", "exchange", cfg.Notify.Exchange, "queue", cfg.Notify.Queue)
	}

	hub := websocket.NewHub()
	go hub.Run(workerCtx)

	deps := &transporthttp.Deps{
		UserRepo:     dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		OTPRepo:      dynamo.NewOTPRepo(dynamoClient, cfg.DynamoTables.OTPs),
		PendingRepo:  dynamo.NewPendingOrderRepo(dynamoClient, cfg.DynamoTables.PendingOrders),
		HistoryRepo:  dynamo.NewHistoryRepo(dynamoClient, cfg.DynamoTables.OrderHistory),
		InvoiceStore: invoiceStore,
		Dispatcher:   dispatcher,
		Gateway:      razorpay.NewClient(&cfg.Razorpay),
		JWTProvider:  jwtProvider,
		Hub:          hub,
		Clock:        time.Now,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "err", err)
	}

	stopWorkers()
	pool.Wait()
	if publisher != nil {
		_ = publisher.Close()
	}
	slog.Info("server stopped")
}
