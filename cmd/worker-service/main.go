package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wiselista/photo-jobs-be/internal/config"
	"github.com/wiselista/photo-jobs-be/internal/worker"
	"github.com/wiselista/photo-jobs-be/internal/worker/editor"
	"github.com/wiselista/photo-jobs-be/internal/worker/storage"
	"github.com/wiselista/photo-jobs-be/shared/logger"
	"github.com/wiselista/photo-jobs-be/shared/objectstore"
	"github.com/wiselista/photo-jobs-be/shared/postgresql"
	"github.com/wiselista/photo-jobs-be/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger := logger.New(&logger.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cfg.Logging.Output,
		EnableSource: cfg.Logging.EnableCaller,
		TimeFormat:   time.RFC3339,
	})

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	rabbitClient, err := rabbitmq.NewClient(&rabbitmq.Config{
		Host:            cfg.RabbitMQ.Host,
		Port:            cfg.RabbitMQ.Port,
		User:            cfg.RabbitMQ.User,
		Password:        cfg.RabbitMQ.Password,
		VHost:           cfg.RabbitMQ.VHost,
		ExchangeName:    cfg.RabbitMQ.Exchange.Name,
		ExchangeType:    cfg.RabbitMQ.Exchange.Type,
		ExchangeDurable: cfg.RabbitMQ.Exchange.Durable,
		QueueName:       cfg.RabbitMQ.Queue.Name,
		QueueDurable:    cfg.RabbitMQ.Queue.Durable,
		RoutingKey:      cfg.RabbitMQ.RoutingKey,
		RetryAttempts:   cfg.RabbitMQ.Connection.RetryAttempts,
		RetryInterval:   cfg.RabbitMQ.Connection.RetryInterval,
		Heartbeat:       cfg.RabbitMQ.Connection.Heartbeat,
	}, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	objectClient, err := objectstore.NewClient(&objectstore.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
	}, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	appLogger.Info("Object storage connection established")

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:            appLogger,
		Storage:           storage.NewStorage(dbClient.GetDB(), appLogger),
		RabbitClient:      rabbitClient,
		Editor:            editor.NewMockEditor(objectClient, appLogger, cfg.Worker.EditDelay),
		Concurrency:       cfg.Worker.Concurrency,
		PrefetchCount:     cfg.Worker.PrefetchCount,
		JobTimeout:        cfg.Worker.JobTimeout,
		ProcessingTimeout: cfg.Worker.ProcessingTimeout,
		ReapInterval:      cfg.Worker.ReapInterval,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	if dbClient != nil {
		dbClient.Close()
	}
	if rabbitClient != nil {
		rabbitClient.Close()
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}
