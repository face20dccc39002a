package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/core-banking/ledger/internal/api"
	"github.com/core-banking/ledger/internal/api/handler"
	"github.com/core-banking/ledger/internal/audit"
	"github.com/core-banking/ledger/internal/config"
	"github.com/core-banking/ledger/internal/data/mongo"
	"github.com/core-banking/ledger/internal/data/postgres"
	"github.com/core-banking/ledger/internal/ledger"
	"github.com/core-banking/ledger/internal/logger"
	"github.com/core-banking/ledger/internal/platform/messaging/consumers"
	"github.com/core-banking/ledger/internal/platform/messaging/producers"
	"github.com/core-banking/ledger/internal/platform/persistence"
	"github.com/core-banking/ledger/internal/relay"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("ledger_service")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Ledger Service",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize PostgreSQL with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	// Initialize stores
	accountStore := postgres.NewAccountStore(log, postgresDB)
	journalRepo := postgres.NewJournalRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB, &cfg.Outbox)
	idempotencyStore := postgres.NewIdempotencyStore(log, postgresDB)

	// Initialize the engine and its worker pool front
	engine := ledger.NewEngine(log, postgresDB, accountStore, journalRepo, outboxRepo, idempotencyStore, &cfg.Ledger)
	pooled, err := ledger.NewWorkerPoolService(log, engine, &cfg.WorkerPool)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producers
	eventProducer, err := producers.NewEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize event Kafka producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer might be nil if DLQTopic is not configured. Publisher is nil-safe.

	// Initialize outbox relay
	var dlq producers.DeadLetterPublisher
	if dlqProducer != nil {
		dlq = dlqProducer
	}
	publisher := relay.NewKafkaPublisher(log, eventProducer, dlq)
	outboxRelay := relay.NewRelay(log, &cfg.Outbox, outboxRepo, publisher)

	// Initialize the audit archive and event tap if enabled
	var mongoDB *persistence.MongoDB
	var archive handler.AuditArchiveReader
	var tapConsumers []*consumers.KafkaConsumer
	if cfg.Audit.Enabled {
		mongoDB, err = persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
		if err != nil {
			log.Error("Failed to initialize MongoDB", "error", err)
			os.Exit(1)
		}

		auditLogs := mongo.NewAuditLogRepository(log, mongoDB.Database(), cfg.Audit.Collection)
		archive = auditLogs
		tap := audit.NewTap(log, auditLogs)

		transactionConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka, cfg.Kafka.TransactionTopic)
		auditConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka, cfg.Kafka.AuditTopic)
		tapConsumers = append(tapConsumers, transactionConsumer, auditConsumer)

		if err := transactionConsumer.Subscribe(appCtx, tap.HandleTransaction); err != nil {
			log.Error("Failed to subscribe to transaction topic", "error", err)
			os.Exit(1)
		}
		if err := auditConsumer.Subscribe(appCtx, tap.HandleAudit); err != nil {
			log.Error("Failed to subscribe to audit topic", "error", err)
			os.Exit(1)
		}
	}

	// Initialize HTTP server
	server := api.NewServer(log, cfg, pooled, engine, outboxRepo, archive)

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start outbox relay in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		outboxRelay.Start(appCtx)
	}()

	// Start HTTP server in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Stop accepting new HTTP requests first
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping HTTP server", "error", err)
	}

	// Stop the relay and consumers
	cancelAppCtx()

	// Drain the worker pool
	pooled.Shutdown()

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close Kafka producers
	if err := eventProducer.Close(); err != nil {
		log.Error("Error closing event Kafka producer", "error", err)
	}
	if dlqProducer != nil { // dlqProducer can be nil if DLQTopic was not configured
		if err := dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	// Close tap consumers
	for _, consumer := range tapConsumers {
		if err := consumer.Close(); err != nil {
			log.Error("Error closing Kafka consumer", "error", err)
		}
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if mongoDB != nil {
		if err := mongoDB.Close(shutdownCtx); err != nil {
			log.Error("Error closing MongoDB connection", "error", err)
		}
	}

	// Final status
	if serviceErr != nil {
		log.Error("Ledger Service shutdown completed with errors", "error", serviceErr)
	} else {
		log.Info("Ledger Service shutdown completed successfully")
	}
}
