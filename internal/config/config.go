// Package config provides configuration structures and validation for the
// ledger service. It handles environment-based configuration for all major
// components including the HTTP server, database connections, the event
// transport, and the ledger engine's operational parameters.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete service configuration. Each field represents a
// major subsystem's configuration and is validated during startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Ledger      LedgerConfig
	Outbox      OutboxConfig
	WorkerPool  WorkerPoolConfig
	Audit       AuditConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// KafkaConfig contains event transport configuration
type KafkaConfig struct {
	Brokers           string
	TransactionTopic  string // applied money movements
	AuditTopic        string // audit trail events
	DLQTopic          string // undecodable outbox payloads
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string // diagnostic event tap
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// MongoDBConfig contains MongoDB configuration for the audit archive
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// LedgerConfig contains ledger engine configuration
type LedgerConfig struct {
	// MaxAttempts bounds the optimistic retry loop on version conflicts
	// before an operation surfaces ContentionExceeded.
	MaxAttempts int
}

// OutboxConfig contains outbox relay configuration
type OutboxConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	MaxAttempts     int           // delivery attempt budget per entry
	BackoffBase     time.Duration // first retry delay, doubled per attempt
	BackoffCap      time.Duration // upper bound on the retry delay
	ClaimStaleAfter time.Duration // claimed entries are reclaimed after this
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int
}

// AuditConfig controls the diagnostic event tap and audit archive
type AuditConfig struct {
	Enabled    bool
	Collection string // MongoDB collection for archived audit events
}

// validate performs comprehensive validation of all configuration values
func (c *Config) validate() error {
	var validationErrors []string

	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.TransactionTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_TRANSACTION_TOPIC is required")
	}
	if c.Kafka.AuditTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_AUDIT_TOPIC is required")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}

	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	if c.Audit.Enabled {
		if c.MongoDB.URI == "" {
			validationErrors = append(validationErrors, "MONGO_URI is required")
		}
		if c.MongoDB.Database == "" {
			validationErrors = append(validationErrors, "MONGO_DATABASE is required")
		}
		if c.MongoDB.Timeout <= 0 {
			validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
		}
		if c.Kafka.ConsumerGroup == "" {
			validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
		}
		if c.Audit.Collection == "" {
			validationErrors = append(validationErrors, "AUDIT_COLLECTION is required")
		}
	}

	if c.Ledger.MaxAttempts <= 0 {
		validationErrors = append(validationErrors, "LEDGER_MAX_ATTEMPTS must be greater than 0")
	}

	if c.Outbox.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}
	if c.Outbox.MaxAttempts <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_MAX_ATTEMPTS must be greater than 0")
	}
	if c.Outbox.BackoffBase <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BACKOFF_BASE must be greater than 0")
	}
	if c.Outbox.BackoffCap < c.Outbox.BackoffBase {
		validationErrors = append(validationErrors, "OUTBOX_BACKOFF_CAP must be at least OUTBOX_BACKOFF_BASE")
	}
	if c.Outbox.ClaimStaleAfter <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_CLAIM_STALE_AFTER must be greater than 0")
	}

	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
