// Package store persists flagged transactions to Postgres. Saves are retried
// with bounded exponential backoff on transient store failures; exhausted
// retries run a recovery handler that logs the loss loudly and lets the
// pipeline continue. That is the only path by which a detected fraud is not
// persisted.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"fraudwatch/pkg/models"
	"fraudwatch/pkg/retry"
	"fraudwatch/pkg/structlog"
)

// Config configuration for the fraud record store.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	ConnectTimeout time.Duration
}

// FraudStore records flagged transactions durably.
type FraudStore struct {
	db      *sql.DB
	retrier *retry.Executor
	log     *structlog.Logger
}

// Open connects to Postgres and verifies the connection.
func Open(cfg Config, policy retry.Policy, log *structlog.Logger) (*FraudStore, error) {
	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = 1 * time.Minute
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
		int(cfg.ConnectTimeout.Seconds()),
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open fraud store: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping fraud store: %w", err)
	}

	return NewFraudStore(db, policy, log), nil
}

// NewFraudStore wraps an existing connection pool. Exposed so tests can
// substitute their own *sql.DB.
func NewFraudStore(db *sql.DB, policy retry.Policy, log *structlog.Logger) *FraudStore {
	return &FraudStore{
		db:      db,
		retrier: retry.NewExecutor(policy, log),
		log:     log,
	}
}

// Close releases the connection pool.
func (s *FraudStore) Close() error { return s.db.Close() }

// Save writes the fraud record for a flagged transaction. Transient store
// failures are retried per the configured policy; when every attempt is
// exhausted the recovery handler logs a critical loss record and the error is
// returned for accounting. Non-transient failures (constraint violations and
// the like) fail immediately without retries.
func (s *FraudStore) Save(ctx context.Context, tx *models.Transaction, verdict models.Verdict) error {
	rec := buildRecord(tx, verdict, time.Now().UTC())

	s.log.Debug("saving fraud record", structlog.Fields{
		"transaction_id": rec.TransactionID,
	})

	err := s.retrier.Do(ctx, "fraud_record_save", func() error {
		return s.insert(ctx, &rec)
	}, IsTransient)
	if err != nil {
		s.recoverFromSaveFailure(tx, verdict, err)
		return fmt.Errorf("save fraud record %s: %w", rec.TransactionID, err)
	}

	s.log.Info("fraud record saved", structlog.Fields{
		"transaction_id": rec.TransactionID,
		"record_id":      rec.ID,
		"flag_reason":    rec.FlagReason,
	})
	return nil
}

func (s *FraudStore) insert(ctx context.Context, rec *models.FraudRecord) error {
	const q = `
		INSERT INTO fraudulent_transactions
			(transaction_id, user_id, amount, merchant_id, event_timestamp,
			 location, payment_method, detection_method, fraud_probability,
			 detected_at, flag_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	return s.db.QueryRowContext(ctx, q,
		rec.TransactionID,
		rec.UserID,
		rec.Amount,
		rec.MerchantID,
		rec.Timestamp,
		rec.Location,
		string(rec.PaymentMethod),
		rec.DetectionMethod,
		rec.FraudProbability,
		rec.DetectedAt,
		rec.FlagReason,
	).Scan(&rec.ID)
}

// recoverFromSaveFailure runs after all retries are exhausted. It must not
// fail; its one job is a loud, structured record of the lost fraud for manual
// follow-up.
func (s *FraudStore) recoverFromSaveFailure(tx *models.Transaction, verdict models.Verdict, cause error) {
	s.log.Critical("fraud record lost after exhausted retries, manual intervention required", structlog.Fields{
		"transaction_id":    tx.TransactionID,
		"amount":            tx.Amount.String(),
		"fraud_probability": verdict.Probability,
		"flag_reason":       verdict.Reason,
		"error":             cause.Error(),
	})
}

// buildRecord projects a flagged transaction plus its verdict into the
// persisted shape.
func buildRecord(tx *models.Transaction, verdict models.Verdict, detectedAt time.Time) models.FraudRecord {
	return models.FraudRecord{
		TransactionID:    tx.TransactionID,
		UserID:           tx.UserID,
		Amount:           tx.Amount,
		MerchantID:       tx.MerchantID,
		Timestamp:        tx.Timestamp,
		Location:         tx.Location,
		PaymentMethod:    tx.PaymentMethod,
		DetectionMethod:  verdict.Method,
		FraudProbability: verdict.Probability,
		DetectedAt:       detectedAt,
		FlagReason:       verdict.Reason,
	}
}
