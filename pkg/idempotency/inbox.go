// Package idempotency provides an inbox for exactly-once notification
// delivery. Reminder and missed-dose notifications are deduplicated by a
// deterministic key over (prescription id, medicine name, scheduled time),
// with entries expiring at the end of the scheduled day: the same dose never
// notifies twice, and the key space resets daily.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Status is the processing state of an inbox entry.
type Status string

const (
	StatusStarted     Status = "STARTED"
	StatusFinished    Status = "FINISHED"
	StatusRecoverable Status = "RECOVERABLE"
	StatusFailed      Status = "FAILED"
)

// Entry is one idempotency record.
type Entry struct {
	Key         string
	HandlerName string
	Status      Status
	Payload     json.RawMessage
	Result      json.RawMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   *time.Time
}

// Config holds inbox configuration.
type Config struct {
	// CleanupInterval is how often expired entries are purged.
	CleanupInterval time.Duration
	// RecoveryTimeout is when a STARTED entry is considered abandoned.
	RecoveryTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		CleanupInterval: time.Hour,
		RecoveryTimeout: 5 * time.Minute,
	}
}

// ErrDuplicate indicates the key was already processed.
var ErrDuplicate = errors.New("duplicate: already processed")

// ErrInProgress indicates another handler holds the key.
var ErrInProgress = errors.New("in progress by another handler")

// Inbox manages idempotent notification processing.
type Inbox struct {
	pool   *pgxpool.Pool
	config Config
	logger *zap.Logger
	tracer trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an inbox.
func New(pool *pgxpool.Pool, cfg Config, logger *zap.Logger) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Inbox{
		pool:   pool,
		config: cfg,
		logger: logger,
		tracer: otel.Tracer("notification-inbox"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ReminderKey builds the dedup key for one dose notification. The scheduled
// time is truncated to the minute so clock drift between producers cannot
// split one dose into two keys.
func ReminderKey(prescriptionID, medicineName string, scheduledTime time.Time) string {
	data := strings.Join([]string{
		prescriptionID,
		medicineName,
		scheduledTime.UTC().Truncate(time.Minute).Format(time.RFC3339),
	}, "|")
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// EndOfDay returns the expiry for a dose scheduled at t: midnight after the
// scheduled day, which is the daily reset the dedup contract promises.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}

// ProcessFunc is an idempotent handler.
type ProcessFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Result reports the outcome of Process.
type Result struct {
	IsNew  bool
	Output json.RawMessage
}

// Process runs fn at most once per key. A FINISHED entry short-circuits with
// the stored result; a stale STARTED entry (older than RecoveryTimeout) is
// recovered and retried; a fresh STARTED entry returns ErrInProgress.
func (i *Inbox) Process(ctx context.Context, key, handlerName string, payload json.RawMessage, expiresAt time.Time, fn ProcessFunc) (*Result, error) {
	ctx, span := i.tracer.Start(ctx, "inbox_process",
		trace.WithAttributes(
			attribute.String("idempotency_key", key),
			attribute.String("handler", handlerName),
		))
	defer span.End()

	entry, err := i.getEntry(ctx, key)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check inbox: %w", err)
	}

	if entry != nil {
		switch entry.Status {
		case StatusFinished:
			span.SetAttributes(attribute.Bool("duplicate", true))
			return &Result{IsNew: false, Output: entry.Result}, nil
		case StatusFailed:
			return nil, fmt.Errorf("previously failed permanently: %s", key)
		case StatusStarted:
			if time.Since(entry.UpdatedAt) <= i.config.RecoveryTimeout {
				return nil, ErrInProgress
			}
			if err := i.markStatus(ctx, key, StatusRecoverable, nil, ""); err != nil {
				return nil, fmt.Errorf("mark recoverable: %w", err)
			}
		case StatusRecoverable:
			span.SetAttributes(attribute.Bool("recovered", true))
		}
	}

	if err := i.claim(ctx, key, handlerName, payload, expiresAt); err != nil {
		return nil, err
	}

	output, handlerErr := fn(ctx, payload)
	if handlerErr != nil {
		status := StatusRecoverable
		if isTerminalError(handlerErr) {
			status = StatusFailed
		}
		if err := i.markStatus(ctx, key, status, nil, handlerErr.Error()); err != nil {
			i.logger.Error("failed to mark error status", zap.Error(err))
		}
		span.RecordError(handlerErr)
		return nil, handlerErr
	}

	if err := i.markStatus(ctx, key, StatusFinished, output, ""); err != nil {
		// The handler succeeded; losing the mark only risks one redelivery.
		i.logger.Error("failed to mark finished", zap.Error(err))
	}

	return &Result{IsNew: entry == nil, Output: output}, nil
}

func (i *Inbox) getEntry(ctx context.Context, key string) (*Entry, error) {
	query := `
		SELECT idempotency_key, handler_name, status, payload, result, created_at, updated_at, expires_at
		FROM notification_inbox
		WHERE idempotency_key = $1
	`
	entry := &Entry{}
	err := i.pool.QueryRow(ctx, query, key).Scan(
		&entry.Key, &entry.HandlerName, &entry.Status,
		&entry.Payload, &entry.Result, &entry.CreatedAt, &entry.UpdatedAt, &entry.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// claim inserts the key as STARTED, or takes over a RECOVERABLE entry.
func (i *Inbox) claim(ctx context.Context, key, handlerName string, payload json.RawMessage, expiresAt time.Time) error {
	query := `
		INSERT INTO notification_inbox (idempotency_key, handler_name, status, payload, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (idempotency_key) DO UPDATE
		SET status = $3, updated_at = NOW()
		WHERE notification_inbox.status = 'RECOVERABLE'
		RETURNING idempotency_key
	`
	var returned string
	err := i.pool.QueryRow(ctx, query, key, handlerName, StatusStarted, payload, expiresAt).Scan(&returned)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("claim inbox entry: %w", err)
	}
	return nil
}

func (i *Inbox) markStatus(ctx context.Context, key string, status Status, result json.RawMessage, errMsg string) error {
	if errMsg != "" && result == nil {
		result, _ = json.Marshal(map[string]string{"error": errMsg})
	}
	_, err := i.pool.Exec(ctx,
		"UPDATE notification_inbox SET status = $1, result = $2, updated_at = NOW() WHERE idempotency_key = $3",
		status, result, key)
	return err
}

// StartCleanup starts the background expiry loop.
func (i *Inbox) StartCleanup() {
	go i.cleanupLoop()
	i.logger.Info("notification inbox cleanup started",
		zap.Duration("interval", i.config.CleanupInterval))
}

// Stop stops the cleanup loop.
func (i *Inbox) Stop() {
	i.cancel()
	<-i.done
}

func (i *Inbox) cleanupLoop() {
	defer close(i.done)

	ticker := time.NewTicker(i.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-i.ctx.Done():
			return
		case <-ticker.C:
			if err := i.cleanup(i.ctx); err != nil {
				i.logger.Error("inbox cleanup failed", zap.Error(err))
			}
		}
	}
}

// cleanup purges expired entries; this is the daily reset of the dedup space.
func (i *Inbox) cleanup(ctx context.Context) error {
	result, err := i.pool.Exec(ctx, "DELETE FROM notification_inbox WHERE expires_at < NOW()")
	if err != nil {
		return err
	}
	if result.RowsAffected() > 0 {
		i.logger.Info("inbox cleanup completed", zap.Int64("deleted", result.RowsAffected()))
	}
	return nil
}

// RecoverStale marks abandoned STARTED entries RECOVERABLE.
func (i *Inbox) RecoverStale(ctx context.Context) (int64, error) {
	result, err := i.pool.Exec(ctx,
		"UPDATE notification_inbox SET status = 'RECOVERABLE', updated_at = NOW() WHERE status = 'STARTED' AND updated_at < NOW() - $1::interval",
		i.config.RecoveryTimeout.String())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// isTerminalError reports whether an error should not be retried.
func isTerminalError(err error) bool {
	errStr := strings.ToLower(err.Error())
	for _, phrase := range []string{"validation", "invalid", "not found", "unauthorized", "forbidden"} {
		if strings.Contains(errStr, phrase) {
			return true
		}
	}
	return false
}
