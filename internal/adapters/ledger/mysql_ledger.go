package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mikey/makerlab-autoreply/internal/core"
	"go.uber.org/zap"
)

// MySQLLedger stores dispatch outcomes in a shared MySQL database, for
// deployments where several hosts run the pipeline
type MySQLLedger struct {
	db       *sql.DB
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMySQLLedger connects to the database and creates the ledger table
func NewMySQLLedger(ctx context.Context, dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLLedger, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	// DATETIME columns are scanned into time.Time in UTC
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create MySQL connector: %w", err)
	}
	db := sql.OpenDB(connector)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dispatch_ledger (
			item_id BIGINT PRIMARY KEY,
			label VARCHAR(32) NOT NULL,
			outcome VARCHAR(32) NOT NULL,
			run_id VARCHAR(64) NOT NULL,
			recorded_at DATETIME(6) NOT NULL,
			expires_at DATETIME(6) NOT NULL,
			INDEX idx_ledger_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	l := &MySQLLedger{
		db:     db,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	if cleanupFreq > 0 {
		go runCleanup(l, cleanupFreq, l.stopCh, logger)
	}
	return l, nil
}

// Get retrieves the outcome recorded for an item
func (l *MySQLLedger) Get(ctx context.Context, itemID int64) (*core.LedgerEntry, error) {
	var (
		entry          core.LedgerEntry
		label, outcome string
	)
	err := l.db.QueryRowContext(ctx, `
		SELECT item_id, label, outcome, run_id, recorded_at, expires_at
		FROM dispatch_ledger
		WHERE item_id = ? AND expires_at > UTC_TIMESTAMP(6)
	`, itemID).Scan(&entry.ItemID, &label, &outcome, &entry.RunID, &entry.RecordedAt, &entry.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	entry.Label = core.Label(label)
	entry.Outcome = core.Outcome(outcome)
	return &entry, nil
}

// Record stores an outcome, replacing any earlier one for the item
func (l *MySQLLedger) Record(ctx context.Context, entry *core.LedgerEntry) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO dispatch_ledger (item_id, label, outcome, run_id, recorded_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			label = VALUES(label),
			outcome = VALUES(outcome),
			run_id = VALUES(run_id),
			recorded_at = VALUES(recorded_at),
			expires_at = VALUES(expires_at)
	`, entry.ItemID, string(entry.Label), string(entry.Outcome), entry.RunID,
		entry.RecordedAt.UTC(), entry.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (l *MySQLLedger) Cleanup(ctx context.Context) error {
	result, err := l.db.ExecContext(ctx, `DELETE FROM dispatch_ledger WHERE expires_at <= UTC_TIMESTAMP(6)`)
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	if rows, err := result.RowsAffected(); err != nil {
		l.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		l.logger.Debug("Cleaned up expired ledger entries", zap.Int64("expired_count", rows))
	}
	return nil
}

// Stop stops the background cleanup task and closes the connection pool
func (l *MySQLLedger) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		if err := l.db.Close(); err != nil {
			l.logger.Error("Failed to close MySQL database", zap.Error(err))
		}
	})
}
