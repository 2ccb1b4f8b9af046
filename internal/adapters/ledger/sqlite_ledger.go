package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/makerlab-autoreply/internal/core"
	"go.uber.org/zap"
)

// SQLiteLedger persists dispatch outcomes in a local SQLite file so that
// reruns on the same day skip items already handled
type SQLiteLedger struct {
	db       *sql.DB
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewSQLiteLedger opens (or creates) the ledger database at dbPath
func NewSQLiteLedger(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS dispatch_ledger (
			item_id INTEGER PRIMARY KEY,
			label TEXT NOT NULL,
			outcome TEXT NOT NULL,
			run_id TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_ledger_expires_at ON dispatch_ledger(expires_at)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	l := &SQLiteLedger{
		db:     db,
		logger: logger,
		stopCh: make(chan struct{}),
		now:    time.Now,
	}
	if cleanupFreq > 0 {
		go runCleanup(l, cleanupFreq, l.stopCh, logger)
	}
	return l, nil
}

// Get retrieves the outcome recorded for an item
func (l *SQLiteLedger) Get(ctx context.Context, itemID int64) (*core.LedgerEntry, error) {
	var (
		entry                 core.LedgerEntry
		label, outcome        string
		recordedAt, expiresAt string
	)
	err := l.db.QueryRowContext(ctx, `
		SELECT item_id, label, outcome, run_id, recorded_at, expires_at
		FROM dispatch_ledger
		WHERE item_id = ? AND expires_at > ?
	`, itemID, formatTime(l.now())).Scan(&entry.ItemID, &label, &outcome, &entry.RunID, &recordedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}

	entry.Label = core.Label(label)
	entry.Outcome = core.Outcome(outcome)
	if entry.RecordedAt, err = parseTime(recordedAt); err != nil {
		return nil, fmt.Errorf("failed to parse recorded_at timestamp: %w", err)
	}
	if entry.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("failed to parse expires_at timestamp: %w", err)
	}
	return &entry, nil
}

// Record stores an outcome, replacing any earlier one for the item
func (l *SQLiteLedger) Record(ctx context.Context, entry *core.LedgerEntry) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO dispatch_ledger (item_id, label, outcome, run_id, recorded_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ItemID, string(entry.Label), string(entry.Outcome), entry.RunID,
		formatTime(entry.RecordedAt), formatTime(entry.ExpiresAt))
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (l *SQLiteLedger) Cleanup(ctx context.Context) error {
	result, err := l.db.ExecContext(ctx, `DELETE FROM dispatch_ledger WHERE expires_at <= ?`, formatTime(l.now()))
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

// Stop stops the background cleanup task and closes the database
func (l *SQLiteLedger) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		if err := l.db.Close(); err != nil {
			l.logger.Error("Failed to close SQLite database", zap.Error(err))
		}
	})
}

// Timestamps are stored as fixed-width UTC strings so they compare
// lexically in SQL
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(storedTimeLayout, s)
}
