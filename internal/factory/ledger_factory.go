package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mikey/makerlab-autoreply/internal/adapters/ledger"
	"github.com/mikey/makerlab-autoreply/internal/config"
	"github.com/mikey/makerlab-autoreply/internal/core"
	"go.uber.org/zap"
)

// LedgerFactory creates dispatch ledgers based on configuration
type LedgerFactory struct {
	cfg    config.LedgerConfig
	logger *zap.Logger
}

// NewLedgerFactory creates a new ledger factory
func NewLedgerFactory(cfg *config.Config, logger *zap.Logger) (*LedgerFactory, error) {
	ledgerCfg, err := cfg.GetLedger()
	if err != nil {
		return nil, err
	}
	return &LedgerFactory{
		cfg:    ledgerCfg,
		logger: logger,
	}, nil
}

// CreateLedger creates the configured ledger
func (f *LedgerFactory) CreateLedger(ctx context.Context) (core.Ledger, error) {
	switch f.cfg.Type {
	case "memory", "":
		return ledger.NewMemoryLedger(f.logger, f.cfg.CleanupFrequency), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(f.cfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return ledger.NewSQLiteLedger(f.cfg.SQLitePath, f.logger, f.cfg.CleanupFrequency)
	case "mysql":
		return ledger.NewMySQLLedger(ctx, f.cfg.MySQLDSN, f.logger, f.cfg.CleanupFrequency)
	default:
		return nil, fmt.Errorf("unsupported ledger type: %s", f.cfg.Type)
	}
}

// TTL returns how long recorded outcomes are kept
func (f *LedgerFactory) TTL() time.Duration {
	return f.cfg.TTL
}
