package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/makerlab-autoreply/internal/core"
	"go.uber.org/zap"
)

// MemoryLedger keeps dispatch outcomes for the lifetime of the process
type MemoryLedger struct {
	entries     map[int64]*core.LedgerEntry
	mu          sync.RWMutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

// NewMemoryLedger creates a new in-memory ledger. A background task removes
// expired entries every cleanupFreq; zero disables it.
func NewMemoryLedger(logger *zap.Logger, cleanupFreq time.Duration) *MemoryLedger {
	l := &MemoryLedger{
		entries:     make(map[int64]*core.LedgerEntry),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}
	if cleanupFreq > 0 {
		go runCleanup(l, cleanupFreq, l.stopCh, logger)
	}
	return l
}

// Get retrieves the outcome recorded for an item
func (l *MemoryLedger) Get(ctx context.Context, itemID int64) (*core.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.entries[itemID]
	if !ok || !entry.ExpiresAt.After(l.now()) {
		return nil, core.ErrNotFound
	}
	copied := *entry
	return &copied, nil
}

// Record stores an outcome, replacing any earlier one for the item
func (l *MemoryLedger) Record(ctx context.Context, entry *core.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	copied := *entry
	l.entries[entry.ItemID] = &copied
	return nil
}

// Cleanup removes expired entries
func (l *MemoryLedger) Cleanup(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	expired := 0
	for id, entry := range l.entries {
		if !entry.ExpiresAt.After(now) {
			delete(l.entries, id)
			expired++
		}
	}

	l.logger.Debug("Cleaned up expired ledger entries", zap.Int("expired_count", expired))
	return nil
}

// Stop stops the background cleanup task
func (l *MemoryLedger) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}
