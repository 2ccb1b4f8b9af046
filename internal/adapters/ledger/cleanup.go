package ledger

import (
	"context"
	"time"

	"github.com/mikey/makerlab-autoreply/internal/core"
	"go.uber.org/zap"
)

// Stopper is implemented by ledgers that hold background tasks or connections
type Stopper interface {
	Stop()
}

func runCleanup(l core.Ledger, freq time.Duration, stopCh <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := l.Cleanup(context.Background()); err != nil {
				logger.Error("Failed to clean up ledger", zap.Error(err))
			}
		case <-stopCh:
			return
		}
	}
}
