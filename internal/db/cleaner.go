package db

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// IdleVaultCloser closes every vault opened before cutoff and reports how
// many were closed.
type IdleVaultCloser interface {
	CloseIdleVaults(ctx context.Context, cutoff time.Time) (int64, error)
}

// StartAutoLocker closes vaults that stayed open longer than idle, checking
// every interval until ctx is done.
func StartAutoLocker(
	ctx context.Context,
	locker IdleVaultCloser,
	interval time.Duration,
	idle time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				closed, err := locker.CloseIdleVaults(ctx, now.Add(-idle))
				if err != nil {
					log.Error("failed to close idle vaults", zap.Error(err))
					continue
				}
				if closed > 0 {
					log.Info("closed idle vaults", zap.Int64("closed", closed))
				}
			}
		}
	}()
}
