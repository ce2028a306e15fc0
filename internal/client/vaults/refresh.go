package vaults

import (
	"context"
	"time"
)

// StartAutoRefresh reloads the vault list every interval until ctx is done,
// so vaults locked elsewhere show up as closed.
func (s *Store) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.Snapshot().IsBusy() {
					continue
				}
				s.LoadVaults(ctx)
			}
		}
	}()
}
