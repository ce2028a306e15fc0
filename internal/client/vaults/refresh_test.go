package vaults

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartAutoRefresh(t *testing.T) {
	gw := newFakeGateway("Work")
	s := newTestStore(t, gw)

	ctx, cancel := context.WithCancel(context.Background())
	s.StartAutoRefresh(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return gw.count("listVaults") >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()

	assert.Len(t, s.Snapshot().Vaults, 1)
}

func TestStartAutoRefresh_SkipsWhileBusy(t *testing.T) {
	gw := newFakeGateway("Work")
	s := newTestStore(t, gw)
	s.SetBusyUnlock(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartAutoRefresh(ctx, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, gw.count("listVaults"))
}

func TestStartAutoRefresh_PicksUpRemoteClose(t *testing.T) {
	gw := newFakeGateway("Work")
	gw.opened = []string{"Work"}
	s := loadedStore(t, gw)
	assert.True(t, s.Snapshot().Vaults[0].IsOpen)

	gw.mu.Lock()
	gw.opened = nil
	gw.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartAutoRefresh(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return !s.Snapshot().Vaults[0].IsOpen
	}, time.Second, 5*time.Millisecond)
}
