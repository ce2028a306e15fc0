// Package vaults implements the client-side vault store: the shared state
// behind the vault views, its form validation and the lifecycle workflows
// (create, open, close, move accounts) run against the backend Gateway.
//
// The store publishes immutable State snapshots. Each action builds the next
// snapshot and swaps it in under one lock, so a reader or subscriber never
// observes a multi-field change half applied.
package vaults

import (
	"context"
	"sync"

	"github.com/atinyakov/VaultKeeper/internal/models"
	"go.uber.org/zap"
)

// Gateway is the backend surface the store orchestrates.
type Gateway interface {
	// ListVaults returns the names of every vault known to the backend.
	ListVaults(ctx context.Context) ([]string, error)
	// ListOpenedVaults returns the names of the vaults currently open.
	ListOpenedVaults(ctx context.Context) ([]string, error)
	// GetVaultMeta returns the vault metadata. It fails when none was set yet.
	GetVaultMeta(ctx context.Context, name string) (models.VaultMeta, error)
	// NewVault creates a vault protected by password.
	NewVault(ctx context.Context, name, password string) error
	// SetVaultMeta replaces the vault metadata.
	SetVaultMeta(ctx context.Context, name string, meta models.VaultMeta) error
	// OpenVault unlocks a vault.
	OpenVault(ctx context.Context, name, password string) error
	// CloseVault locks a vault.
	CloseVault(ctx context.Context, name string) error
	// ChangeVault moves an account into vaultName, or out of any vault when empty.
	ChangeVault(ctx context.Context, address, vaultName string) error
}

const defaultMetaConcurrency = 8

// Option configures a Store.
type Option func(*Store)

// WithMetaConcurrency bounds the number of concurrent metadata fetches
// issued by LoadVaults. Values below one are ignored.
func WithMetaConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.metaConcurrency = n
		}
	}
}

// Store owns the vault view state. Create one per session with New and pass
// it to every consumer.
type Store struct {
	gw  Gateway
	log *zap.Logger

	metaConcurrency int

	mu     sync.RWMutex
	state  State
	subs   map[int]chan State
	nextID int

	// loadSeq numbers LoadVaults calls; only the newest may apply its
	// result. loading counts the calls still in flight. Both are guarded
	// by mu and touched only inside update.
	loadSeq uint64
	loading int
}

// New constructs a Store backed by gw. A nil logger is replaced by a no-op one.
func New(gw Gateway, log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		gw:              gw,
		log:             log,
		metaConcurrency: defaultMetaConcurrency,
		state:           initialState(),
		subs:            make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe returns a channel receiving every published snapshot, starting
// with the current one. The channel holds only the latest snapshot: a slow
// reader skips intermediate states but always ends on the newest. The
// returned func unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan State, 1)
	ch <- s.state
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// update applies fn to a copy of the current state, swaps it in and
// publishes it. It is the only write path.
func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state
	fn(&next)
	s.state = next

	for _, ch := range s.subs {
		publish(ch, next)
	}
}

// publish replaces whatever snapshot is pending in ch with st. Only update
// sends, and it holds the store lock, so the replacement cannot race another
// sender.
func publish(ch chan State, st State) {
	select {
	case ch <- st:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}
