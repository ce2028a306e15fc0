package vaults

import (
	"context"
	"errors"
	"sync"

	"github.com/atinyakov/VaultKeeper/internal/models"
)

var errNoMeta = errors.New("vault metadata not set")

// fakeGateway records every call and serves vaults from memory.
type fakeGateway struct {
	mu sync.Mutex

	names  []string
	opened []string
	metas  map[string]models.VaultMeta

	listErr    error
	openedErr  error
	newErr     error
	setMetaErr error
	openErr    error
	closeErr   error
	changeErr  map[string]error

	// onList runs inside ListVaults after the names were read.
	onList func()
	// onChange runs inside ChangeVault before it returns.
	onChange func(address, vaultName string)

	calls []string
}

func newFakeGateway(names ...string) *fakeGateway {
	return &fakeGateway{
		names:     names,
		metas:     map[string]models.VaultMeta{},
		changeErr: map[string]error{},
	}
}

func (f *fakeGateway) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeGateway) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeGateway) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeGateway) ListVaults(ctx context.Context) ([]string, error) {
	f.record("listVaults")
	f.mu.Lock()
	if f.listErr != nil {
		defer f.mu.Unlock()
		return nil, f.listErr
	}
	names := append([]string(nil), f.names...)
	hook := f.onList
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return names, nil
}

func (f *fakeGateway) ListOpenedVaults(ctx context.Context) ([]string, error) {
	f.record("listOpenedVaults")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openedErr != nil {
		return nil, f.openedErr
	}
	return append([]string(nil), f.opened...), nil
}

func (f *fakeGateway) GetVaultMeta(ctx context.Context, name string) (models.VaultMeta, error) {
	f.record("getVaultMeta:" + name)
	f.mu.Lock()
	defer f.mu.Unlock()
	meta, ok := f.metas[name]
	if !ok {
		return models.VaultMeta{}, errNoMeta
	}
	return meta, nil
}

func (f *fakeGateway) NewVault(ctx context.Context, name, password string) error {
	f.record("newVault:" + name + ":" + password)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.newErr != nil {
		return f.newErr
	}
	f.names = append(f.names, name)
	return nil
}

func (f *fakeGateway) SetVaultMeta(ctx context.Context, name string, meta models.VaultMeta) error {
	f.record("setVaultMeta:" + name)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setMetaErr != nil {
		return f.setMetaErr
	}
	f.metas[name] = meta
	return nil
}

func (f *fakeGateway) OpenVault(ctx context.Context, name, password string) error {
	f.record("openVault:" + name + ":" + password)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = append(f.opened, name)
	return nil
}

func (f *fakeGateway) CloseVault(ctx context.Context, name string) error {
	f.record("closeVault:" + name)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closeErr != nil {
		return f.closeErr
	}
	kept := f.opened[:0:0]
	for _, n := range f.opened {
		if n != name {
			kept = append(kept, n)
		}
	}
	f.opened = kept
	return nil
}

func (f *fakeGateway) ChangeVault(ctx context.Context, address, vaultName string) error {
	f.record("changeVault:" + address + ":" + vaultName)
	if f.onChange != nil {
		f.onChange(address, vaultName)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changeErr[address]
}
