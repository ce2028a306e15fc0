// Package http exposes the vault service as a JSON-RPC endpoint.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/atinyakov/VaultKeeper/internal/middleware"
	"github.com/atinyakov/VaultKeeper/internal/models"
	"github.com/atinyakov/VaultKeeper/internal/rpc"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// VaultService defines the vault operations served by RPCHandler. Every
// call is scoped to the authenticated owner.
type VaultService interface {
	ListVaults(ctx context.Context, owner string) ([]string, error)
	ListOpenedVaults(ctx context.Context, owner string) ([]string, error)
	GetVaultMeta(ctx context.Context, owner, name string) (models.VaultMeta, error)
	NewVault(ctx context.Context, owner, name, password string) error
	SetVaultMeta(ctx context.Context, owner, name string, meta models.VaultMeta) error
	OpenVault(ctx context.Context, owner, name, password string) error
	CloseVault(ctx context.Context, owner, name string) error
	ChangeVault(ctx context.Context, owner, address, name string) error
	VaultAccounts(ctx context.Context, owner, name string) (map[string]string, error)
}

// vaultErrors are reported to the caller verbatim under rpc.CodeVaultError.
var vaultErrors = []error{
	models.ErrVaultNotFound,
	models.ErrVaultExists,
	models.ErrWrongPassword,
	models.ErrMetaNotSet,
	models.ErrInvalidAddress,
	models.ErrInvalidName,
}

// RPCHandler serves POST /rpc. Requests are decoded and dispatched by a
// go-ethereum rpc.Server holding the parity and vault namespaces.
type RPCHandler struct {
	server *gethrpc.Server
}

// NewRPCHandler registers vaults under both namespaces. Call Close on
// shutdown.
func NewRPCHandler(vaults VaultService, log *zap.Logger) (*RPCHandler, error) {
	server := gethrpc.NewServer()
	mapper := &errorMapper{log: log}
	if err := server.RegisterName(rpc.NamespaceParity, &parityAPI{vaults: vaults, errs: mapper}); err != nil {
		server.Stop()
		return nil, fmt.Errorf("register %s api: %w", rpc.NamespaceParity, err)
	}
	if err := server.RegisterName(rpc.NamespaceVault, &accountsAPI{vaults: vaults, errs: mapper}); err != nil {
		server.Stop()
		return nil, fmt.Errorf("register %s api: %w", rpc.NamespaceVault, err)
	}
	return &RPCHandler{server: server}, nil
}

// ServeRPC handles one JSON-RPC request or batch. Protocol and call failures
// are reported in the JSON-RPC error object with status 200.
func (h *RPCHandler) ServeRPC(w http.ResponseWriter, r *http.Request) {
	h.server.ServeHTTP(w, r)
}

// Close stops the server and cancels calls still in flight.
func (h *RPCHandler) Close() {
	h.server.Stop()
}

// Health handles GET /healthz.
func (h *RPCHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

// errorMapper turns service errors into coded JSON-RPC errors. Vault errors
// keep their message; anything else is logged and reported as internal.
type errorMapper struct {
	log *zap.Logger
}

func (m *errorMapper) wrap(ctx context.Context, method string, err error) error {
	if err == nil {
		return nil
	}
	var coded *rpc.Error
	if errors.As(err, &coded) {
		return coded
	}
	for _, known := range vaultErrors {
		if errors.Is(err, known) {
			return &rpc.Error{Code: rpc.CodeVaultError, Message: err.Error()}
		}
	}
	m.log.Error("rpc call failed",
		zap.String("method", method),
		zap.String("owner", middleware.GetOwnerFromContext(ctx)),
		zap.Error(err),
	)
	return &rpc.Error{Code: rpc.CodeInternalError, Message: "internal error"}
}

// parityAPI is served under the parity namespace: ListVaults answers
// parity_listVaults and so on. Mutations answer true.
type parityAPI struct {
	vaults VaultService
	errs   *errorMapper
}

func (a *parityAPI) ListVaults(ctx context.Context) ([]string, error) {
	names, err := a.vaults.ListVaults(ctx, middleware.GetOwnerFromContext(ctx))
	if err != nil {
		return nil, a.errs.wrap(ctx, rpc.MethodListVaults, err)
	}
	return names, nil
}

func (a *parityAPI) ListOpenedVaults(ctx context.Context) ([]string, error) {
	names, err := a.vaults.ListOpenedVaults(ctx, middleware.GetOwnerFromContext(ctx))
	if err != nil {
		return nil, a.errs.wrap(ctx, rpc.MethodListOpenedVaults, err)
	}
	return names, nil
}

// GetVaultMeta answers with the metadata JSON encoded as a string.
func (a *parityAPI) GetVaultMeta(ctx context.Context, name string) (string, error) {
	meta, err := a.vaults.GetVaultMeta(ctx, middleware.GetOwnerFromContext(ctx), name)
	if err != nil {
		return "", a.errs.wrap(ctx, rpc.MethodGetVaultMeta, err)
	}
	encoded, err := rpc.EncodeMeta(meta)
	if err != nil {
		return "", a.errs.wrap(ctx, rpc.MethodGetVaultMeta, err)
	}
	return encoded, nil
}

func (a *parityAPI) NewVault(ctx context.Context, name, password string) (bool, error) {
	err := a.vaults.NewVault(ctx, middleware.GetOwnerFromContext(ctx), name, password)
	return done(a.errs.wrap(ctx, rpc.MethodNewVault, err))
}

// SetVaultMeta accepts the metadata as a JSON encoded string or as an object.
func (a *parityAPI) SetVaultMeta(ctx context.Context, name string, raw json.RawMessage) (bool, error) {
	meta, err := rpc.DecodeMeta(raw)
	if err != nil {
		return false, &rpc.Error{Code: rpc.CodeInvalidParams, Message: err.Error()}
	}
	err = a.vaults.SetVaultMeta(ctx, middleware.GetOwnerFromContext(ctx), name, meta)
	return done(a.errs.wrap(ctx, rpc.MethodSetVaultMeta, err))
}

func (a *parityAPI) OpenVault(ctx context.Context, name, password string) (bool, error) {
	err := a.vaults.OpenVault(ctx, middleware.GetOwnerFromContext(ctx), name, password)
	return done(a.errs.wrap(ctx, rpc.MethodOpenVault, err))
}

func (a *parityAPI) CloseVault(ctx context.Context, name string) (bool, error) {
	err := a.vaults.CloseVault(ctx, middleware.GetOwnerFromContext(ctx), name)
	return done(a.errs.wrap(ctx, rpc.MethodCloseVault, err))
}

// ChangeVault moves address into name, or out of any vault when name is empty.
func (a *parityAPI) ChangeVault(ctx context.Context, address, name string) (bool, error) {
	err := a.vaults.ChangeVault(ctx, middleware.GetOwnerFromContext(ctx), address, name)
	return done(a.errs.wrap(ctx, rpc.MethodChangeVault, err))
}

// accountsAPI is served under the vault namespace.
type accountsAPI struct {
	vaults VaultService
	errs   *errorMapper
}

// ListAccounts answers vault_listAccounts with address → vault name.
func (a *accountsAPI) ListAccounts(ctx context.Context, name string) (map[string]string, error) {
	accounts, err := a.vaults.VaultAccounts(ctx, middleware.GetOwnerFromContext(ctx), name)
	if err != nil {
		return nil, a.errs.wrap(ctx, rpc.MethodVaultAccounts, err)
	}
	return accounts, nil
}

func done(err error) (bool, error) {
	if err != nil {
		return false, err
	}
	return true, nil
}
