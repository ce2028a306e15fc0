// Package gateway implements the vault backend Gateway over JSON-RPC 2.0.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/atinyakov/VaultKeeper/internal/models"
	"github.com/atinyakov/VaultKeeper/internal/rpc"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/google/uuid"
)

const rpcPath = "/rpc"

// RPCClient calls the vault backend. It satisfies vaults.Gateway.
type RPCClient struct {
	client *gethrpc.Client
}

// NewRPCClient returns a client posting to baseURL + "/rpc" through
// httpClient. Nothing is sent until the first call.
func NewRPCClient(ctx context.Context, httpClient *http.Client, baseURL string) (*RPCClient, error) {
	endpoint := strings.TrimRight(baseURL, "/") + rpcPath
	client, err := gethrpc.DialOptions(ctx, endpoint, gethrpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	return &RPCClient{client: client}, nil
}

// Close releases the underlying client. Calls made afterwards fail.
func (c *RPCClient) Close() {
	c.client.Close()
}

// call tags the request with a fresh id so it can be matched in the backend
// request log.
func (c *RPCClient) call(ctx context.Context, method string, result any, params ...any) error {
	ctx = gethrpc.NewContextWithHeaders(ctx, http.Header{rpc.RequestIDHeader: []string{uuid.NewString()}})
	if err := c.client.CallContext(ctx, result, method, params...); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func (c *RPCClient) ListVaults(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.call(ctx, rpc.MethodListVaults, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *RPCClient) ListOpenedVaults(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.call(ctx, rpc.MethodListOpenedVaults, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// GetVaultMeta fetches the vault metadata. The backend returns it as a JSON
// encoded string; a plain object is accepted as well.
func (c *RPCClient) GetVaultMeta(ctx context.Context, name string) (models.VaultMeta, error) {
	var raw json.RawMessage
	if err := c.call(ctx, rpc.MethodGetVaultMeta, &raw, name); err != nil {
		return models.VaultMeta{}, err
	}
	return rpc.DecodeMeta(raw)
}

func (c *RPCClient) NewVault(ctx context.Context, name, password string) error {
	return c.call(ctx, rpc.MethodNewVault, nil, name, password)
}

// SetVaultMeta stores meta, JSON encoded as a string parameter.
func (c *RPCClient) SetVaultMeta(ctx context.Context, name string, meta models.VaultMeta) error {
	encoded, err := rpc.EncodeMeta(meta)
	if err != nil {
		return fmt.Errorf("%s: %w", rpc.MethodSetVaultMeta, err)
	}
	return c.call(ctx, rpc.MethodSetVaultMeta, nil, name, encoded)
}

func (c *RPCClient) OpenVault(ctx context.Context, name, password string) error {
	return c.call(ctx, rpc.MethodOpenVault, nil, name, password)
}

func (c *RPCClient) CloseVault(ctx context.Context, name string) error {
	return c.call(ctx, rpc.MethodCloseVault, nil, name)
}

// ChangeVault moves address into vaultName; an empty name removes it from
// its vault.
func (c *RPCClient) ChangeVault(ctx context.Context, address, vaultName string) error {
	return c.call(ctx, rpc.MethodChangeVault, nil, address, vaultName)
}

// VaultAccounts returns the accounts assigned to vaultName, mapped to the
// vault's display name.
func (c *RPCClient) VaultAccounts(ctx context.Context, vaultName string) (map[string]string, error) {
	accounts := map[string]string{}
	if err := c.call(ctx, rpc.MethodVaultAccounts, &accounts, vaultName); err != nil {
		return nil, err
	}
	return accounts, nil
}
