// Package rpc holds the JSON-RPC method names, error codes and metadata
// encoding shared by the vault gateway client and the vault backend. The
// transport itself is go-ethereum's rpc package on both sides.
package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/atinyakov/VaultKeeper/internal/models"
)

// Namespaces the backend registers its services under. A service method
// ListVaults registered as NamespaceParity is called as parity_listVaults.
const (
	NamespaceParity = "parity"
	NamespaceVault  = "vault"
)

// Vault methods.
const (
	MethodListVaults       = "parity_listVaults"
	MethodListOpenedVaults = "parity_listOpenedVaults"
	MethodGetVaultMeta     = "parity_getVaultMeta"
	MethodNewVault         = "parity_newVault"
	MethodSetVaultMeta     = "parity_setVaultMeta"
	MethodOpenVault        = "parity_openVault"
	MethodCloseVault       = "parity_closeVault"
	MethodChangeVault      = "parity_changeVault"

	// MethodVaultAccounts lists the accounts assigned to a vault.
	MethodVaultAccounts = "vault_listAccounts"
)

// Error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	// CodeVaultError covers vault-level failures: unknown vault, duplicate
	// name, wrong password, missing metadata, bad account address.
	CodeVaultError = -32000
)

// RequestIDHeader carries the client generated id of a call so both ends
// can log it.
const RequestIDHeader = "X-Request-Id"

// Error is a JSON-RPC error with an explicit code. It satisfies the
// go-ethereum rpc.Error interface, so a service method returning it controls
// the code sent to the caller.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

// ErrorCode returns the JSON-RPC error code.
func (e *Error) ErrorCode() int { return e.Code }

// EncodeMeta renders vault metadata as the JSON string carried on the wire.
func EncodeMeta(meta models.VaultMeta) (string, error) {
	b, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode vault meta: %w", err)
	}
	return string(b), nil
}

// DecodeMeta accepts metadata either as a JSON encoded string or as a plain
// object. An empty string or null decodes to empty metadata.
func DecodeMeta(raw json.RawMessage) (models.VaultMeta, error) {
	var meta models.VaultMeta
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		if encoded == "" {
			return meta, nil
		}
		raw = json.RawMessage(encoded)
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return models.VaultMeta{}, fmt.Errorf("decode vault meta: %w", err)
	}
	return meta, nil
}
