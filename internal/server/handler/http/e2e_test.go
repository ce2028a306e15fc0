package http_test

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/atinyakov/VaultKeeper/internal/certgen"
	"github.com/atinyakov/VaultKeeper/internal/client/gateway"
	"github.com/atinyakov/VaultKeeper/internal/client/vaults"
	"github.com/atinyakov/VaultKeeper/internal/models"
	"github.com/atinyakov/VaultKeeper/internal/repository"
	handler "github.com/atinyakov/VaultKeeper/internal/server/handler/http"
	"github.com/atinyakov/VaultKeeper/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type testPKI struct {
	dir string
	ca  *certgen.Credentials
}

// clientFor writes a client certificate for owner and returns a gateway
// client trusting the test CA.
func (p *testPKI) clientFor(t *testing.T, owner, serverURL string) *gateway.RPCClient {
	t.Helper()
	creds, err := certgen.Issue(owner, p.ca, time.Hour, false)
	require.NoError(t, err)
	certPath := filepath.Join(p.dir, owner+".crt")
	keyPath := filepath.Join(p.dir, owner+".key")
	require.NoError(t, creds.Write(certPath, keyPath))

	client, err := gateway.LoadClientCertificate(certPath, keyPath, filepath.Join(p.dir, "ca.crt"), 5*time.Second)
	require.NoError(t, err)
	client.Transport.(*http.Transport).TLSClientConfig.ServerName = "localhost"
	rpcClient, err := gateway.NewRPCClient(context.Background(), client, serverURL)
	require.NoError(t, err)
	t.Cleanup(rpcClient.Close)
	return rpcClient
}

// startBackend runs the full server stack on Bolt storage behind mutual TLS.
func startBackend(t *testing.T) (*httptest.Server, *testPKI) {
	t.Helper()
	dir := t.TempDir()

	ca, err := certgen.NewCA("Vault Test CA", time.Hour)
	require.NoError(t, err)
	require.NoError(t, ca.Write(filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key")))
	serverCreds, err := certgen.Issue("localhost", ca, time.Hour, true)
	require.NoError(t, err)
	serverCert, err := tls.X509KeyPair(serverCreds.CertPEM, serverCreds.KeyPEM)
	require.NoError(t, err)

	repo, err := repository.NewBoltVaultRepository(filepath.Join(dir, "vaults.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	svc := service.NewVaultService(repo, zap.NewNop(), service.WithHashCost(bcrypt.MinCost))
	rpcHandler, err := handler.NewRPCHandler(svc, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(rpcHandler.Close)
	router := handler.NewRouter(rpcHandler, zap.NewNop())

	pool := x509.NewCertPool()
	pool.AddCert(ca.Cert)

	ts := httptest.NewUnstartedServer(router)
	ts.TLS = &tls.Config{
		Certificates: []tls.Certificate{serverCert},
		ClientAuth:   tls.VerifyClientCertIfGiven,
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS12,
	}
	ts.StartTLS()
	t.Cleanup(ts.Close)

	return ts, &testPKI{dir: dir, ca: ca}
}

func TestEndToEnd_VaultLifecycle(t *testing.T) {
	ts, pki := startBackend(t)
	ctx := context.Background()

	alice := pki.clientFor(t, "alice", ts.URL)
	store := vaults.New(alice, zap.NewNop())
	store.LoadVaults(ctx)
	require.Empty(t, store.Snapshot().Vaults)

	store.OpenCreateModal()
	store.SetVaultName("Work")
	store.SetVaultDescription("office")
	store.SetVaultPassword("pw")
	store.SetVaultPasswordRepeat("pw")
	store.SetVaultPasswordHint("usual")
	require.NoError(t, store.CreateVault(ctx))

	st := store.Snapshot()
	require.Len(t, st.Vaults, 1)
	assert.Equal(t, models.Vault{
		Name:   "Work",
		Meta:   models.VaultMeta{Description: "office", PasswordHint: "usual"},
		IsOpen: true,
	}, st.Vaults[0])
	assert.False(t, st.IsBusy())

	store.OpenLockModal("Work")
	require.NoError(t, store.CloseVault(ctx))
	assert.Empty(t, store.Snapshot().OpenVaults())

	store.OpenUnlockModal("Work")
	store.SetVaultPassword("wrong")
	err := store.OpenVault(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), models.ErrWrongPassword.Error())
	assert.Empty(t, store.Snapshot().OpenVaults())

	store.SetVaultPassword("pw")
	require.NoError(t, store.OpenVault(ctx))
	assert.Equal(t, []string{"Work"}, store.Snapshot().OpenVaults())

	const address = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	require.NoError(t, store.MoveAccounts(ctx, "Work", []string{address}, nil))
	accounts, err := alice.VaultAccounts(ctx, "work")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed": "Work"}, accounts)

	err = store.MoveAccounts(ctx, "Work", []string{"not-an-address"}, []string{address})
	require.Error(t, err)
	assert.Contains(t, err.Error(), models.ErrInvalidAddress.Error())
	accounts, err = alice.VaultAccounts(ctx, "Work")
	require.NoError(t, err)
	assert.Empty(t, accounts, "valid changes apply despite a failing sibling")

	bob := vaults.New(pki.clientFor(t, "bob", ts.URL), zap.NewNop())
	bob.LoadVaults(ctx)
	assert.Empty(t, bob.Snapshot().Vaults, "vaults are scoped to the certificate owner")
}

func TestEndToEnd_DuplicateNameRejectedByBackend(t *testing.T) {
	ts, pki := startBackend(t)
	ctx := context.Background()
	alice := pki.clientFor(t, "alice", ts.URL)

	require.NoError(t, alice.NewVault(ctx, "Work", "pw"))
	err := alice.NewVault(ctx, "WORK", "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), models.ErrVaultExists.Error())

	_, err = alice.GetVaultMeta(ctx, "Work")
	require.Error(t, err, "metadata is unset until stored once")
}

func TestEndToEnd_NoClientCertificate(t *testing.T) {
	ts, _ := startBackend(t)
	// the test server's client trusts the server leaf, issued for localhost
	ts.Client().Transport.(*http.Transport).TLSClientConfig.ServerName = "localhost"

	anon, err := gateway.NewRPCClient(context.Background(), ts.Client(), ts.URL)
	require.NoError(t, err)
	defer anon.Close()
	_, err = anon.ListVaults(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no client certificate")

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
