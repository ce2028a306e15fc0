// Package main initializes and starts the vault HTTPS server, setting up
// configuration, logging, storage, the auto-locker, handlers and TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/VaultKeeper/internal/config"
	"github.com/atinyakov/VaultKeeper/internal/db"
	"github.com/atinyakov/VaultKeeper/internal/logger"
	"github.com/atinyakov/VaultKeeper/internal/repository"
	"github.com/atinyakov/VaultKeeper/internal/server/handler/http"
	"github.com/atinyakov/VaultKeeper/internal/service"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

// vaultStore is what the server needs from either storage backend.
type vaultStore interface {
	service.VaultRepository
	db.IdleVaultCloser
}

func main() {
	options := config.Parse()

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(options)
	if err != nil {
		zapLogger.Fatal("cannot init storage", zap.String("storage", options.Storage), zap.Error(err))
	}
	defer closeStore()

	if idle := time.Duration(options.AutoLockIdle); idle > 0 {
		db.StartAutoLocker(ctx, store, time.Duration(options.AutoLockInterval), idle, zapLogger)
	}

	vaultService := service.NewVaultService(store, zapLogger)
	rpcHandler, err := http.NewRPCHandler(vaultService, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot init rpc handler", zap.Error(err))
	}
	defer rpcHandler.Close()
	router := http.NewRouter(rpcHandler, zapLogger)

	tlsConfig, err := serverTLS(options)
	if err != nil {
		zapLogger.Fatal("failed to configure TLS", zap.Error(err))
	}

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Warn("shutdown", zap.Error(err))
		}
	}()

	zapLogger.Info("starting HTTPS server",
		zap.String("addr", options.Port),
		zap.String("storage", options.Storage),
	)
	if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("failed to start HTTPS server", zap.Error(err))
	}
}

func openStore(options *config.Options) (vaultStore, func(), error) {
	switch options.Storage {
	case config.StorageBolt:
		repo, err := repository.NewBoltVaultRepository(options.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	default:
		conn, err := db.InitPostgres(options.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPostgresVaultRepository(conn), func() { _ = conn.Close() }, nil
	}
}

// serverTLS requires every client to present a certificate issued by the
// configured CA, except for health probes which CertAuth lets through.
func serverTLS(options *config.Options) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(options.TLSCert, options.TLSKey)
	if err != nil {
		return nil, fmt.Errorf("load server cert/key: %w", err)
	}

	caCert, err := os.ReadFile(options.TLSCA)
	if err != nil {
		return nil, fmt.Errorf("read CA cert: %w", err)
	}
	caCertPool := x509.NewCertPool()
	if ok := caCertPool.AppendCertsFromPEM(caCert); !ok {
		return nil, errors.New("failed to append CA cert to pool")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.VerifyClientCertIfGiven,
		ClientCAs:    caCertPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
