// Package main runs the interactive vault shell against a vault server over
// mutual TLS.
package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/atinyakov/VaultKeeper/internal/client/gateway"
	"github.com/atinyakov/VaultKeeper/internal/client/vaults"
	"github.com/atinyakov/VaultKeeper/internal/logger"
	"go.uber.org/zap"
)

var (
	version   string
	buildDate string
)

func main() {
	var (
		baseURL         string
		certFile        string
		keyFile         string
		caFile          string
		timeout         time.Duration
		logLevel        string
		metaConcurrency int
		refresh         time.Duration
		showVer         bool
	)

	flag.StringVar(&baseURL, "url", "https://localhost:8443", "server base URL")
	flag.StringVar(&certFile, "cert", "certs/client.crt", "path to client cert")
	flag.StringVar(&keyFile, "key", "certs/client.key", "path to client key")
	flag.StringVar(&caFile, "ca", "certs/ca.crt", "path to CA cert")
	flag.DurationVar(&timeout, "timeout", 0, "per-request timeout (0 waits indefinitely)")
	flag.StringVar(&logLevel, "log-level", "warn", "log level")
	flag.IntVar(&metaConcurrency, "meta-concurrency", 8, "parallel metadata fetches while loading vaults")
	flag.DurationVar(&refresh, "refresh", 30*time.Second, "reload vaults periodically (0 disables)")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("Vault Client\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
		return
	}

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	client, err := gateway.LoadClientCertificate(certFile, keyFile, caFile, timeout)
	if err != nil {
		log.Log.Fatal("failed to load client certificate", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rpcClient, err := gateway.NewRPCClient(ctx, client, baseURL)
	if err != nil {
		log.Log.Fatal("failed to init rpc client", zap.String("url", baseURL), zap.Error(err))
	}
	defer rpcClient.Close()
	store := vaults.New(rpcClient, log.Log, vaults.WithMetaConcurrency(metaConcurrency))

	if refresh > 0 {
		store.StartAutoRefresh(ctx, refresh)
	}

	updates, cancel := store.Subscribe()
	defer cancel()
	go func() {
		for st := range updates {
			log.Log.Debug("state",
				zap.Int("vaults", len(st.Vaults)),
				zap.Bool("busy", st.IsBusy()),
			)
		}
	}()

	newShell(store, rpcClient, os.Stdin, os.Stdout).run(ctx)
}
