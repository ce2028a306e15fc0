// Package main generates a development certificate authority plus server and
// client certificates for the vault server, writing them under a directory.
// The client certificate Common Name becomes the vault owner on the server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/atinyakov/VaultKeeper/internal/certgen"
)

const (
	caValidity   = 10 * 365 * 24 * time.Hour
	certValidity = 365 * 24 * time.Hour
)

func main() {
	dir := flag.String("dir", "certs", "output directory")
	host := flag.String("host", "localhost", "server DNS name")
	owner := flag.String("owner", "alice", "client certificate common name (vault owner)")
	flag.Parse()

	if err := run(*dir, *host, *owner); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("✅ Certificates generated into %s\n", *dir)
}

// run writes ca.crt/ca.key, server.crt/server.key and client.crt/client.key into dir.
func run(dir, host, owner string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	ca, err := certgen.NewCA("VaultKeeper CA", caValidity)
	if err != nil {
		return err
	}
	if err := ca.Write(filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key")); err != nil {
		return err
	}

	server, err := certgen.Issue(host, ca, certValidity, true)
	if err != nil {
		return err
	}
	if err := server.Write(filepath.Join(dir, "server.crt"), filepath.Join(dir, "server.key")); err != nil {
		return err
	}

	client, err := certgen.Issue(owner, ca, certValidity, false)
	if err != nil {
		return err
	}
	return client.Write(filepath.Join(dir, "client.crt"), filepath.Join(dir, "client.key"))
}
