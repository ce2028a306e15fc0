// Package config provides functionality for managing configuration options
// for the vault server using command-line flags, a JSON file and
// environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageBolt     = "bolt"
)

// Options holds the configuration values for the server.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"address"`

	// DatabaseDSN holds the PostgreSQL connection string.
	DatabaseDSN string `json:"database_dsn"`

	// Storage selects the vault repository, postgres or bolt.
	Storage string `json:"storage"`

	// BoltPath is the Bolt file used when Storage is bolt.
	BoltPath string `json:"bolt_path"`

	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`
	TLSCA   string `json:"tls_ca"`

	// AutoLockIdle closes vaults open for longer than this. Zero disables
	// the auto-locker.
	AutoLockIdle     Duration `json:"auto_lock_idle"`
	AutoLockInterval Duration `json:"auto_lock_interval"`

	LogLevel string `json:"log_level"`

	// Config is the path to the config file.
	Config string `json:"-"`
}

// Duration is a time.Duration that reads from JSON strings like "15m".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Parse reads the process flags and environment. It exits on invalid input.
func Parse() *Options {
	opts, err := ParseArgs(os.Args[0], os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return opts
}

// ParseArgs builds Options from defaults, then the config file for every
// flag not given explicitly, then the environment.
func ParseArgs(name string, args []string, getenv func(string) string) (*Options, error) {
	opts := &Options{}
	var autoLockIdle, autoLockInterval time.Duration

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&opts.Port, "a", "localhost:8443", "run on ip:port server")
	fs.StringVar(&opts.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&opts.Storage, "storage", StoragePostgres, "vault storage: postgres or bolt")
	fs.StringVar(&opts.BoltPath, "bolt", "vaults.db", "bolt file for bolt storage")
	fs.StringVar(&opts.TLSCert, "cert", "certs/server.crt", "server certificate")
	fs.StringVar(&opts.TLSKey, "key", "certs/server.key", "server private key")
	fs.StringVar(&opts.TLSCA, "ca", "certs/ca.crt", "CA used to verify client certificates")
	fs.DurationVar(&autoLockIdle, "auto-lock", 0, "close vaults open longer than this (0 disables)")
	fs.DurationVar(&autoLockInterval, "auto-lock-interval", time.Minute, "how often to look for idle vaults")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "log level")
	fs.StringVar(&opts.Config, "config", "config.json", "path to config file")
	fs.StringVar(&opts.Config, "c", "config.json", "path to config file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts.AutoLockIdle = Duration(autoLockIdle)
	opts.AutoLockInterval = Duration(autoLockInterval)

	if configPath := getenv("CONFIG"); configPath != "" {
		opts.Config = configPath
	}
	if err := opts.mergeFile(fs); err != nil {
		return nil, err
	}

	if v := getenv("SERVER_ADDRESS"); v != "" {
		opts.Port = v
	}
	if v := getenv("DATABASE_DSN"); v != "" {
		opts.DatabaseDSN = v
	}
	if v := getenv("STORAGE"); v != "" {
		opts.Storage = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		opts.LogLevel = v
	}

	return opts, opts.validate()
}

func (o *Options) mergeFile(fs *flag.FlagSet) error {
	if o.Config == "" {
		return nil
	}
	data, err := os.ReadFile(o.Config)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}

	var file Options
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}

	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	merge := func(flagName string, dst *string, src string) {
		if src != "" && !explicit[flagName] {
			*dst = src
		}
	}
	merge("a", &o.Port, file.Port)
	merge("d", &o.DatabaseDSN, file.DatabaseDSN)
	merge("storage", &o.Storage, file.Storage)
	merge("bolt", &o.BoltPath, file.BoltPath)
	merge("cert", &o.TLSCert, file.TLSCert)
	merge("key", &o.TLSKey, file.TLSKey)
	merge("ca", &o.TLSCA, file.TLSCA)
	merge("log-level", &o.LogLevel, file.LogLevel)
	if file.AutoLockIdle != 0 && !explicit["auto-lock"] {
		o.AutoLockIdle = file.AutoLockIdle
	}
	if file.AutoLockInterval != 0 && !explicit["auto-lock-interval"] {
		o.AutoLockInterval = file.AutoLockInterval
	}
	return nil
}

func (o *Options) validate() error {
	switch o.Storage {
	case StoragePostgres, StorageBolt:
	default:
		return fmt.Errorf("unknown storage %q", o.Storage)
	}
	if o.AutoLockIdle > 0 && o.AutoLockInterval <= 0 {
		return errors.New("auto-lock-interval must be positive")
	}
	return nil
}
