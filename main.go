// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/c2FmZQ/storage/crypto"
	"github.com/caarlos0/env/v11"
	"github.com/ttbt-io/pufferstats/backend"
)

// Config holds the server configuration. Environment variables provide the
// defaults, flags override them.
type Config struct {
	Addr           string        `env:"PS_ADDR"             envDefault:":8080"`
	DataDir        string        `env:"PS_DATA_DIR"         envDefault:"data"`
	DatasetDir     string        `env:"PS_DATASET_DIR"      envDefault:"."`
	DatasetURL     string        `env:"PS_DATASET_URL"`
	ReloadInterval time.Duration `env:"PS_RELOAD_INTERVAL"`
	Admins         string        `env:"PS_ADMINS"`
	TLSCert        string        `env:"PS_TLS_CERT"`
	TLSKey         string        `env:"PS_TLS_KEY"`
	AuthCookieName string        `env:"PS_AUTH_COOKIE_NAME" envDefault:"pufferstats_auth"`
	AuthJWKSURL    string        `env:"PS_AUTH_JWKS_URL"`
	UseMockAuth    bool          `env:"PS_USE_MOCK_AUTH"`
	Debug          bool          `env:"PS_DEBUG"`
}

// parseConfig reads the environment, then the command line flags.
func parseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The TCP address to listen to")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory for archived dataset snapshots")
	fs.StringVar(&cfg.DatasetDir, "dataset-dir", cfg.DatasetDir, "Directory containing Sorted/Season1/*.json")
	fs.StringVar(&cfg.DatasetURL, "dataset-url", cfg.DatasetURL, "Base URL of the dataset. Takes precedence over --dataset-dir")
	fs.DurationVar(&cfg.ReloadInterval, "reload-interval", cfg.ReloadInterval, "Reload the dataset periodically (0 disables)")
	fs.StringVar(&cfg.Admins, "admin", cfg.Admins, "Comma-separated emails allowed to reload the dataset")
	fs.StringVar(&cfg.TLSCert, "tls-cert", cfg.TLSCert, "Path to HTTP TLS certificate")
	fs.StringVar(&cfg.TLSKey, "tls-key", cfg.TLSKey, "Path to HTTP TLS key")
	fs.StringVar(&cfg.AuthCookieName, "auth-cookie-name", cfg.AuthCookieName, "Name of the cookie containing the JWT")
	fs.StringVar(&cfg.AuthJWKSURL, "auth-jwks-url", cfg.AuthJWKSURL, "URL of the JWKS endpoint")
	fs.BoolVar(&cfg.UseMockAuth, "use-mock-auth", cfg.UseMockAuth, "Use Mock Authentication. For testing purposes only.")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug mode")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return Config{}, fmt.Errorf("--tls-cert and --tls-key must be set together")
	}
	return cfg, nil
}

// openStorage opens the snapshot storage, encrypted when PS_MASTER_KEY is set.
func openStorage(dataDir string) (*storage.Storage, error) {
	var masterKey crypto.MasterKey
	keyFile := filepath.Join(dataDir, "master.key")
	if passphrase := os.Getenv("PS_MASTER_KEY"); passphrase != "" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, err
		}
		var err error
		masterKey, err = crypto.ReadMasterKey([]byte(passphrase), keyFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read master key: %w", err)
			}
			log.Println("Initializing new master encryption key...")
			if masterKey, err = crypto.CreateMasterKey(); err != nil {
				return nil, fmt.Errorf("failed to create master key: %w", err)
			}
			if err := masterKey.Save([]byte(passphrase), keyFile); err != nil {
				return nil, fmt.Errorf("failed to save master key: %w", err)
			}
		} else {
			log.Println("Loaded master encryption key.")
		}
	} else {
		if _, err := os.Stat(keyFile); err == nil {
			return nil, fmt.Errorf("%s exists but PS_MASTER_KEY is not set. Refusing to read snapshots unencrypted", keyFile)
		}
		log.Println("Warning: No PS_MASTER_KEY provided. Snapshots will be stored UNENCRYPTED.")
	}

	store := storage.New(dataDir, masterKey)
	store.EnableCompression(true)
	return store, nil
}

// main starts the web server and waits for a termination signal.
func main() {
	cfg, err := parseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	var mainTLSCert *tls.Certificate
	if cfg.TLSCert != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			log.Fatalf("Failed to load main TLS cert/key: %v", err)
		}
		mainTLSCert = &cert
	}

	store, err := openStorage(cfg.DataDir)
	if err != nil {
		log.Fatalf("Critical Security Error: %v", err)
	}

	server, err := backend.StartServer(backend.Options{
		Addr:           cfg.Addr,
		Cert:           mainTLSCert,
		DataDir:        cfg.DataDir,
		Storage:        store,
		DatasetDir:     cfg.DatasetDir,
		DatasetURL:     cfg.DatasetURL,
		ReloadInterval: cfg.ReloadInterval,
		Admins:         cfg.Admins,
		UseMockAuth:    cfg.UseMockAuth,
		Debug:          cfg.Debug,
		AuthCookieName: cfg.AuthCookieName,
		AuthJWKSURL:    cfg.AuthJWKSURL,
	})
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	} else {
		log.Println("Gracefully stopped.")
	}
}
