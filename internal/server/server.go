// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package server hosts the passkey ceremony engine behind a JSON HTTP API.
package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-passkey/pkg/account"
	"github.com/jeremyhahn/go-passkey/pkg/authenticator"
	"github.com/jeremyhahn/go-passkey/pkg/ceremony"
	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/storage"
)

const sessionName = "passkey"

// Server wires the storage backend, account store, record repository and
// ceremony engine behind an HTTP server.
type Server struct {
	config   *Config
	logger   *logging.Logger
	backend  storage.Backend
	accounts account.Store
	records  *authenticator.Repository
	engine   *ceremony.Engine
	tokens   *ceremony.TokenIssuer
	sessions sessions.Store

	httpServer *http.Server
}

// New creates a server from the given configuration.
func New(config *Config) (*Server, error) {
	logger := logging.NewLogger(config.Debug)

	backend, err := openBackend(config.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open storage backend: %w", err)
	}

	accounts := account.NewKVStore(backend)
	records := authenticator.NewRepository(backend, logger)

	engine, err := ceremony.NewEngine(&ceremony.EngineParams{
		Config:   &config.WebAuthn,
		Accounts: accounts,
		Records:  records,
		Logger:   logger,
	})
	if err != nil {
		backend.Close()
		return nil, err
	}

	// Tokens are signed with an ephemeral key: they only need to outlive the
	// session handoff, not the process.
	signingKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		backend.Close()
		return nil, err
	}
	tokens, err := ceremony.NewTokenIssuer(&ceremony.TokenIssuerConfig{
		PrivateKey: signingKey,
		Issuer:     config.WebAuthn.RPID,
		Audience:   []string{config.WebAuthn.RPID},
	})
	if err != nil {
		backend.Close()
		return nil, err
	}

	cookieStore := sessions.NewCookieStore([]byte(config.SessionKey))
	cookieStore.Options.HttpOnly = true
	cookieStore.Options.SameSite = http.SameSiteLaxMode

	s := &Server{
		config:   config,
		logger:   logger,
		backend:  backend,
		accounts: accounts,
		records:  records,
		engine:   engine,
		tokens:   tokens,
		sessions: cookieStore,
	}
	s.httpServer = &http.Server{
		Addr:              config.Listen,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func openBackend(dataDir string) (storage.Backend, error) {
	if dataDir == "" {
		return storage.NewMemory(), nil
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, err
	}
	return storage.OpenPogreb(filepath.Join(dataDir, "passkey.db"))
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("POST /api/webauthn/registration/begin", s.handleBeginRegistration)
	mux.HandleFunc("POST /api/webauthn/registration/complete", s.handleCompleteRegistration)
	mux.HandleFunc("POST /api/webauthn/authentication/begin", s.handleBeginAuthentication)
	mux.HandleFunc("POST /api/webauthn/authentication/complete", s.handleCompleteAuthentication)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.logger.Info("server listening",
		"addr", s.config.Listen,
		"rp_id", s.config.WebAuthn.RPID)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(err)
		}
	}()
	return nil
}

// Shutdown drains in-flight requests and closes the storage backend.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if closeErr := s.backend.Close(); err == nil {
		err = closeErr
	}
	return err
}

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM.
func SetupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx
}
