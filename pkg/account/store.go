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

package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/storage"
)

const (
	accountPrefix  = "accounts/by-pk/"
	usernamePrefix = "accounts/by-username/"
	sequenceKey    = "accounts/sequence"
)

// Store defines the interface for account persistence. Applications with an
// existing user model implement this against their own database; KVStore is
// the bundled implementation over a storage.Backend.
type Store interface {
	// Create creates a new account with the given username and display name.
	// Returns ErrUserAlreadyExists if the username is taken.
	Create(ctx context.Context, username, displayName string) (*User, error)

	// GetByPK retrieves an account by its primary key.
	// Returns ErrUserNotFound if the account does not exist.
	GetByPK(ctx context.Context, pk int64) (*User, error)

	// GetByUsername retrieves an account by its username.
	// Returns ErrUserNotFound if the account does not exist.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Delete removes an account by its primary key.
	// Returns ErrUserNotFound if the account does not exist.
	Delete(ctx context.Context, pk int64) error
}

// KVStore persists accounts as JSON documents in a storage.Backend, with a
// username index and a monotonically increasing primary-key sequence.
type KVStore struct {
	backend storage.Backend
	mu      sync.Mutex
}

// NewKVStore creates an account store over the given backend.
func NewKVStore(backend storage.Backend) *KVStore {
	return &KVStore{backend: backend}
}

// Create creates a new account with the given username and display name.
func (s *KVStore) Create(ctx context.Context, username, displayName string) (*User, error) {
	if username == "" {
		return nil, fmt.Errorf("account: username is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.backend.Exists(usernamePrefix + username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserAlreadyExists
	}

	pk, err := s.nextPK()
	if err != nil {
		return nil, err
	}

	user := &User{
		PK:          pk,
		Username:    username,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}

	encoded, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Put(accountKey(pk), encoded); err != nil {
		return nil, err
	}
	if err := s.backend.Put(usernamePrefix+username, user.Handle()); err != nil {
		return nil, err
	}

	return user, nil
}

// GetByPK retrieves an account by its primary key.
func (s *KVStore) GetByPK(ctx context.Context, pk int64) (*User, error) {
	encoded, err := s.backend.Get(accountKey(pk))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var user User
	if err := json.Unmarshal(encoded, &user); err != nil {
		return nil, fmt.Errorf("account: decode user %d: %w", pk, err)
	}
	return &user, nil
}

// GetByUsername retrieves an account by its username.
func (s *KVStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	handle, err := s.backend.Get(usernamePrefix + username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	pk, err := ParseHandle(handle)
	if err != nil {
		return nil, fmt.Errorf("account: corrupt username index for %q: %w", username, err)
	}
	return s.GetByPK(ctx, pk)
}

// Delete removes an account and its username index entry.
func (s *KVStore) Delete(ctx context.Context, pk int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.GetByPK(ctx, pk)
	if err != nil {
		return err
	}

	if err := s.backend.Delete(accountKey(pk)); err != nil {
		return err
	}
	return s.backend.Delete(usernamePrefix + user.Username)
}

// nextPK increments and persists the primary-key sequence.
// Callers must hold s.mu.
func (s *KVStore) nextPK() (int64, error) {
	var next int64 = 1

	encoded, err := s.backend.Get(sequenceKey)
	switch {
	case err == nil:
		current, parseErr := strconv.ParseInt(string(encoded), 10, 64)
		if parseErr != nil {
			return 0, fmt.Errorf("account: corrupt sequence: %w", parseErr)
		}
		next = current + 1
	case errors.Is(err, storage.ErrNotFound):
		// First account.
	default:
		return 0, err
	}

	if err := s.backend.Put(sequenceKey, []byte(strconv.FormatInt(next, 10))); err != nil {
		return 0, err
	}
	return next, nil
}

func accountKey(pk int64) string {
	return accountPrefix + strconv.FormatInt(pk, 10)
}
