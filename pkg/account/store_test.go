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
	"testing"

	"github.com/jeremyhahn/go-passkey/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStore_Create(t *testing.T) {
	store := NewKVStore(storage.NewMemory())
	ctx := context.Background()

	user, err := store.Create(ctx, "alice", "Alice Example")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.PK)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "Alice Example", user.DisplayName)
	assert.False(t, user.CreatedAt.IsZero())

	// Primary keys increase monotonically.
	second, err := store.Create(ctx, "bob", "Bob Example")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.PK)
}

func TestKVStore_CreateDuplicate(t *testing.T) {
	store := NewKVStore(storage.NewMemory())
	ctx := context.Background()

	_, err := store.Create(ctx, "alice", "Alice Example")
	require.NoError(t, err)

	_, err = store.Create(ctx, "alice", "Another Alice")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestKVStore_CreateEmptyUsername(t *testing.T) {
	store := NewKVStore(storage.NewMemory())

	_, err := store.Create(context.Background(), "", "No Name")
	assert.Error(t, err)
}

func TestKVStore_GetByPK(t *testing.T) {
	store := NewKVStore(storage.NewMemory())
	ctx := context.Background()

	created, err := store.Create(ctx, "alice", "Alice Example")
	require.NoError(t, err)

	found, err := store.GetByPK(ctx, created.PK)
	require.NoError(t, err)
	assert.Equal(t, created.PK, found.PK)
	assert.Equal(t, created.Username, found.Username)

	_, err = store.GetByPK(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestKVStore_GetByUsername(t *testing.T) {
	store := NewKVStore(storage.NewMemory())
	ctx := context.Background()

	created, err := store.Create(ctx, "alice", "Alice Example")
	require.NoError(t, err)

	found, err := store.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.PK, found.PK)

	_, err = store.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestKVStore_Delete(t *testing.T) {
	store := NewKVStore(storage.NewMemory())
	ctx := context.Background()

	created, err := store.Create(ctx, "alice", "Alice Example")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, created.PK))

	_, err = store.GetByPK(ctx, created.PK)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = store.GetByUsername(ctx, "alice")
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.ErrorIs(t, store.Delete(ctx, created.PK), ErrUserNotFound)

	// Username freed for reuse after deletion.
	reused, err := store.Create(ctx, "alice", "Alice Again")
	require.NoError(t, err)
	assert.NotEqual(t, created.PK, reused.PK)
}

func TestKVStore_SequencePersists(t *testing.T) {
	backend := storage.NewMemory()
	ctx := context.Background()

	first := NewKVStore(backend)
	_, err := first.Create(ctx, "alice", "Alice Example")
	require.NoError(t, err)

	// A new store over the same backend continues the sequence.
	second := NewKVStore(backend)
	user, err := second.Create(ctx, "bob", "Bob Example")
	require.NoError(t, err)
	assert.Equal(t, int64(2), user.PK)
}
