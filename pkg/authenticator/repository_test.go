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

package authenticator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/pkg/storage"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(storage.NewMemory(), nil)
}

func TestRepository_AddAndGet(t *testing.T) {
	repo := newTestRepository(t)

	record := New(1, "YubiKey", testAuthData(t, []byte("cred-1")), false)
	require.NoError(t, repo.Add(record))

	found, err := repo.Get(record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, found.ID)
	assert.Equal(t, record.UserPK, found.UserPK)
	assert.Equal(t, "YubiKey", found.Name())

	_, err = repo.Get(uuid.New())
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRepository_ForUser(t *testing.T) {
	repo := newTestRepository(t)

	first := New(1, "first", testAuthData(t, []byte("cred-1")), false)
	second := New(1, "second", testAuthData(t, []byte("cred-2")), true)
	other := New(2, "other", testAuthData(t, []byte("cred-3")), false)
	for _, record := range []*Record{first, second, other} {
		require.NoError(t, repo.Add(record))
	}

	records, err := repo.ForUser(1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, record := range records {
		assert.Equal(t, int64(1), record.UserPK)
	}

	records, err = repo.ForUser(99)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRepository_CredentialsFor(t *testing.T) {
	repo := newTestRepository(t)

	withCred := New(1, "key", testAuthData(t, []byte("cred-1")), false)
	withoutCred := New(1, "legacy", testAuthDataNoCredential(t), false)
	require.NoError(t, repo.Add(withCred))
	require.NoError(t, repo.Add(withoutCred))

	credentials, err := repo.CredentialsFor(1)
	require.NoError(t, err)
	require.Len(t, credentials, 1)
	assert.Equal(t, []byte("cred-1"), credentials[0].ID)
}

func TestRepository_FindByCredentialID(t *testing.T) {
	repo := newTestRepository(t)

	records := []*Record{
		New(1, "a", testAuthData(t, []byte("cred-a")), true),
		New(2, "b", testAuthData(t, []byte("cred-b")), true),
		New(3, "c", testAuthData(t, []byte("cred-c")), true),
	}
	for _, record := range records {
		require.NoError(t, repo.Add(record))
	}

	found, err := repo.FindByCredentialID([]byte("cred-b"))
	require.NoError(t, err)
	assert.Equal(t, records[1].ID, found.ID)
	assert.Equal(t, int64(2), found.UserPK)

	_, err = repo.FindByCredentialID([]byte("unknown"))
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRepository_Remove(t *testing.T) {
	repo := newTestRepository(t)

	record := New(1, "key", testAuthData(t, []byte("cred-1")), false)
	require.NoError(t, repo.Add(record))
	require.NoError(t, repo.Remove(record.ID))

	_, err := repo.Get(record.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	_, err = repo.FindByCredentialID([]byte("cred-1"))
	assert.ErrorIs(t, err, ErrRecordNotFound)

	records, err := repo.ForUser(1)
	require.NoError(t, err)
	assert.Empty(t, records)

	assert.ErrorIs(t, repo.Remove(record.ID), ErrRecordNotFound)
}

func TestRepository_PasskeyRoundTrip(t *testing.T) {
	repo := newTestRepository(t)

	record := New(1, "phone", testAuthData(t, []byte("cred-1")), true)
	require.NoError(t, repo.Add(record))

	found, err := repo.Get(record.ID)
	require.NoError(t, err)
	assert.True(t, found.Passkey())
}
