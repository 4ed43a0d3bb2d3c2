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

package session

import (
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateChallengeIdempotent(t *testing.T) {
	values := NewMemoryManager(0).Open("sid")

	first, err := GenerateChallenge(values)
	require.NoError(t, err)
	assert.Len(t, first, ChallengeSize)

	second, err := GenerateChallenge(values)
	require.NoError(t, err)
	assert.Equal(t, first, second, "begin before completion must reuse the pending challenge")
}

func TestGenerateChallengeAfterConsume(t *testing.T) {
	values := NewMemoryManager(0).Open("sid")

	first, err := GenerateChallenge(values)
	require.NoError(t, err)

	ConsumeChallenge(values)
	_, ok := values.Get(ChallengeKey)
	assert.False(t, ok)

	next, err := GenerateChallenge(values)
	require.NoError(t, err)
	assert.NotEqual(t, first, next, "a consumed challenge must never be reissued")
}

func TestGenerateChallengeReplacesMangledValue(t *testing.T) {
	values := NewMemoryManager(0).Open("sid")
	values.Set(ChallengeKey, "!!! not base64 !!!")

	challenge, err := GenerateChallenge(values)
	require.NoError(t, err)
	assert.Len(t, challenge, ChallengeSize)
	assert.Equal(t, EncodeChallenge(challenge), mustGet(t, values, ChallengeKey))
}

func TestConsumeChallengeAbsent(t *testing.T) {
	values := NewMemoryManager(0).Open("sid")
	// No-op on an empty session.
	ConsumeChallenge(values)
}

func TestStateRoundTrip(t *testing.T) {
	values := NewMemoryManager(0).Open("sid")

	state := &webauthn.SessionData{
		Challenge: "c29tZS1jaGFsbGVuZ2U",
		UserID:    []byte("42"),
	}
	require.NoError(t, SetState(values, state))

	loaded, err := State(values)
	require.NoError(t, err)
	assert.Equal(t, state.Challenge, loaded.Challenge)
	assert.Equal(t, state.UserID, loaded.UserID)
}

func TestStateAbsent(t *testing.T) {
	values := NewMemoryManager(0).Open("sid")

	_, err := State(values)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestStateOverwriteAndClear(t *testing.T) {
	values := NewMemoryManager(0).Open("sid")

	require.NoError(t, SetState(values, &webauthn.SessionData{Challenge: "one"}))
	require.NoError(t, SetState(values, &webauthn.SessionData{Challenge: "two"}))

	loaded, err := State(values)
	require.NoError(t, err)
	assert.Equal(t, "two", loaded.Challenge)

	ClearState(values)
	_, err = State(values)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestStateCorrupt(t *testing.T) {
	values := NewMemoryManager(0).Open("sid")
	values.Set(StateKey, "{not json")

	_, err := State(values)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStateNotFound)
}

func TestMemoryManagerIsolation(t *testing.T) {
	manager := NewMemoryManager(0)

	a := manager.Open("session-a")
	b := manager.Open("session-b")

	a.Set(ChallengeKey, "only-in-a")
	_, ok := b.Get(ChallengeKey)
	assert.False(t, ok)
}

func TestMemoryManagerExpiry(t *testing.T) {
	manager := NewMemoryManager(10 * time.Millisecond)

	values := manager.Open("ephemeral")
	values.Set(ChallengeKey, "x")
	assert.Equal(t, 1, manager.Count())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, manager.Cleanup())
	assert.Equal(t, 0, manager.Count())

	// Reopening after expiry yields a fresh session.
	fresh := manager.Open("ephemeral")
	_, ok := fresh.Get(ChallengeKey)
	assert.False(t, ok)
}

func TestMemoryManagerRemove(t *testing.T) {
	manager := NewMemoryManager(0)
	manager.Open("gone")
	manager.Remove("gone")
	assert.Equal(t, 0, manager.Count())
}

func TestFromGorilla(t *testing.T) {
	store := sessions.NewCookieStore([]byte("test-secret"))
	gs := sessions.NewSession(store, "passkey")
	values := FromGorilla(gs)

	values.Set(ChallengeKey, "abc")
	got, ok := values.Get(ChallengeKey)
	require.True(t, ok)
	assert.Equal(t, "abc", got)

	values.Delete(ChallengeKey)
	_, ok = values.Get(ChallengeKey)
	assert.False(t, ok)
}

func TestFromGorillaNonStringValue(t *testing.T) {
	store := sessions.NewCookieStore([]byte("test-secret"))
	gs := sessions.NewSession(store, "passkey")
	gs.Values[StateKey] = 12345

	values := FromGorilla(gs)
	_, ok := values.Get(StateKey)
	assert.False(t, ok)
}

func mustGet(t *testing.T, v Values, key string) string {
	t.Helper()
	value, ok := v.Get(key)
	require.True(t, ok)
	return value
}
