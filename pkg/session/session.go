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

// Package session holds the per-user-agent state of an in-progress WebAuthn
// ceremony: the single-use challenge and the opaque ceremony state produced
// by the verification library.
//
// The package does not own session storage. Callers pass a Values accessor
// scoped to one user-agent session into every ceremony operation; adapters
// are provided for an in-memory registry (development and testing) and for
// gorilla/sessions. Only two keys are ever used, ChallengeKey and StateKey,
// so any cookie- or server-side-backed session implementation can host them.
package session

// Reserved session keys. At most one live challenge and one in-progress
// ceremony state exist per session.
const (
	// ChallengeKey holds the base64url-encoded pending challenge.
	ChallengeKey = "mfa.webauthn.challenge"

	// StateKey holds the JSON-encoded in-progress ceremony state.
	StateKey = "mfa.webauthn.state"
)

// Values is a key-value accessor scoped to a single user-agent session.
// Implementations are not required to be safe for concurrent use; a session
// serves one user agent and the transport layer serializes its requests.
type Values interface {
	// Get returns the value stored under key, if any.
	Get(key string) (string, bool)

	// Set stores value under key, replacing any prior value.
	Set(key, value string)

	// Delete removes key. Removing an absent key is a no-op.
	Delete(key string)
}
