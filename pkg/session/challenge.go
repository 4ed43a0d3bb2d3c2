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
	"crypto/rand"
	"encoding/base64"
)

// ChallengeSize is the length in bytes of a ceremony challenge.
const ChallengeSize = 32

// GenerateChallenge returns the session's pending challenge, minting one if
// none exists. Repeated calls within the same session return the same bytes
// until the challenge is consumed, so a begin operation retried before
// completion reuses the outstanding challenge instead of invalidating it.
func GenerateChallenge(v Values) ([]byte, error) {
	if encoded, ok := v.Get(ChallengeKey); ok {
		challenge, err := base64.RawURLEncoding.DecodeString(encoded)
		if err == nil && len(challenge) == ChallengeSize {
			return challenge, nil
		}
		// A mangled value cannot be replayed anyway; mint a fresh one.
	}

	challenge := make([]byte, ChallengeSize)
	if _, err := rand.Read(challenge); err != nil {
		return nil, err
	}
	v.Set(ChallengeKey, EncodeChallenge(challenge))
	return challenge, nil
}

// ConsumeChallenge removes the pending challenge from the session. It must
// be called exactly once per completed ceremony, on success and on definitive
// failure, so a stale challenge can never span two ceremonies.
func ConsumeChallenge(v Values) {
	v.Delete(ChallengeKey)
}

// EncodeChallenge returns the session encoding of a challenge, which matches
// the base64url encoding the WebAuthn client data carries.
func EncodeChallenge(challenge []byte) string {
	return base64.RawURLEncoding.EncodeToString(challenge)
}
