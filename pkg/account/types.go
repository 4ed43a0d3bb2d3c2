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

// Package account provides the user account store the ceremony engine
// consults when resolving identities, including the reverse lookup from a
// WebAuthn user handle back to an account.
package account

import (
	"strconv"
	"time"
)

// User is an account known to the relying party.
type User struct {
	// PK is the primary key assigned by the store.
	PK int64 `json:"pk"`

	// Username is the unique login name.
	Username string `json:"username"`

	// DisplayName is the human-readable name shown in authenticator prompts.
	DisplayName string `json:"display_name"`

	// CreatedAt is when the account was created.
	CreatedAt time.Time `json:"created_at"`
}

// Handle returns the WebAuthn user handle for this account: the decimal
// encoding of its primary key. Authenticators store the handle alongside
// discoverable credentials, and ParseHandle reverses it during passwordless
// authentication.
func (u *User) Handle() []byte {
	return []byte(strconv.FormatInt(u.PK, 10))
}

// ParseHandle decodes a WebAuthn user handle back into a primary key.
// Returns ErrInvalidHandle for anything that is not a positive decimal
// integer.
func ParseHandle(handle []byte) (int64, error) {
	pk, err := strconv.ParseInt(string(handle), 10, 64)
	if err != nil || pk <= 0 {
		return 0, ErrInvalidHandle
	}
	return pk, nil
}
