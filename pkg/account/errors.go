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

import "errors"

var (
	// ErrUserNotFound is returned when an account cannot be found.
	ErrUserNotFound = errors.New("account: user not found")

	// ErrUserAlreadyExists is returned when creating an account with a
	// username that is already taken.
	ErrUserAlreadyExists = errors.New("account: user already exists")

	// ErrInvalidHandle is returned when a WebAuthn user handle does not
	// decode to a primary key.
	ErrInvalidHandle = errors.New("account: invalid user handle")
)
