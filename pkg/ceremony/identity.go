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

package ceremony

import (
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/jeremyhahn/go-passkey/pkg/account"
)

// Identity is the projection of an account shown to the authenticator during
// registration: the handle, a login name, and a display name.
type Identity struct {
	ID          []byte
	Name        string
	DisplayName string
}

// IdentityPolicy maps accounts to the identity presented to authenticators.
// Deployments that want to hide usernames from the authenticator (or decorate
// display names) supply their own policy.
type IdentityPolicy func(user *account.User) Identity

// DefaultIdentityPolicy presents the username as both name and display name
// fallback, with the account handle as the user ID.
func DefaultIdentityPolicy(user *account.User) Identity {
	displayName := user.DisplayName
	if displayName == "" {
		displayName = user.Username
	}
	return Identity{
		ID:          user.Handle(),
		Name:        user.Username,
		DisplayName: displayName,
	}
}

// relyingPartyUser adapts an Identity and its credentials to the shape the
// WebAuthn library expects.
type relyingPartyUser struct {
	identity    Identity
	credentials []webauthn.Credential
}

func (u *relyingPartyUser) WebAuthnID() []byte {
	return u.identity.ID
}

func (u *relyingPartyUser) WebAuthnName() string {
	return u.identity.Name
}

func (u *relyingPartyUser) WebAuthnDisplayName() string {
	return u.identity.DisplayName
}

func (u *relyingPartyUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}
