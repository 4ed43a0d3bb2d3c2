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

// Package authenticator stores registered WebAuthn authenticators. Each
// registration is captured as an immutable Record holding the raw
// authenticator data returned by the browser, so credential material can be
// re-derived at any time without a schema migration.
package authenticator

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// TypeWebAuthn identifies WebAuthn records. Present so other second-factor
// types can share the same table later.
const TypeWebAuthn = "webauthn"

// ErrCorruptRecord indicates a stored record whose authenticator data can no
// longer be decoded.
var ErrCorruptRecord = errors.New("authenticator: corrupt record")

// Data is the opaque payload of a Record.
type Data struct {
	// Name is the user-chosen label for the authenticator.
	Name string `json:"name"`

	// AuthenticatorData is the standard-base64 encoding of the raw
	// authenticator data captured at registration.
	AuthenticatorData string `json:"authenticator_data"`

	// Passkey records whether the client reported the credential as
	// discoverable. Asserted by the browser, not verified here.
	Passkey bool `json:"passwordless"`
}

// Record is a registered authenticator. Records are immutable after creation:
// callers replace rather than mutate, and assertion counters are not tracked.
type Record struct {
	ID        uuid.UUID `json:"id"`
	UserPK    int64     `json:"user_pk"`
	Type      string    `json:"type"`
	Data      Data      `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// New creates a Record for the given user from raw authenticator data.
func New(userPK int64, name string, rawAuthData []byte, passkey bool) *Record {
	return &Record{
		ID:     uuid.New(),
		UserPK: userPK,
		Type:   TypeWebAuthn,
		Data: Data{
			Name:              name,
			AuthenticatorData: base64.StdEncoding.EncodeToString(rawAuthData),
			Passkey:           passkey,
		},
		CreatedAt: time.Now().UTC(),
	}
}

// Name returns the user-chosen label for the authenticator.
func (r *Record) Name() string {
	return r.Data.Name
}

// Passkey reports whether the client flagged the credential as discoverable
// at registration time. The flag comes from the browser's credProps output
// and is informational only; passwordless sign-in is decided by whether the
// authenticator actually produces a user handle.
func (r *Record) Passkey() bool {
	return r.Data.Passkey
}

// RawAuthenticatorData returns the decoded authenticator data bytes.
func (r *Record) RawAuthenticatorData() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(r.Data.AuthenticatorData)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorruptRecord, err)
	}
	return raw, nil
}

// AuthenticatorData parses the stored authenticator data.
func (r *Record) AuthenticatorData() (*protocol.AuthenticatorData, error) {
	raw, err := r.RawAuthenticatorData()
	if err != nil {
		return nil, err
	}
	var authData protocol.AuthenticatorData
	if err := authData.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorruptRecord, err)
	}
	return &authData, nil
}

// CredentialData returns the attested credential data embedded in the record,
// or ok=false when the authenticator data carries none.
func (r *Record) CredentialData() (*protocol.AttestedCredentialData, bool, error) {
	authData, err := r.AuthenticatorData()
	if err != nil {
		return nil, false, err
	}
	if !authData.Flags.HasAttestedCredentialData() {
		return nil, false, nil
	}
	return &authData.AttData, true, nil
}

// Credential converts the record into the login-time credential shape, or
// ok=false when no attested credential data is present.
func (r *Record) Credential() (*webauthn.Credential, bool, error) {
	attData, ok, err := r.CredentialData()
	if err != nil || !ok {
		return nil, ok, err
	}
	return &webauthn.Credential{
		ID:        attData.CredentialID,
		PublicKey: attData.CredentialPublicKey,
		Authenticator: webauthn.Authenticator{
			AAGUID: attData.AAGUID,
		},
	}, true, nil
}
