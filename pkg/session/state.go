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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-webauthn/webauthn/webauthn"
)

// ErrStateNotFound is returned when no ceremony state is stored in the
// session: the ceremony was never begun, already completed, or the session
// expired in between.
var ErrStateNotFound = errors.New("session: ceremony state not found")

// State returns the in-progress ceremony state stored in the session.
func State(v Values) (*webauthn.SessionData, error) {
	encoded, ok := v.Get(StateKey)
	if !ok {
		return nil, ErrStateNotFound
	}

	var state webauthn.SessionData
	if err := json.Unmarshal([]byte(encoded), &state); err != nil {
		return nil, fmt.Errorf("session: decode ceremony state: %w", err)
	}
	return &state, nil
}

// SetState stores ceremony state in the session, replacing any prior state.
func SetState(v Values, state *webauthn.SessionData) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("session: encode ceremony state: %w", err)
	}
	v.Set(StateKey, string(encoded))
	return nil
}

// ClearState removes the ceremony state. Like the challenge, state is
// one-shot: it must be cleared when a ceremony completes, on the failure
// path as well, so a failed attempt cannot be retried against it.
func ClearState(v Values) {
	v.Delete(StateKey)
}
