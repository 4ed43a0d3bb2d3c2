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
	"io"
	"strings"

	"github.com/go-webauthn/webauthn/protocol"
)

// ParseRegistrationResponse parses the JSON credential returned by the
// browser's create() call. Malformed input is a validation failure, not a
// transport error.
func ParseRegistrationResponse(body io.Reader) (*protocol.ParsedCredentialCreationData, error) {
	parsed, err := protocol.ParseCredentialCreationResponseBody(body)
	if err != nil {
		return nil, WrapError("parse registration response", ErrIncorrectCode)
	}
	return parsed, nil
}

// ParseRegistrationResponseString parses a registration response held in a
// string, as read back from a form field.
func ParseRegistrationResponseString(body string) (*protocol.ParsedCredentialCreationData, error) {
	return ParseRegistrationResponse(strings.NewReader(body))
}

// ParseAuthenticationResponse parses the JSON credential returned by the
// browser's get() call.
func ParseAuthenticationResponse(body io.Reader) (*protocol.ParsedCredentialAssertionData, error) {
	parsed, err := protocol.ParseCredentialRequestResponseBody(body)
	if err != nil {
		return nil, WrapError("parse authentication response", ErrIncorrectCode)
	}
	return parsed, nil
}

// ParseAuthenticationResponseString parses an authentication response held in
// a string.
func ParseAuthenticationResponseString(body string) (*protocol.ParsedCredentialAssertionData, error) {
	return ParseAuthenticationResponse(strings.NewReader(body))
}
