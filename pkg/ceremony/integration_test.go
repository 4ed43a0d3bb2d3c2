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
	"context"
	"encoding/json"
	"testing"

	"github.com/descope/virtualwebauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/pkg/account"
	"github.com/jeremyhahn/go-passkey/pkg/session"
)

var testRP = virtualwebauthn.RelyingParty{
	Name:   "Example Corp",
	ID:     "example.com",
	Origin: "https://example.com",
}

// registerCredential runs a full registration ceremony for the user with the
// given virtual authenticator and adds the credential to it.
func registerCredential(t *testing.T, env *testEnv, user *account.User,
	auth *virtualwebauthn.Authenticator, cred *virtualwebauthn.Credential, name string, passkey bool) {
	t.Helper()
	ctx := context.Background()

	creation, err := env.engine.BeginRegistration(ctx, env.values, user)
	require.NoError(t, err)

	optionsJSON, err := json.Marshal(creation.Response)
	require.NoError(t, err)
	parsedOptions, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(t, err)

	attestation := virtualwebauthn.CreateAttestationResponse(testRP, *auth, *cred, *parsedOptions)
	response, err := ParseRegistrationResponseString(attestation)
	require.NoError(t, err)

	record, err := env.engine.Register(ctx, env.values, response, name, passkey)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, user.PK, record.UserPK)
	assert.Equal(t, name, record.Name())
	assert.Equal(t, passkey, record.Passkey())

	auth.AddCredential(*cred)
}

func TestIntegration_RegistrationFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.accounts.Create(ctx, "testuser@example.com", "Test User")
	require.NoError(t, err)

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerCredential(t, env, user, &auth, &cred, "Security Key", false)

	// The stored record round-trips to a usable credential.
	records, err := env.records.ForUser(user.PK)
	require.NoError(t, err)
	require.Len(t, records, 1)
	credential, ok, err := records[0].Credential()
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, credential.ID)

	// Ceremony state is consumed; a second completion finds nothing.
	_, err = env.engine.CompleteRegistration(ctx, env.values, nil)
	assert.ErrorIs(t, err, ErrCeremonyNotFound)
}

func TestIntegration_SecondRegistrationExcludesFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.accounts.Create(ctx, "testuser@example.com", "Test User")
	require.NoError(t, err)

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerCredential(t, env, user, &auth, &cred, "first", false)

	creation, err := env.engine.BeginRegistration(ctx, env.values, user)
	require.NoError(t, err)
	assert.Len(t, creation.Response.CredentialExcludeList, 1)
}

func TestIntegration_AuthenticationFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.accounts.Create(ctx, "logintest@example.com", "Login Test User")
	require.NoError(t, err)

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerCredential(t, env, user, &auth, &cred, "Security Key", false)

	assertion, err := env.engine.BeginAuthentication(ctx, env.values, user)
	require.NoError(t, err)
	assert.Len(t, assertion.Response.AllowedCredentials, 1)

	optionsJSON, err := json.Marshal(assertion.Response)
	require.NoError(t, err)
	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	assertionResponse := virtualwebauthn.CreateAssertionResponse(testRP, auth, cred, *parsedOptions)
	response, err := ParseAuthenticationResponseString(assertionResponse)
	require.NoError(t, err)

	result, err := env.engine.CompleteAuthentication(ctx, env.values, user, response)
	require.NoError(t, err)
	assert.Equal(t, user.PK, result.User.PK)
	assert.Equal(t, "Security Key", result.Record.Name())

	// Replaying the same assertion fails: the state was cleared before
	// verification.
	_, err = env.engine.CompleteAuthentication(ctx, env.values, user, response)
	assert.ErrorIs(t, err, ErrCeremonyNotFound)
}

func TestIntegration_PasswordlessFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.accounts.Create(ctx, "passkey@example.com", "Passkey User")
	require.NoError(t, err)

	// Discoverable credentials carry the user handle on the authenticator.
	auth := virtualwebauthn.NewAuthenticatorWithOptions(virtualwebauthn.AuthenticatorOptions{
		UserHandle: user.Handle(),
	})
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerCredential(t, env, user, &auth, &cred, "Phone", true)

	assertion, err := env.engine.BeginAuthentication(ctx, env.values, nil)
	require.NoError(t, err)
	assert.Empty(t, assertion.Response.AllowedCredentials)

	optionsJSON, err := json.Marshal(assertion.Response)
	require.NoError(t, err)
	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	assertionResponse := virtualwebauthn.CreateAssertionResponse(testRP, auth, cred, *parsedOptions)
	response, err := ParseAuthenticationResponseString(assertionResponse)
	require.NoError(t, err)

	// No user supplied: the account is resolved from the user handle.
	result, err := env.engine.CompleteAuthentication(ctx, env.values, nil, response)
	require.NoError(t, err)
	assert.Equal(t, user.PK, result.User.PK)
	assert.True(t, result.Record.Passkey())
}

func TestIntegration_PasswordlessUnknownHandle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.accounts.Create(ctx, "passkey@example.com", "Passkey User")
	require.NoError(t, err)

	auth := virtualwebauthn.NewAuthenticatorWithOptions(virtualwebauthn.AuthenticatorOptions{
		UserHandle: user.Handle(),
	})
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerCredential(t, env, user, &auth, &cred, "Phone", true)

	// Delete the account so the asserted handle no longer resolves.
	require.NoError(t, env.accounts.Delete(ctx, user.PK))

	assertion, err := env.engine.BeginAuthentication(ctx, env.values, nil)
	require.NoError(t, err)

	optionsJSON, err := json.Marshal(assertion.Response)
	require.NoError(t, err)
	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	assertionResponse := virtualwebauthn.CreateAssertionResponse(testRP, auth, cred, *parsedOptions)
	response, err := ParseAuthenticationResponseString(assertionResponse)
	require.NoError(t, err)

	_, err = env.engine.CompleteAuthentication(ctx, env.values, nil, response)
	assert.ErrorIs(t, err, ErrIncorrectCode)

	// The rejected attempt consumed the ceremony: state and challenge are
	// gone, so the same stored state cannot be retried with another handle.
	_, err = session.State(env.values)
	assert.ErrorIs(t, err, session.ErrStateNotFound)
	_, ok := env.values.Get(session.ChallengeKey)
	assert.False(t, ok)

	_, err = env.engine.CompleteAuthentication(ctx, env.values, nil, response)
	assert.ErrorIs(t, err, ErrCeremonyNotFound)
}

func TestIntegration_WrongAuthenticatorRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.accounts.Create(ctx, "logintest@example.com", "Login Test User")
	require.NoError(t, err)

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerCredential(t, env, user, &auth, &cred, "Security Key", false)

	assertion, err := env.engine.BeginAuthentication(ctx, env.values, user)
	require.NoError(t, err)

	optionsJSON, err := json.Marshal(assertion.Response)
	require.NoError(t, err)
	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	// Sign with a credential that was never registered.
	stranger := virtualwebauthn.NewAuthenticator()
	strangerCred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	stranger.AddCredential(strangerCred)

	assertionResponse := virtualwebauthn.CreateAssertionResponse(testRP, stranger, strangerCred, *parsedOptions)
	response, err := ParseAuthenticationResponseString(assertionResponse)
	require.NoError(t, err)

	_, err = env.engine.CompleteAuthentication(ctx, env.values, user, response)
	assert.ErrorIs(t, err, ErrIncorrectCode)
}
