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

// Package ceremony orchestrates WebAuthn registration and authentication
// ceremonies. An Engine pairs each begin operation with a complete operation,
// carrying the challenge and ceremony state through a session.Values. State
// is one-shot: completion clears it before verifying, so a replayed response
// never reaches the verifier twice.
package ceremony

import (
	"context"
	"errors"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/jeremyhahn/go-passkey/pkg/account"
	"github.com/jeremyhahn/go-passkey/pkg/authenticator"
	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/session"
)

// Engine runs WebAuthn ceremonies against an account store and an
// authenticator record repository.
type Engine struct {
	webAuthn *webauthn.WebAuthn
	config   *Config
	accounts account.Store
	records  *authenticator.Repository
	identity IdentityPolicy
	logger   *logging.Logger
}

// EngineParams contains the collaborators for NewEngine.
type EngineParams struct {
	// Config is the relying-party configuration (required).
	Config *Config

	// Accounts resolves user handles during completion (required).
	Accounts account.Store

	// Records is the authenticator record repository (required).
	Records *authenticator.Repository

	// Identity maps accounts to authenticator-visible identities.
	// Defaults to DefaultIdentityPolicy.
	Identity IdentityPolicy

	// Logger defaults to the package default logger.
	Logger *logging.Logger
}

// NewEngine creates a ceremony engine from the given parameters.
func NewEngine(params *EngineParams) (*Engine, error) {
	if params == nil || params.Config == nil || params.Accounts == nil || params.Records == nil {
		return nil, ErrNotConfigured
	}

	config := params.Config
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, WrapError("new engine", err)
	}

	webAuthn, err := webauthn.New(config.ToWebAuthnConfig())
	if err != nil {
		return nil, WrapError("new engine", err)
	}

	identity := params.Identity
	if identity == nil {
		identity = DefaultIdentityPolicy
	}
	logger := params.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	return &Engine{
		webAuthn: webAuthn,
		config:   config,
		accounts: params.Accounts,
		records:  params.Records,
		identity: identity,
		logger:   logger,
	}, nil
}

// Registration is the outcome of a completed registration ceremony.
type Registration struct {
	// User is the account the credential belongs to.
	User *account.User

	// Credential is the verified credential.
	Credential *webauthn.Credential

	// AuthenticatorData is the raw authenticator data from the attestation,
	// suitable for storing in an authenticator.Record.
	AuthenticatorData []byte
}

// Authentication is the outcome of a completed authentication ceremony.
type Authentication struct {
	// User is the authenticated account.
	User *account.User

	// Record is the authenticator record the assertion matched.
	Record *authenticator.Record
}

// BeginRegistration starts a registration ceremony for the given user. The
// returned options carry the session challenge and exclude the user's
// existing credentials. User verification is discouraged here: registration
// normally happens inside an already-verified session.
func (e *Engine) BeginRegistration(ctx context.Context, values session.Values, user *account.User) (*protocol.CredentialCreation, error) {
	const op = "begin registration"

	credentials, err := e.records.CredentialsFor(user.PK)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.PhaseBegin, metrics.StatusError)
		return nil, WrapError(op, err)
	}
	exclusions := make([]protocol.CredentialDescriptor, 0, len(credentials))
	for _, credential := range credentials {
		exclusions = append(exclusions, credential.Descriptor())
	}

	challenge, err := session.GenerateChallenge(values)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.PhaseBegin, metrics.StatusError)
		return nil, WrapError(op, err)
	}

	rpUser := &relyingPartyUser{
		identity:    e.identity(user),
		credentials: credentials,
	}
	creation, state, err := e.webAuthn.BeginRegistration(rpUser,
		webauthn.WithExclusions(exclusions),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			UserVerification: protocol.VerificationDiscouraged,
		}),
		withCreationChallenge(challenge),
	)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.PhaseBegin, metrics.StatusError)
		return nil, WrapError(op, err)
	}

	// The library mints its own challenge before options run; the stored
	// state must reference the session challenge the client will sign.
	state.Challenge = session.EncodeChallenge(challenge)
	if err := session.SetState(values, state); err != nil {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.PhaseBegin, metrics.StatusError)
		return nil, WrapError(op, err)
	}

	e.logger.Debug("registration ceremony started", "user_pk", user.PK)
	metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.PhaseBegin, metrics.StatusSuccess)
	return creation, nil
}

// CompleteRegistration verifies an attestation response against the pending
// ceremony state. The state and challenge are consumed whether or not
// verification succeeds. The caller persists the resulting record, typically
// via Register.
func (e *Engine) CompleteRegistration(ctx context.Context, values session.Values, response *protocol.ParsedCredentialCreationData) (*Registration, error) {
	const op = "complete registration"

	state, err := session.State(values)
	if err != nil {
		if errors.Is(err, session.ErrStateNotFound) {
			metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.PhaseComplete, metrics.StatusNotFound)
			return nil, WrapError(op, ErrCeremonyNotFound)
		}
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.PhaseComplete, metrics.StatusError)
		return nil, WrapError(op, err)
	}

	// Consume before verifying so a replay cannot reach the verifier.
	session.ClearState(values)
	session.ConsumeChallenge(values)

	user, err := e.userFromHandle(ctx, state.UserID)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.PhaseComplete, metrics.StatusRejected)
		return nil, WrapError(op, err)
	}

	rpUser := &relyingPartyUser{identity: e.identity(user)}
	credential, err := e.webAuthn.CreateCredential(rpUser, *state, response)
	if err != nil {
		e.logger.Debug("registration rejected", "user_pk", user.PK, "error", err)
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.PhaseComplete, metrics.StatusRejected)
		return nil, WrapError(op, ErrIncorrectCode)
	}

	metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.PhaseComplete, metrics.StatusSuccess)
	return &Registration{
		User:              user,
		Credential:        credential,
		AuthenticatorData: response.Response.AttestationObject.RawAuthData,
	}, nil
}

// Register completes a registration ceremony and persists the authenticator
// record. The passkey flag is the client's credProps assertion and is stored
// as-is; it grants no additional trust.
func (e *Engine) Register(ctx context.Context, values session.Values, response *protocol.ParsedCredentialCreationData, name string, passkey bool) (*authenticator.Record, error) {
	registration, err := e.CompleteRegistration(ctx, values, response)
	if err != nil {
		return nil, err
	}

	record := authenticator.New(registration.User.PK, name, registration.AuthenticatorData, passkey)
	if err := e.records.Add(record); err != nil {
		return nil, WrapError("register", err)
	}

	e.logger.Info("authenticator registered",
		"user_pk", registration.User.PK,
		"record_id", record.ID.String(),
		"passkey", passkey)
	return record, nil
}

// BeginAuthentication starts an authentication ceremony. With a user, the
// assertion is scoped to that user's credentials; with nil, a discoverable
// (passwordless) ceremony is started and the authenticator identifies the
// user. User verification is preferred in both cases.
func (e *Engine) BeginAuthentication(ctx context.Context, values session.Values, user *account.User) (*protocol.CredentialAssertion, error) {
	const op = "begin authentication"

	challenge, err := session.GenerateChallenge(values)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseBegin, metrics.StatusError)
		return nil, WrapError(op, err)
	}

	opts := []webauthn.LoginOption{
		webauthn.WithUserVerification(protocol.VerificationPreferred),
		withAssertionChallenge(challenge),
	}

	var (
		assertion *protocol.CredentialAssertion
		state     *webauthn.SessionData
	)
	if user == nil {
		assertion, state, err = e.webAuthn.BeginDiscoverableLogin(opts...)
	} else {
		credentials, credErr := e.records.CredentialsFor(user.PK)
		if credErr != nil {
			metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseBegin, metrics.StatusError)
			return nil, WrapError(op, credErr)
		}
		if len(credentials) == 0 {
			metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseBegin, metrics.StatusRejected)
			return nil, WrapError(op, ErrNoCredentials)
		}
		rpUser := &relyingPartyUser{
			identity:    e.identity(user),
			credentials: credentials,
		}
		assertion, state, err = e.webAuthn.BeginLogin(rpUser, opts...)
	}
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseBegin, metrics.StatusError)
		return nil, WrapError(op, err)
	}

	state.Challenge = session.EncodeChallenge(challenge)
	if err := session.SetState(values, state); err != nil {
		metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseBegin, metrics.StatusError)
		return nil, WrapError(op, err)
	}

	metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseBegin, metrics.StatusSuccess)
	return assertion, nil
}

// CompleteAuthentication verifies an assertion response against the pending
// ceremony state. With a nil user the account is resolved from the
// assertion's user handle. Any verification failure, including an unknown
// handle or credential, surfaces as ErrIncorrectCode.
func (e *Engine) CompleteAuthentication(ctx context.Context, values session.Values, user *account.User, response *protocol.ParsedCredentialAssertionData) (*Authentication, error) {
	const op = "complete authentication"

	state, err := session.State(values)
	if err != nil {
		if errors.Is(err, session.ErrStateNotFound) {
			metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseComplete, metrics.StatusNotFound)
			return nil, WrapError(op, ErrCeremonyNotFound)
		}
		metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseComplete, metrics.StatusError)
		return nil, WrapError(op, err)
	}

	// Consume before any rejection can surface, handle resolution included,
	// so a replay cannot reach the verifier with the same stored state.
	session.ClearState(values)
	session.ConsumeChallenge(values)

	if user == nil {
		resolved, err := e.userFromHandle(ctx, response.Response.UserHandle)
		if err != nil {
			metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseComplete, metrics.StatusRejected)
			return nil, WrapError(op, err)
		}
		user = resolved
	}

	credentials, err := e.records.CredentialsFor(user.PK)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseComplete, metrics.StatusError)
		return nil, WrapError(op, err)
	}
	rpUser := &relyingPartyUser{
		identity:    e.identity(user),
		credentials: credentials,
	}

	var credential *webauthn.Credential
	if len(state.UserID) == 0 {
		credential, err = e.webAuthn.ValidateDiscoverableLogin(
			func(rawID, userHandle []byte) (webauthn.User, error) {
				return rpUser, nil
			}, *state, response)
	} else {
		credential, err = e.webAuthn.ValidateLogin(rpUser, *state, response)
	}
	if err != nil {
		e.logger.Debug("authentication rejected", "user_pk", user.PK, "error", err)
		metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseComplete, metrics.StatusRejected)
		return nil, WrapError(op, ErrIncorrectCode)
	}

	record, err := e.records.FindByCredentialID(credential.ID)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseComplete, metrics.StatusRejected)
		return nil, WrapError(op, ErrIncorrectCode)
	}

	e.logger.Info("authentication succeeded",
		"user_pk", user.PK,
		"record_id", record.ID.String())
	metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseComplete, metrics.StatusSuccess)
	return &Authentication{User: user, Record: record}, nil
}

// userFromHandle resolves an account from a user handle. All failures
// collapse into ErrIncorrectCode so completion does not reveal whether a
// handle exists.
func (e *Engine) userFromHandle(ctx context.Context, handle []byte) (*account.User, error) {
	pk, err := account.ParseHandle(handle)
	if err != nil {
		return nil, ErrIncorrectCode
	}
	user, err := e.accounts.GetByPK(ctx, pk)
	if err != nil {
		return nil, ErrIncorrectCode
	}
	return user, nil
}

func withCreationChallenge(challenge []byte) webauthn.RegistrationOption {
	return func(opts *protocol.PublicKeyCredentialCreationOptions) {
		opts.Challenge = challenge
	}
}

func withAssertionChallenge(challenge []byte) webauthn.LoginOption {
	return func(opts *protocol.PublicKeyCredentialRequestOptions) {
		opts.Challenge = challenge
	}
}
