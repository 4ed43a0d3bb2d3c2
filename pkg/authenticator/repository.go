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

package authenticator

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/storage"
)

const (
	recordPrefix     = "authenticators/by-id/"
	userPrefix       = "authenticators/by-user/"
	credentialPrefix = "authenticators/by-credential/"
)

// ErrRecordNotFound indicates the requested record does not exist.
var ErrRecordNotFound = errors.New("authenticator: record not found")

// Repository persists authenticator records in a storage.Backend. Besides the
// primary record, it maintains a per-user index and a credential-ID index so a
// passwordless assertion can be matched back to its record without scanning.
type Repository struct {
	backend storage.Backend
	logger  *logging.Logger
}

// NewRepository creates a Repository over the given backend.
func NewRepository(backend storage.Backend, logger *logging.Logger) *Repository {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Repository{backend: backend, logger: logger}
}

// Add persists a record and its index entries.
func (r *Repository) Add(record *Record) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}

	id := record.ID.String()
	if err := r.backend.Put(recordPrefix+id, encoded); err != nil {
		return err
	}
	if err := r.backend.Put(userKey(record.UserPK, id), []byte(id)); err != nil {
		return err
	}

	// Records without attested credential data (legacy imports) simply skip
	// the credential index; they still appear in per-user listings.
	attData, ok, err := record.CredentialData()
	if err != nil {
		return err
	}
	if ok {
		if err := r.backend.Put(credentialKey(attData.CredentialID), []byte(id)); err != nil {
			return err
		}
	}

	r.logger.Debug("authenticator record stored",
		"id", id,
		"user_pk", record.UserPK,
		"passkey", record.Passkey())
	return nil
}

// Get retrieves a record by its ID.
func (r *Repository) Get(id uuid.UUID) (*Record, error) {
	return r.load(id.String())
}

// ForUser returns all records registered by the given user.
func (r *Repository) ForUser(userPK int64) ([]*Record, error) {
	keys, err := r.backend.List(userPrefix + strconv.FormatInt(userPK, 10) + "/")
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(keys))
	for _, key := range keys {
		id, err := r.backend.Get(key)
		if err != nil {
			return nil, err
		}
		record, err := r.load(string(id))
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// CredentialsFor returns the login-time credentials derived from the user's
// records. Records lacking attested credential data are skipped.
func (r *Repository) CredentialsFor(userPK int64) ([]webauthn.Credential, error) {
	records, err := r.ForUser(userPK)
	if err != nil {
		return nil, err
	}

	credentials := make([]webauthn.Credential, 0, len(records))
	for _, record := range records {
		credential, ok, err := record.Credential()
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		credentials = append(credentials, *credential)
	}
	return credentials, nil
}

// FindByCredentialID resolves a raw credential ID to its record across all
// users, using the credential index written at Add time.
func (r *Repository) FindByCredentialID(credentialID []byte) (*Record, error) {
	id, err := r.backend.Get(credentialKey(credentialID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return r.load(string(id))
}

// Remove deletes a record and its index entries.
func (r *Repository) Remove(id uuid.UUID) error {
	record, err := r.load(id.String())
	if err != nil {
		return err
	}

	if attData, ok, err := record.CredentialData(); err == nil && ok {
		if err := r.backend.Delete(credentialKey(attData.CredentialID)); err != nil &&
			!errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	if err := r.backend.Delete(userKey(record.UserPK, id.String())); err != nil &&
		!errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return r.backend.Delete(recordPrefix + id.String())
}

func (r *Repository) load(id string) (*Record, error) {
	encoded, err := r.backend.Get(recordPrefix + id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(encoded, &record); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %s", ErrCorruptRecord, id, err)
	}
	return &record, nil
}

func userKey(userPK int64, id string) string {
	var b strings.Builder
	b.WriteString(userPrefix)
	b.WriteString(strconv.FormatInt(userPK, 10))
	b.WriteString("/")
	b.WriteString(id)
	return b.String()
}

func credentialKey(credentialID []byte) string {
	return credentialPrefix + base64.RawURLEncoding.EncodeToString(credentialID)
}
