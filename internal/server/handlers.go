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

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/jeremyhahn/go-passkey/pkg/account"
	"github.com/jeremyhahn/go-passkey/pkg/ceremony"
	"github.com/jeremyhahn/go-passkey/pkg/session"
)

type createAccountRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

type beginRequest struct {
	Username string `json:"username"`
}

type completeRegistrationRequest struct {
	Name       string          `json:"name"`
	Passkey    bool            `json:"passkey"`
	Credential json.RawMessage `json:"credential"`
}

type completeAuthenticationRequest struct {
	Username   string          `json:"username"`
	Credential json.RawMessage `json:"credential"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.accounts.Create(r.Context(), req.Username, req.DisplayName)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleBeginRegistration(w http.ResponseWriter, r *http.Request) {
	var req beginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.accounts.GetByUsername(r.Context(), req.Username)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	sess, values := s.session(r)
	creation, err := s.engine.BeginRegistration(r.Context(), values, user)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if err := sess.Save(r, w); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, creation)
}

func (s *Server) handleCompleteRegistration(w http.ResponseWriter, r *http.Request) {
	var req completeRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	response, err := ceremony.ParseRegistrationResponseString(string(req.Credential))
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	sess, values := s.session(r)
	record, err := s.engine.Register(r.Context(), values, response, req.Name, req.Passkey)
	if saveErr := sess.Save(r, w); saveErr != nil && err == nil {
		err = saveErr
	}
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleBeginAuthentication(w http.ResponseWriter, r *http.Request) {
	var req beginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// An empty username starts a discoverable (passwordless) ceremony.
	var user *account.User
	if req.Username != "" {
		resolved, err := s.accounts.GetByUsername(r.Context(), req.Username)
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		user = resolved
	}

	sess, values := s.session(r)
	assertion, err := s.engine.BeginAuthentication(r.Context(), values, user)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if err := sess.Save(r, w); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assertion)
}

func (s *Server) handleCompleteAuthentication(w http.ResponseWriter, r *http.Request) {
	var req completeAuthenticationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var user *account.User
	if req.Username != "" {
		resolved, err := s.accounts.GetByUsername(r.Context(), req.Username)
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		user = resolved
	}

	response, err := ceremony.ParseAuthenticationResponseString(string(req.Credential))
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	sess, values := s.session(r)
	result, err := s.engine.CompleteAuthentication(r.Context(), values, user, response)
	if saveErr := sess.Save(r, w); saveErr != nil && err == nil {
		err = saveErr
	}
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	token, err := s.tokens.Issue(result.User)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":          result.User,
		"authenticator": result.Record,
		"token":         token,
	})
}

// session loads the cookie session and wraps it in the ceremony-facing
// Values interface. Cookie decode errors yield a fresh session.
func (s *Server) session(r *http.Request) (*sessions.Session, session.Values) {
	sess, _ := s.sessions.Get(r, sessionName)
	return sess, session.FromGorilla(sess)
}

func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case ceremony.IsValidationError(err):
		writeError(w, http.StatusBadRequest, ceremony.ErrIncorrectCode.Error())
	case ceremony.IsCeremonyNotFound(err):
		writeError(w, http.StatusNotFound, "no ceremony in progress")
	case errors.Is(err, ceremony.ErrNoCredentials):
		writeError(w, http.StatusBadRequest, "no registered credentials")
	case errors.Is(err, account.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, account.ErrUserAlreadyExists):
		writeError(w, http.StatusConflict, "account already exists")
	default:
		s.logger.Error(err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
