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
	"github.com/gorilla/sessions"
)

// FromGorilla adapts a gorilla/sessions session to the Values interface, so
// transports already using gorilla cookie or filesystem sessions can host
// ceremony state in them directly. The caller remains responsible for
// calling Save on the underlying session after the ceremony operation.
func FromGorilla(s *sessions.Session) Values {
	return &gorillaValues{session: s}
}

type gorillaValues struct {
	session *sessions.Session
}

func (g *gorillaValues) Get(key string) (string, bool) {
	raw, ok := g.session.Values[key]
	if !ok {
		return "", false
	}
	value, ok := raw.(string)
	return value, ok
}

func (g *gorillaValues) Set(key, value string) {
	g.session.Values[key] = value
}

func (g *gorillaValues) Delete(key string) {
	delete(g.session.Values, key)
}
