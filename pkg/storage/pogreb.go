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

package storage

import (
	"sort"
	"strings"
	"sync"

	"github.com/akrylysov/pogreb"
)

// PogrebBackend provides a durable embedded key-value backend built on
// pogreb. Suitable for single-node deployments where records must survive
// process restarts without an external database.
type PogrebBackend struct {
	db *pogreb.DB
	mu sync.RWMutex
}

// OpenPogreb opens (or creates) a pogreb database at the given path.
func OpenPogreb(path string) (*PogrebBackend, error) {
	db, err := pogreb.Open(path, nil)
	if err != nil {
		return nil, err
	}
	return &PogrebBackend{db: db}, nil
}

// Get retrieves the value for the given key.
func (p *PogrebBackend) Get(key string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.db == nil {
		return nil, ErrClosed
	}

	value, err := p.db.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, ErrNotFound
	}
	return value, nil
}

// Put stores the value for the given key.
func (p *PogrebBackend) Put(key string, value []byte) error {
	if key == "" {
		return ErrInvalidKey
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.db == nil {
		return ErrClosed
	}
	return p.db.Put([]byte(key), value)
}

// Delete removes the key and its value from storage.
func (p *PogrebBackend) Delete(key string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.db == nil {
		return ErrClosed
	}

	has, err := p.db.Has([]byte(key))
	if err != nil {
		return err
	}
	if !has {
		return ErrNotFound
	}
	return p.db.Delete([]byte(key))
}

// List returns all keys with the given prefix in lexical order.
// Pogreb has no ordered key space, so this walks the full item set.
func (p *PogrebBackend) List(prefix string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.db == nil {
		return nil, ErrClosed
	}

	var keys []string
	it := p.db.Items()
	for {
		key, _, err := it.Next()
		if err == pogreb.ErrIterationDone {
			break
		}
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(string(key), prefix) {
			keys = append(keys, string(key))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Exists checks if a key exists in storage.
func (p *PogrebBackend) Exists(key string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.db == nil {
		return false, ErrClosed
	}
	return p.db.Has([]byte(key))
}

// Sync flushes outstanding writes to disk.
func (p *PogrebBackend) Sync() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.db == nil {
		return ErrClosed
	}
	return p.db.Sync()
}

// Close closes the underlying database. Subsequent operations return ErrClosed.
func (p *PogrebBackend) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}
