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
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
)

const defaultSessionTTL = 5 * time.Minute

// MemoryManager is an in-memory registry of sessions keyed by session ID,
// with TTL-based expiry. Intended for development and testing; production
// deployments adapt whatever session mechanism their transport already has
// (see FromGorilla).
type MemoryManager struct {
	sessions cmap.ConcurrentMap[string, *memorySession]
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

type memorySession struct {
	mu      sync.RWMutex
	values  map[string]string
	expires time.Time
}

// NewMemoryManager creates a session registry. A ttl of zero defaults to
// five minutes, comfortably above common ceremony timeouts.
func NewMemoryManager(ttl time.Duration) *MemoryManager {
	if ttl == 0 {
		ttl = defaultSessionTTL
	}
	return &MemoryManager{
		sessions: cmap.New[*memorySession](),
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
}

// Open returns the Values accessor for the given session ID, creating the
// session if absent and refreshing its expiry.
func (m *MemoryManager) Open(id string) Values {
	expires := time.Now().Add(m.ttl)
	if sess, ok := m.sessions.Get(id); ok && time.Now().Before(sess.expires) {
		sess.mu.Lock()
		sess.expires = expires
		sess.mu.Unlock()
		return sess
	}

	sess := &memorySession{
		values:  make(map[string]string),
		expires: expires,
	}
	m.sessions.Set(id, sess)
	return sess
}

// Remove drops a session and all of its values.
func (m *MemoryManager) Remove(id string) {
	m.sessions.Remove(id)
}

// Count returns the number of live sessions.
func (m *MemoryManager) Count() int {
	return m.sessions.Count()
}

// Cleanup removes expired sessions and reports how many were dropped.
func (m *MemoryManager) Cleanup() int {
	now := time.Now()
	removed := 0
	for entry := range m.sessions.IterBuffered() {
		if now.After(entry.Val.expires) {
			m.sessions.Remove(entry.Key)
			removed++
		}
	}
	return removed
}

// StartCleaner launches a background sweeper that calls Cleanup on the
// given interval until Close is called.
func (m *MemoryManager) StartCleaner(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Cleanup()
			case <-m.stop:
				return
			}
		}
	}()
}

// Close stops the background sweeper, if any.
func (m *MemoryManager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (s *memorySession) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	return value, ok
}

func (s *memorySession) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
}

func (s *memorySession) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
}
