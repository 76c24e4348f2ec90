// Package cache provides caching implementations for Custos
// authorization decisions.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/custos"
	"github.com/xraph/custos/scope"
)

// Compile-time interface check.
var _ custos.Cache = (*Memory)(nil)

// Memory is an in-memory decision cache with TTL-based expiration.
// Decisions are keyed by (principal, permission code, scope).
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	maxSize int
}

type entry struct {
	decision  custos.Decision
	expiresAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithMaxSize sets the maximum number of cache entries.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// NewMemory creates a new in-memory decision cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		ttl:     5 * time.Minute,
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a cached decision.
func (m *Memory) Get(_ context.Context, principalID, code string, sc scope.Scope) (custos.Decision, bool) {
	key := cacheKey(principalID, code, sc)
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return custos.Decision{}, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return custos.Decision{}, false
	}
	return e.decision, true
}

// Set stores a decision in the cache.
func (m *Memory) Set(_ context.Context, principalID, code string, sc scope.Scope, d custos.Decision) {
	key := cacheKey(principalID, code, sc)
	m.mu.Lock()
	defer m.mu.Unlock()

	// Evict if at capacity.
	if len(m.entries) >= m.maxSize {
		m.evictExpired()
		if len(m.entries) >= m.maxSize {
			m.evictOne()
		}
	}

	m.entries[key] = &entry{
		decision:  d,
		expiresAt: time.Now().Add(m.ttl),
	}
}

// InvalidatePrincipal removes all cached decisions for a principal.
func (m *Memory) InvalidatePrincipal(_ context.Context, principalID string) {
	prefix := principalID + "\x1f"
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(m.entries, k)
		}
	}
}

// InvalidateAll removes all cached decisions.
func (m *Memory) InvalidateAll(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
}

// cacheKey joins the decision coordinates with a separator that cannot
// occur in principal IDs or permission codes.
func cacheKey(principalID, code string, sc scope.Scope) string {
	return principalID + "\x1f" + code + "\x1f" + sc.String()
}

// evictExpired removes all expired entries. Must hold write lock.
func (m *Memory) evictExpired() {
	now := time.Now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

// evictOne removes one arbitrary entry. Must hold write lock.
func (m *Memory) evictOne() {
	for k := range m.entries {
		delete(m.entries, k)
		return
	}
}
