package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// ErrEmptyKey indicates a store call without a key.
	ErrEmptyKey = errors.New("storage key must not be empty")
	// ErrUnknownKind indicates an unsupported scratch store kind in configuration.
	ErrUnknownKind = errors.New("unknown scratch store kind")
)

const (
	KindMemory = "memory"
	KindRedis  = "redis"
)

// Store keeps short-lived scratch values, such as wizard state, under string keys.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Replace overwrites key only if it still exists and reports whether it did.
	Replace(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// WizardKey scopes wizard state to a shopper and a package.
func WizardKey(scope string, packageID int) string {
	return "wizard:" + strings.TrimSpace(scope) + ":" + strconv.Itoa(packageID)
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore keeps values in-memory and guards access with a RWMutex.
// Expired entries are dropped lazily on access.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// MemoryOption configures MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the clock used for expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns a defensive copy of the value stored under key.
func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if e.expired(s.now()) {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur.expired(s.now()) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return clone(e.value), true, nil
}

// Save stores a copy of value. A non-positive ttl keeps the value until deleted.
func (s *MemoryStore) Save(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	s.entries[key] = s.newEntry(value, ttl)
	s.mu.Unlock()

	return nil
}

// Replace implements Store.
func (s *MemoryStore) Replace(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.entries[key]
	if !ok || cur.expired(s.now()) {
		delete(s.entries, key)
		return false, nil
	}
	s.entries[key] = s.newEntry(value, ttl)
	return true, nil
}

// Delete removes key. Missing keys are not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()

	return nil
}

func (s *MemoryStore) newEntry(value []byte, ttl time.Duration) entry {
	e := entry{value: clone(value)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	return e
}

func clone(src []byte) []byte {
	if src == nil {
		return []byte{}
	}
	out := make([]byte, len(src))
	copy(out, src)
	return out
}
