package store

import (
	"context"
	"sync"

	"kv-migrator/internal/kv"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
)

var errInvalidTTL = errors.New("expiry must be persistent or positive")

// Store is a concurrency-safe in-memory key–value store implementing
// kv.Handle. It backs dry runs and tests.
//
// Design principles:
// - Safe for concurrent access using RWMutex
// - Expiry is evaluated lazily against the injected clock
// - Values are copied on the way in and out, callers never share buffers
type Store struct {
	mu    sync.RWMutex
	data  map[string]Entry
	clock clockwork.Clock
}

var _ kv.Handle = (*Store)(nil)

// NewStore initializes and returns a new Store.
func NewStore(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		data:  make(map[string]Entry),
		clock: clock,
	}
}

// Put stores value at key with the given expiry, bypassing TTL validation.
// A non-positive expiring TTL produces an already expired entry, which is
// how tests seed keys that die between enumeration and read.
func (s *Store) Put(key string, value []byte, ttl kv.TTL) {
	entry := Entry{Value: clone(value)}
	if ttl.Kind == kv.TTLExpiring {
		entry.ExpiresAt = s.clock.Now().Add(ttl.Remaining)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry
}

// Delete removes a key from the store.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
}

// Len returns the number of live keys.
func (s *Store) Len() int {
	now := s.clock.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, v := range s.data {
		if !v.IsExpired(now) {
			n++
		}
	}
	return n
}

// RemoveExpired deletes every expired entry and returns how many were
// removed.
func (s *Store) RemoveExpired() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, v := range s.data {
		if v.IsExpired(now) {
			delete(s.data, k)
			removed++
		}
	}
	return removed
}

// ListKeys returns a snapshot of all non-expired keys.
func (s *Store) ListKeys(ctx context.Context) (kv.KeyIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, kv.Unreachable("list", "", err)
	}
	now := s.clock.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.data) == 0 {
		return kv.EmptyKeys, nil
	}
	keys := make([]string, 0, len(s.data))
	for k, v := range s.data {
		if !v.IsExpired(now) {
			keys = append(keys, k)
		}
	}
	return kv.SliceKeys(keys), nil
}

// GetValue retrieves a value from the store.
//
// Behavior:
// - Returns (value, true) if key exists and is not expired
// - If the key is expired, it is deleted and treated as missing
func (s *Store) GetValue(ctx context.Context, key string) ([]byte, bool, error) {
	entry, ok := s.live(key)
	if !ok {
		return nil, false, nil
	}
	return clone(entry.Value), true, nil
}

// GetTimeToLive reports the remaining lifetime of key.
func (s *Store) GetTimeToLive(ctx context.Context, key string) (kv.TTL, error) {
	entry, ok := s.live(key)
	if !ok {
		return kv.Missing(), nil
	}
	if entry.ExpiresAt.IsZero() {
		return kv.Persistent(), nil
	}
	return kv.Expiring(entry.ExpiresAt.Sub(s.clock.Now())), nil
}

// SetValue inserts or replaces key. The expiry clock starts now.
func (s *Store) SetValue(ctx context.Context, key string, value []byte, ttl kv.TTL) error {
	if !ttl.Writable() {
		return kv.Rejected(key, errors.Wrapf(errInvalidTTL, "got %s", ttl))
	}
	s.Put(key, value, ttl)
	return nil
}

func (s *Store) live(key string) (Entry, bool) {
	s.mu.RLock()
	entry, exists := s.data[key]
	s.mu.RUnlock()

	if !exists {
		return Entry{}, false
	}

	if entry.IsExpired(s.clock.Now()) {
		s.mu.Lock()
		// Re-check, a concurrent writer may have replaced the entry.
		if cur, ok := s.data[key]; ok && cur.IsExpired(s.clock.Now()) {
			delete(s.data, key)
		}
		s.mu.Unlock()
		return Entry{}, false
	}
	return entry, true
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
