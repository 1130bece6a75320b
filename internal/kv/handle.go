package kv

import "context"

// Handle is a single connected key-value store.
//
// Implementations must be safe for concurrent use when the migration
// driver runs with more than one worker.
type Handle interface {
	// ListKeys starts enumerating every key in the store.
	ListKeys(ctx context.Context) (KeyIterator, error)

	// GetValue returns the value stored at key. ok is false when the key
	// does not exist (or has already expired).
	GetValue(ctx context.Context, key string) (value []byte, ok bool, err error)

	// GetTimeToLive returns the remaining expiry of key as a snapshot.
	GetTimeToLive(ctx context.Context, key string) (TTL, error)

	// SetValue writes value at key, replacing any previous value.
	// ttl must be persistent or a positive expiring duration.
	SetValue(ctx context.Context, key string, value []byte, ttl TTL) error
}

// KeyIterator yields keys lazily. Next returns ok=false once the listing
// is exhausted. Implementations need not be safe for concurrent use.
type KeyIterator interface {
	Next(ctx context.Context) (key string, ok bool, err error)
}

// Sizer is implemented by listings that know their key count up front,
// such as snapshots. known is false for streaming cursors.
type Sizer interface {
	Size() (n int, known bool)
}

// EmptyKeys is the listing of a store with no keys.
var EmptyKeys KeyIterator = SliceKeys(nil)

// SliceKeys returns an iterator over an in-memory snapshot of keys.
func SliceKeys(keys []string) KeyIterator {
	return &sliceIterator{keys: keys}
}

type sliceIterator struct {
	keys []string
	pos  int
}

func (it *sliceIterator) Size() (int, bool) {
	return len(it.keys), true
}

func (it *sliceIterator) Next(ctx context.Context) (string, bool, error) {
	if it.pos >= len(it.keys) {
		return "", false, nil
	}
	key := it.keys[it.pos]
	it.pos++
	return key, true, nil
}
