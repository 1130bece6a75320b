package store

import "time"

// Entry represents a single value held by the in-memory store.
//
// Zero value of ExpiresAt means "no expiration".
type Entry struct {
	Value     []byte
	ExpiresAt time.Time
}

// IsExpired checks whether the entry is expired at the given time.
func (e Entry) IsExpired(now time.Time) bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(e.ExpiresAt)
}
