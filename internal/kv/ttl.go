package kv

import (
	"fmt"
	"time"
)

// TTLKind tells how to interpret a TTL.
type TTLKind int

const (
	// TTLMissing means the key was gone when its expiry was read.
	TTLMissing TTLKind = iota
	// TTLPersistent means the key never expires.
	TTLPersistent
	// TTLExpiring means the key expires after TTL.Remaining.
	TTLExpiring
)

func (k TTLKind) String() string {
	switch k {
	case TTLMissing:
		return "missing"
	case TTLPersistent:
		return "persistent"
	case TTLExpiring:
		return "expiring"
	default:
		return fmt.Sprintf("TTLKind(%d)", int(k))
	}
}

// TTL is a point-in-time snapshot of a key's remaining lifetime. It is
// stale as soon as it is read.
type TTL struct {
	Kind      TTLKind
	Remaining time.Duration
}

// Missing is the TTL of a key that no longer exists.
func Missing() TTL { return TTL{Kind: TTLMissing} }

// Persistent is the TTL of a key without expiry.
func Persistent() TTL { return TTL{Kind: TTLPersistent} }

// Expiring is the TTL of a key that expires after d. d may be zero or
// negative when the store reports an already elapsed expiry.
func Expiring(d time.Duration) TTL { return TTL{Kind: TTLExpiring, Remaining: d} }

// Writable reports whether the TTL can be applied to a write: either no
// expiry or a strictly positive remaining duration.
func (t TTL) Writable() bool {
	switch t.Kind {
	case TTLPersistent:
		return true
	case TTLExpiring:
		return t.Remaining > 0
	default:
		return false
	}
}

func (t TTL) String() string {
	if t.Kind == TTLExpiring {
		return t.Remaining.String()
	}
	return t.Kind.String()
}
