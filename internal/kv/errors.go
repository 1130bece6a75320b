package kv

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectivity is the kind of every failure to reach the store.
	ErrConnectivity = errors.New("store unreachable")
	// ErrWriteRejected is the kind of a write the store refused
	// (out of memory, wrong type at key, read-only replica).
	ErrWriteRejected = errors.New("write rejected")
	// ErrReadRejected is the kind of a read the store refused, typically a
	// key holding a type other than a plain string.
	ErrReadRejected = errors.New("read rejected")
)

// OpError records a failed store operation. It matches both its Kind and
// the underlying cause with errors.Is.
type OpError struct {
	Op   string // "list", "get", "ttl" or "set"
	Key  string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %q: %v: %v", e.Op, e.Key, e.Kind, e.Err)
}

func (e *OpError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Unreachable wraps err as a connectivity failure of op on key.
func Unreachable(op, key string, err error) error {
	return &OpError{Op: op, Key: key, Kind: ErrConnectivity, Err: err}
}

// Rejected wraps err as a write refused by the store.
func Rejected(key string, err error) error {
	return &OpError{Op: "set", Key: key, Kind: ErrWriteRejected, Err: err}
}

// ReadRejected wraps err as a read of key refused by the store.
func ReadRejected(op, key string, err error) error {
	return &OpError{Op: op, Key: key, Kind: ErrReadRejected, Err: err}
}

// IsConnectivity reports whether err is a connectivity failure and is
// therefore worth retrying.
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrConnectivity)
}
