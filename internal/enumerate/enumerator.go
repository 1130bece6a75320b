package enumerate

import (
	"context"
	"errors"
	"fmt"

	"kv-migrator/internal/kv"
	"kv-migrator/internal/logs"
	"kv-migrator/internal/metrics"
)

// ErrEnumeration marks a failure to list the source keyspace. It is fatal
// to a migration run.
var ErrEnumeration = errors.New("key enumeration failed")

// Enumerator pulls the key set out of a source handle.
type Enumerator struct {
	logger  *logs.Logger
	metrics *metrics.Registry
}

// NewEnumerator creates a new Enumerator.
func NewEnumerator(logger *logs.Logger, reg *metrics.Registry) *Enumerator {
	return &Enumerator{
		logger:  logger,
		metrics: reg,
	}
}

// Enumerate starts listing source. A failure here happens before any key
// is handed out and is returned wrapped in ErrEnumeration.
func (e *Enumerator) Enumerate(ctx context.Context, source kv.Handle) (*Sequence, error) {
	e.logger.Debug("listing source keys")

	it, err := source.ListKeys(ctx)
	if err != nil {
		e.metrics.Inc(metrics.EnumerationErrorsTotal)
		e.logger.Error("listing source keys failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrEnumeration, err)
	}
	if it == nil {
		it = kv.EmptyKeys
	}
	return &Sequence{it: it, logger: e.logger, metrics: e.metrics}, nil
}

// Sequence is a lazily consumed, counted listing. It is not safe for
// concurrent use; the migration driver reads it from a single goroutine.
type Sequence struct {
	it      kv.KeyIterator
	logger  *logs.Logger
	metrics *metrics.Registry

	seen int
	done bool
}

var (
	_ kv.KeyIterator = (*Sequence)(nil)
	_ kv.Sizer       = (*Sequence)(nil)
)

// Next returns the next key. Errors from the underlying cursor are
// wrapped in ErrEnumeration; after an error or exhaustion Next keeps
// returning ok=false.
func (s *Sequence) Next(ctx context.Context) (string, bool, error) {
	if s.done {
		return "", false, nil
	}

	key, ok, err := s.it.Next(ctx)
	if err != nil {
		s.done = true
		s.metrics.Inc(metrics.EnumerationErrorsTotal)
		s.logger.Error("source key cursor failed", "after_keys", s.seen, "error", err)
		return "", false, fmt.Errorf("%w: %w", ErrEnumeration, err)
	}
	if !ok {
		s.done = true
		s.logger.Debug("listing source keys finished", "keys", s.seen)
		return "", false, nil
	}

	s.seen++
	s.metrics.Inc(metrics.KeysEnumeratedTotal)
	return key, true, nil
}

// Size reports the total key count when the underlying listing knows it.
func (s *Sequence) Size() (int, bool) {
	if sz, ok := s.it.(kv.Sizer); ok {
		return sz.Size()
	}
	return 0, false
}

// Seen is the number of keys handed out so far.
func (s *Sequence) Seen() int {
	return s.seen
}
