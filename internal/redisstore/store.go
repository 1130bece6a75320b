package redisstore

import (
	"context"
	"fmt"
	"time"

	"kv-migrator/internal/kv"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// Enumeration selects how ListKeys walks the keyspace.
type Enumeration string

const (
	// EnumerateScan streams keys with SCAN, one page at a time.
	EnumerateScan Enumeration = "scan"
	// EnumerateKeys fetches every key at once with a KEYS * script. It
	// buffers the whole keyspace in memory and blocks the server while
	// it runs; suitable for small databases only.
	EnumerateKeys Enumeration = "keys"
)

// ParseEnumeration validates an enumeration name.
func ParseEnumeration(s string) (Enumeration, error) {
	switch e := Enumeration(s); e {
	case EnumerateScan, EnumerateKeys:
		return e, nil
	case "":
		return EnumerateScan, nil
	default:
		return "", fmt.Errorf("unknown enumeration %q (want scan or keys)", s)
	}
}

const defaultScanCount = 1000

var keysScript = redis.NewScript(`return redis.call('KEYS', '*')`)

// Store is a kv.Handle over one Redis database. It is safe for concurrent
// use because the underlying client is.
type Store struct {
	rdb         *redis.Client
	enumeration Enumeration
	scanCount   int64
}

var _ kv.Handle = (*Store)(nil)

type Option func(*Store)

// WithEnumeration sets the ListKeys strategy. Default is EnumerateScan.
func WithEnumeration(e Enumeration) Option {
	return func(s *Store) { s.enumeration = e }
}

// WithScanCount sets the COUNT hint of each SCAN call.
func WithScanCount(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.scanCount = n
		}
	}
}

// New wraps an existing client.
func New(rdb *redis.Client, opts ...Option) *Store {
	s := &Store{
		rdb:         rdb,
		enumeration: EnumerateScan,
		scanCount:   defaultScanCount,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial connects to endpoint and checks it with PING.
func Dial(ctx context.Context, endpoint Endpoint, opts ...Option) (*Store, error) {
	ro, err := endpoint.Options()
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(ro)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, kv.Unreachable("ping", "", errors.Wrapf(err, "connect %s", endpoint))
	}
	return New(rdb, opts...), nil
}

// Client exposes the underlying client.
func (s *Store) Client() *redis.Client {
	return s.rdb
}

// Ping checks the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return s.classify("ping", "", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) ListKeys(ctx context.Context) (kv.KeyIterator, error) {
	if s.enumeration == EnumerateKeys {
		return s.snapshotKeys(ctx)
	}

	it := &scanIterator{store: s}
	// The first page is fetched eagerly so that an unreachable server
	// fails the listing itself rather than the first Next.
	if err := it.fetch(ctx); err != nil {
		return nil, err
	}
	return it, nil
}

func (s *Store) snapshotKeys(ctx context.Context) (kv.KeyIterator, error) {
	res, err := keysScript.Run(ctx, s.rdb, nil).Result()
	if errors.Is(err, redis.Nil) {
		return kv.EmptyKeys, nil
	}
	if err != nil {
		return nil, s.classify("list", "", err)
	}

	switch v := res.(type) {
	case []interface{}:
		if len(v) == 0 {
			return kv.EmptyKeys, nil
		}
		keys := make([]string, 0, len(v))
		for _, item := range v {
			key, ok := item.(string)
			if !ok {
				return nil, kv.ReadRejected("list", "", fmt.Errorf("unexpected key type %T", item))
			}
			keys = append(keys, key)
		}
		return kv.SliceKeys(keys), nil
	default:
		return nil, kv.ReadRejected("list", "", fmt.Errorf("unexpected KEYS reply %T", res))
	}
}

type scanIterator struct {
	store   *Store
	cursor  uint64
	page    []string
	started bool
}

func (it *scanIterator) fetch(ctx context.Context) error {
	keys, cursor, err := it.store.rdb.Scan(ctx, it.cursor, "", it.store.scanCount).Result()
	if err != nil {
		return it.store.classify("list", "", err)
	}
	it.page = keys
	it.cursor = cursor
	it.started = true
	return nil
}

// Next returns keys from the current page and pulls the next page when it
// runs dry. SCAN may report a key more than once.
func (it *scanIterator) Next(ctx context.Context) (string, bool, error) {
	for len(it.page) == 0 {
		if it.started && it.cursor == 0 {
			return "", false, nil
		}
		if err := it.fetch(ctx); err != nil {
			return "", false, err
		}
	}
	key := it.page[0]
	it.page = it.page[1:]
	return key, true, nil
}

func (s *Store) GetValue(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.classify("get", key, err)
	}
	return val, true, nil
}

func (s *Store) GetTimeToLive(ctx context.Context, key string) (kv.TTL, error) {
	// PTTL replies -2 for a missing key and -1 for a key without expiry.
	ms, err := s.rdb.Do(ctx, "PTTL", key).Int64()
	if err != nil {
		return kv.TTL{}, s.classify("ttl", key, err)
	}
	switch {
	case ms == -2:
		return kv.Missing(), nil
	case ms == -1:
		return kv.Persistent(), nil
	default:
		return kv.Expiring(time.Duration(ms) * time.Millisecond), nil
	}
}

func (s *Store) SetValue(ctx context.Context, key string, value []byte, ttl kv.TTL) error {
	if !ttl.Writable() {
		return kv.Rejected(key, fmt.Errorf("refusing to write with ttl %s", ttl))
	}

	var expiration time.Duration
	if ttl.Kind == kv.TTLExpiring {
		expiration = ttl.Remaining
		if expiration < time.Millisecond {
			expiration = time.Millisecond
		}
	}

	if err := s.rdb.Set(ctx, key, value, expiration).Err(); err != nil {
		return s.classify("set", key, err)
	}
	return nil
}

// classify maps go-redis errors onto the kv taxonomy: server error replies
// are rejections, everything else is a connectivity failure.
func (s *Store) classify(op, key string, err error) error {
	var rerr redis.Error
	if errors.As(err, &rerr) {
		if op == "set" {
			return kv.Rejected(key, err)
		}
		return kv.ReadRejected(op, key, err)
	}
	return kv.Unreachable(op, key, err)
}
