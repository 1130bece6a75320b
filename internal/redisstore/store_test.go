package redisstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"kv-migrator/internal/kv"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	s, err := Dial(context.Background(), Endpoint{URL: "redis://" + mr.Addr()}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func drain(t *testing.T, it kv.KeyIterator) []string {
	t.Helper()
	var keys []string
	for {
		key, ok, err := it.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			return keys
		}
		keys = append(keys, key)
	}
}

func TestStore_GetValue(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	require.NoError(t, mr.Set("a", "1"))

	t.Run("existing key", func(t *testing.T) {
		val, ok, err := s.GetValue(ctx, "a")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("1"), val)
	})

	t.Run("missing key", func(t *testing.T) {
		val, ok, err := s.GetValue(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, val)
	})

	t.Run("wrong type is a rejected read", func(t *testing.T) {
		_, err := mr.Lpush("h", "v")
		require.NoError(t, err)

		_, _, err = s.GetValue(ctx, "h")
		require.Error(t, err)
		assert.True(t, errors.Is(err, kv.ErrReadRejected))
		assert.False(t, kv.IsConnectivity(err))
	})
}

func TestStore_GetTimeToLive(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	require.NoError(t, mr.Set("forever", "v"))
	require.NoError(t, mr.Set("soon", "v"))
	mr.SetTTL("soon", 100*time.Second)

	ttl, err := s.GetTimeToLive(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, kv.Persistent(), ttl)

	ttl, err = s.GetTimeToLive(ctx, "soon")
	require.NoError(t, err)
	assert.Equal(t, kv.TTLExpiring, ttl.Kind)
	assert.Equal(t, 100*time.Second, ttl.Remaining)

	ttl, err = s.GetTimeToLive(ctx, "gone")
	require.NoError(t, err)
	assert.Equal(t, kv.Missing(), ttl)
}

func TestStore_SetValue(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	t.Run("persistent", func(t *testing.T) {
		require.NoError(t, s.SetValue(ctx, "p", []byte("v"), kv.Persistent()))

		got, err := mr.Get("p")
		require.NoError(t, err)
		assert.Equal(t, "v", got)
		assert.Equal(t, time.Duration(0), mr.TTL("p"))
	})

	t.Run("expiring", func(t *testing.T) {
		require.NoError(t, s.SetValue(ctx, "e", []byte("v"), kv.Expiring(1500*time.Millisecond)))
		assert.Equal(t, 1500*time.Millisecond, mr.TTL("e"))

		mr.FastForward(2 * time.Second)
		assert.False(t, mr.Exists("e"))
	})

	t.Run("overwrites existing value and expiry", func(t *testing.T) {
		require.NoError(t, mr.Set("o", "old"))
		mr.SetTTL("o", time.Hour)

		require.NoError(t, s.SetValue(ctx, "o", []byte("new"), kv.Persistent()))

		got, _ := mr.Get("o")
		assert.Equal(t, "new", got)
		assert.Equal(t, time.Duration(0), mr.TTL("o"))
	})

	t.Run("binary safe", func(t *testing.T) {
		raw := []byte{0x00, 0x01, 0xfe, 0xff}
		require.NoError(t, s.SetValue(ctx, "bin", raw, kv.Persistent()))

		val, ok, err := s.GetValue(ctx, "bin")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, raw, val)
	})

	t.Run("unwritable ttl is rejected without a round trip", func(t *testing.T) {
		err := s.SetValue(ctx, "neg", []byte("v"), kv.Expiring(-5*time.Second))
		require.Error(t, err)
		assert.True(t, errors.Is(err, kv.ErrWriteRejected))
		assert.False(t, mr.Exists("neg"))
	})
}

func TestStore_ListKeys(t *testing.T) {
	ctx := context.Background()

	for _, enumeration := range []Enumeration{EnumerateScan, EnumerateKeys} {
		t.Run(string(enumeration), func(t *testing.T) {
			s, mr := newTestStore(t, WithEnumeration(enumeration), WithScanCount(7))

			it, err := s.ListKeys(ctx)
			require.NoError(t, err)
			assert.Empty(t, drain(t, it), "empty database")

			var want []string
			for i := 0; i < 50; i++ {
				key := fmt.Sprintf("key:%02d", i)
				require.NoError(t, mr.Set(key, "v"))
				want = append(want, key)
			}

			it, err = s.ListKeys(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, want, drain(t, it))
		})
	}
}

func TestStore_ServerDown(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	require.NoError(t, s.Ping(ctx))
	mr.Close()

	err := s.Ping(ctx)
	require.Error(t, err)
	assert.True(t, kv.IsConnectivity(err))

	_, err = s.ListKeys(ctx)
	require.Error(t, err)
	assert.True(t, kv.IsConnectivity(err))

	err = s.SetValue(ctx, "k", []byte("v"), kv.Persistent())
	require.Error(t, err)
	assert.True(t, kv.IsConnectivity(err))
}

func TestDial_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Dial(context.Background(), Endpoint{URL: "redis://" + addr, DialTimeout: 100 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, kv.IsConnectivity(err))
}

func TestEndpointOptions(t *testing.T) {
	t.Run("host and default port", func(t *testing.T) {
		opts, err := Endpoint{Host: "cache.local", DB: 3}.Options()
		require.NoError(t, err)
		assert.Equal(t, "cache.local:6379", opts.Addr)
		assert.Equal(t, 3, opts.DB)
	})

	t.Run("host given as uri", func(t *testing.T) {
		opts, err := Endpoint{Host: "redis://:secret@10.0.0.1:6380/2"}.Options()
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.1:6380", opts.Addr)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, 2, opts.DB)
	})

	t.Run("db overrides uri database", func(t *testing.T) {
		opts, err := Endpoint{URL: "redis://10.0.0.1:6380/2", DB: 5}.Options()
		require.NoError(t, err)
		assert.Equal(t, 5, opts.DB)
	})

	t.Run("missing host", func(t *testing.T) {
		_, err := Endpoint{}.Options()
		assert.Error(t, err)
	})

	t.Run("string hides credentials", func(t *testing.T) {
		e := Endpoint{Host: "10.0.0.1", Port: 6380, DB: 1, Password: "secret"}
		assert.Equal(t, "tcp://10.0.0.1:6380/1", e.String())
	})

	t.Run("parse enumeration", func(t *testing.T) {
		e, err := ParseEnumeration("")
		require.NoError(t, err)
		assert.Equal(t, EnumerateScan, e)

		_, err = ParseEnumeration("walk")
		assert.Error(t, err)
	})
}
