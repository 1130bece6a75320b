package kv

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLWritable(t *testing.T) {
	assert.True(t, Persistent().Writable())
	assert.True(t, Expiring(time.Second).Writable())
	assert.False(t, Expiring(0).Writable(), "zero ttl means already expired")
	assert.False(t, Expiring(-5*time.Second).Writable())
	assert.False(t, Missing().Writable())
}

func TestTTLString(t *testing.T) {
	assert.Equal(t, "persistent", Persistent().String())
	assert.Equal(t, "missing", Missing().String())
	assert.Equal(t, "1m40s", Expiring(100*time.Second).String())
}

func TestSliceKeys(t *testing.T) {
	ctx := context.Background()

	t.Run("yields all keys then stops", func(t *testing.T) {
		it := SliceKeys([]string{"a", "b"})

		var got []string
		for {
			key, ok, err := it.Next(ctx)
			require.NoError(t, err)
			if !ok {
				break
			}
			got = append(got, key)
		}
		assert.Equal(t, []string{"a", "b"}, got)

		_, ok, err := it.Next(ctx)
		assert.NoError(t, err)
		assert.False(t, ok, "exhausted iterator stays exhausted")
	})

	t.Run("empty listing", func(t *testing.T) {
		_, ok, err := EmptyKeys.Next(ctx)
		assert.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestOpErrorMatchesKindAndCause(t *testing.T) {
	err := Unreachable("get", "k1", io.ErrUnexpectedEOF)

	assert.True(t, errors.Is(err, ErrConnectivity))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.False(t, errors.Is(err, ErrWriteRejected))
	assert.True(t, IsConnectivity(err))
	assert.Contains(t, err.Error(), `get "k1"`)

	rejected := Rejected("k2", errors.New("OOM command not allowed"))
	assert.True(t, errors.Is(rejected, ErrWriteRejected))
	assert.False(t, IsConnectivity(rejected))

	listErr := Unreachable("list", "", io.EOF)
	assert.Equal(t, "list: store unreachable: EOF", listErr.Error())
}
