package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// needs a disposable redis, e.g. PEBBLE_TEST_REDIS=redis://localhost:6379/15
func testRedis(t *testing.T) *RedisCache {
	url := os.Getenv("PEBBLE_TEST_REDIS")
	if url == "" {
		t.Skip("PEBBLE_TEST_REDIS not set")
	}
	c, err := NewRedisCache(url, "pebble:test:", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, c.Ping(context.Background()))
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRedisCache_RoundTripAndFlush(t *testing.T) {
	ctx := context.Background()
	c := testRedis(t)

	_, ok, err := c.Get(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))

	val, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), val)

	n, err := c.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok, err = c.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache("not a url", "x:", zerolog.Nop())
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	require.NoError(t, c.Set(context.Background(), "a", []byte("x"), time.Second))
	_, ok, err := c.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, ok)
}
