package cache_test

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/ha1tch/minired/pkg/cache"
	"github.com/ha1tch/minired/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCacheSuite(t *testing.T, c cache.Cache) {
	ctx := context.Background()

	t.Run("Miss", func(t *testing.T) {
		_, err := c.Get(ctx, "minired:test:absent")
		assert.ErrorIs(t, err, cache.ErrMiss)

		ok, err := c.Exists(ctx, "minired:test:absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Set and get", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "minired:test:raw", []byte("hola"), time.Minute))

		val, err := c.Get(ctx, "minired:test:raw")
		require.NoError(t, err)
		assert.Equal(t, []byte("hola"), val)

		require.NoError(t, c.Delete(ctx, "minired:test:raw"))
		_, err = c.Get(ctx, "minired:test:raw")
		assert.ErrorIs(t, err, cache.ErrMiss)
	})

	t.Run("JSON round trip", func(t *testing.T) {
		people := []models.Person{{Name: "Ana", City: "Rosario", Hobby: "lectura"}}
		require.NoError(t, cache.SetJSON(ctx, c, "minired:test:people", people, time.Minute))

		got, ok, err := cache.GetJSON[[]models.Person](ctx, c, "minired:test:people")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, people, got)

		_, ok, err = cache.GetJSON[[]models.Person](ctx, c, "minired:test:nothing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Delete pattern", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "minired:test:a", []byte("1"), time.Minute))
		require.NoError(t, c.Set(ctx, "minired:test:b", []byte("2"), time.Minute))
		require.NoError(t, c.Set(ctx, "other:c", []byte("3"), time.Minute))

		require.NoError(t, c.DeletePattern(ctx, "minired:test:*"))

		ok, err := c.Exists(ctx, "minired:test:a")
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = c.Exists(ctx, "minired:test:b")
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = c.Exists(ctx, "other:c")
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, c.Delete(ctx, "other:c"))
	})
}

func TestMemoryCache(t *testing.T) {
	c := cache.NewMemoryCache(16, time.Minute)
	defer c.Close()

	runCacheSuite(t, c)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache(16, 20*time.Millisecond)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	assert.Eventually(t, func() bool {
		_, err := c.Get(ctx, "k")
		return err != nil
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryCache_Eviction(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache(2, time.Minute)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestNoopCache(t *testing.T) {
	ctx := context.Background()
	c := cache.NoopCache{}

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestNew(t *testing.T) {
	c, err := cache.New("memory", 8, time.Minute, "", 0)
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryCache{}, c)

	c, err = cache.New("none", 0, 0, "", 0)
	require.NoError(t, err)
	assert.IsType(t, cache.NoopCache{}, c)

	_, err = cache.New("memcached", 0, 0, "", 0)
	assert.Error(t, err)
}

func TestRedisCache(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	host := os.Getenv("REDIS_TEST_HOST")
	if host == "" {
		t.Skip("REDIS_TEST_HOST not set")
	}
	port := 6379
	if val := os.Getenv("REDIS_TEST_PORT"); val != "" {
		p, err := strconv.Atoi(val)
		require.NoError(t, err)
		port = p
	}

	c, err := cache.NewRedisCache(host, port, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	runCacheSuite(t, c)
}
