package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/coocood/freecache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galxe/blobs3/internal/cache"
)

func newTestCache(t *testing.T, inMem bool) (*cache.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	opts := cache.Options{
		ReadThroughPerKeyLimit: 100 * time.Millisecond,
		MaxWaitingTime:         3 * time.Second,
	}
	if inMem {
		opts.InMem = freecache.NewCache(1024 * 1024)
		opts.InMemTTL = time.Minute
	}
	c, err := cache.NewCache(client, opts)
	require.NoError(t, err)
	return c, mr
}

func TestGet(t *testing.T) {
	c, _ := newTestCache(t, false)
	ctx := context.Background()
	key := "test_key1"
	value := "test_value1"
	counter := 0
	testFunc := func() (interface{}, error) {
		counter++
		return value, nil
	}

	var v string
	require.NoError(t, c.Get(ctx, key, &v, time.Minute, testFunc))
	assert.Equal(t, 1, counter)
	assert.Equal(t, value, v)

	for i := 0; i < 100; i++ {
		var v string
		require.NoError(t, c.Get(ctx, key, &v, time.Minute, testFunc))
		assert.Equal(t, value, v)
	}
	assert.Equal(t, 1, counter)

	require.NoError(t, c.Invalidate(ctx, key))
	require.NoError(t, c.Get(ctx, key, &v, time.Minute, testFunc))
	assert.Equal(t, 2, counter)
}

func TestGetObject(t *testing.T) {
	type balance struct {
		Token string
		Value string
	}

	c, _ := newTestCache(t, false)
	ctx := context.Background()
	want := balance{Token: "0x49ca1F6801c085ABB165a827baDFD6742a3f8DBc", Value: "1000"}
	counter := 0
	testFunc := func() (interface{}, error) {
		counter++
		return &want, nil
	}

	for i := 0; i < 3; i++ {
		var got balance
		require.NoError(t, c.Get(ctx, "erc20", &got, time.Minute, testFunc))
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 1, counter)
}

func TestCustomExpireGet(t *testing.T) {
	c, mr := newTestCache(t, false)
	ctx := context.Background()

	var v string
	err := c.GetWithExpire(ctx, "expiring", &v, func() (interface{}, time.Duration, error) {
		return "value", 30 * time.Second, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.Equal(t, 30*time.Second, mr.TTL("#expiring#"))

	mr.FastForward(31 * time.Second)
	counter := 0
	err = c.GetWithExpire(ctx, "expiring", &v, func() (interface{}, time.Duration, error) {
		counter++
		return "refreshed", time.Minute, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, counter)
	assert.Equal(t, "refreshed", v)
}

func TestFuncErrorReleasesLock(t *testing.T) {
	c, mr := newTestCache(t, false)
	ctx := context.Background()
	calls := 0
	failing := func() (interface{}, error) {
		calls++
		return nil, errors.New("rpc down")
	}

	var v string
	err := c.Get(ctx, "k", &v, time.Minute, failing)
	require.Error(t, err)
	assert.False(t, mr.Exists("#k#_lock"))
	assert.False(t, mr.Exists("#k#"))

	err = c.Get(ctx, "k", &v, time.Minute, func() (interface{}, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}

func TestInMemoryTier(t *testing.T) {
	c, mr := newTestCache(t, true)
	ctx := context.Background()
	var counter int
	testFunc := func() (interface{}, error) {
		counter++
		return "v", nil
	}

	var v string
	require.NoError(t, c.Get(ctx, "k", &v, time.Minute, testFunc))
	mr.FlushAll()

	// still served in-process after redis lost the key
	require.NoError(t, c.Get(ctx, "k", &v, time.Minute, testFunc))
	assert.Equal(t, "v", v)
	assert.Equal(t, 1, counter)

	require.NoError(t, c.Invalidate(ctx, "k"))
	require.NoError(t, c.Get(ctx, "k", &v, time.Minute, testFunc))
	assert.Equal(t, 2, counter)
}

func TestSet(t *testing.T) {
	c, _ := newTestCache(t, true)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "preset", time.Minute))

	var v string
	err := c.Get(ctx, "k", &v, time.Minute, func() (interface{}, error) {
		t.Fatal("should not read through")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "preset", v)
}

func TestConcurrentReadWait(t *testing.T) {
	c, _ := newTestCache(t, false)
	ctx := context.Background()
	value := "test_value2"
	var counter atomic.Int32
	testFunc := func() (interface{}, error) {
		counter.Add(1)
		time.Sleep(20 * time.Millisecond)
		return value, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var target string
			if err := c.Get(ctx, "test_key2", &target, time.Minute, testFunc); err != nil {
				t.Error(err)
			}
			if target != value {
				t.Error("value should be test_value2")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), counter.Load())
}

func TestGetTimeout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	c, err := cache.NewCache(client, cache.Options{
		ReadThroughPerKeyLimit: 10 * time.Second,
		MaxWaitingTime:         200 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		var target string
		done <- c.Get(ctx, "slow", &target, time.Minute, func() (interface{}, error) {
			close(started)
			<-release
			return "v", nil
		})
	}()

	<-started
	var target string
	err = c.Get(ctx, "slow", &target, time.Minute, func() (interface{}, error) {
		return "other", nil
	})
	assert.ErrorIs(t, err, cache.ErrTimeout)

	close(release)
	assert.NoError(t, <-done)
}

func TestNewCacheValidation(t *testing.T) {
	_, err := cache.NewCache(nil, cache.Options{ReadThroughPerKeyLimit: time.Second, MaxWaitingTime: time.Second})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	_, err = cache.NewCache(client, cache.Options{})
	assert.Error(t, err)
	_, err = cache.NewCache(client, cache.Options{
		ReadThroughPerKeyLimit: time.Second,
		MaxWaitingTime:         time.Second,
		InMem:                  freecache.NewCache(1024 * 1024),
	})
	assert.Error(t, err)
}

func TestInitCache(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("TESTREDIS_HOST", mr.Host())
	t.Setenv("TESTREDIS_PORT", mr.Port())
	t.Setenv("TESTREDIS_CACHE_INMEMTTL", "2s")

	conn, c, err := cache.InitCache(context.Background(), "testredis")
	require.NoError(t, err)
	defer conn.Close()

	var v string
	require.NoError(t, c.Get(context.Background(), "k", &v, time.Minute, func() (interface{}, error) {
		return "v", nil
	}))
	assert.Equal(t, "v", v)
	assert.True(t, mr.Exists("#k#"))
}

func TestInitCacheUnreachable(t *testing.T) {
	t.Setenv("DEADREDIS_HOST", "127.0.0.1")
	t.Setenv("DEADREDIS_PORT", "1")
	_, _, err := cache.InitCache(context.Background(), "deadredis")
	assert.Error(t, err)
}

func TestMaskedConfig(t *testing.T) {
	masked := cache.MaskedConfig(cache.Config{Host: "redis", Port: 6379, Password: "hunter2"})
	assert.Equal(t, "redis", masked.Host)
	assert.NotEqual(t, "hunter2", masked.Password)
}
