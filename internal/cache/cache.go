package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coocood/freecache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	minSleep = 50 * time.Millisecond
)

var (
	// ErrTimeout is get from cache timeout error
	ErrTimeout = errors.New("timeout")
)

// PassThroughFunc is the actual call to underlying data source
type PassThroughFunc = func() (interface{}, error)

// PassThroughExpireFunc is the actual call to underlying data source while
// returning a duration as expire timer
type PassThroughExpireFunc = func() (interface{}, time.Duration, error)

// Cache defines interface to cache
type Cache interface {
	// Get returns value of f while caching in memory and redis
	// Inputs:
	// queryKey	 - key used in cache
	// target	 - receive the cached value, must be pointer
	// expire 	 - expiration of cache key
	// f		 - actual call that hits underlying data source
	Get(ctx context.Context, queryKey string, target interface{}, expire time.Duration, f PassThroughFunc) error

	// GetWithExpire returns value of f while caching in memory and redis
	// Inputs:
	// queryKey	 - key used in cache
	// target	 - receive the cached value, must be pointer
	// f		 - actual call that hits underlying data source, sets expire duration
	GetWithExpire(ctx context.Context, queryKey string, target interface{}, f PassThroughExpireFunc) error

	// Set explicitly set a cache key to a val
	Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error

	// Invalidate explicitly invalidates cache keys
	Invalidate(ctx context.Context, keys ...string) error
}

// Options tunes a Client
type Options struct {
	// ReadThroughPerKeyLimit is how long a fill lock is held
	ReadThroughPerKeyLimit time.Duration
	// MaxWaitingTime bounds how long a caller waits on another caller's fill
	MaxWaitingTime time.Duration
	// InMem is an optional in-process tier consulted before redis
	InMem *freecache.Cache
	// InMemTTL caps how long values stay in InMem
	InMemTTL time.Duration
}

// Client captures redis connection and the optional in-process tier
type Client struct {
	primaryConn            redis.UniversalClient
	inMem                  *freecache.Cache
	inMemTTL               time.Duration
	readThroughPerKeyLimit time.Duration
	maxWaitingTime         time.Duration
}

// NewCache creates a new two tier cache
func NewCache(primaryClient redis.UniversalClient, opts Options) (*Client, error) {
	if primaryClient == nil {
		return nil, fmt.Errorf("[Cache] redis client is nil")
	}
	if opts.ReadThroughPerKeyLimit <= 0 || opts.MaxWaitingTime <= 0 {
		return nil, fmt.Errorf("[Cache] read through limit and max waiting time must be positive")
	}
	if opts.InMem != nil && opts.InMemTTL < time.Second {
		return nil, fmt.Errorf("[Cache] in-memory ttl must be at least one second")
	}
	return &Client{
		primaryConn:            primaryClient,
		inMem:                  opts.InMem,
		inMemTTL:               opts.InMemTTL,
		readThroughPerKeyLimit: opts.ReadThroughPerKeyLimit,
		maxWaitingTime:         opts.MaxWaitingTime,
	}, nil
}

// getNoCache read through using f and populate cache if no error
func (c *Client) getNoCache(ctx context.Context, queryKey string, f PassThroughExpireFunc, v interface{}) error {
	dbres, expire, err := f()
	if err != nil {
		// clear lock key, make other go routine to get lock and set value
		e := c.invalidKey(ctx, lock(queryKey))
		if e != nil {
			log.Err(e).Str("key", queryKey).Str("funcErr", err.Error()).Msg("failed to invalidate cache")
		}
		return err
	}

	bs, e := marshal(dbres)
	if e != nil {
		return e
	}
	e = c.primaryConn.Set(ctx, store(queryKey), bs, expire).Err()
	if e != nil {
		log.Err(e).Str("key", queryKey).Msg("failed to set cache")
	}
	c.setInMem(queryKey, bs, expire)
	return unmarshal(bs, v)
}

func store(key string) string {
	return fmt.Sprintf("#%s#", key)
}

func lock(key string) string {
	return fmt.Sprintf("#%s#_lock", key)
}

func (c *Client) getInMem(queryKey string) ([]byte, bool) {
	if c.inMem == nil {
		return nil, false
	}
	bs, err := c.inMem.Get([]byte(store(queryKey)))
	if err != nil {
		return nil, false
	}
	return bs, true
}

func (c *Client) setInMem(queryKey string, bs []byte, expire time.Duration) {
	if c.inMem == nil {
		return
	}
	ttl := c.inMemTTL
	if expire > 0 && expire < ttl {
		ttl = expire
	}
	seconds := int(ttl / time.Second)
	if seconds <= 0 {
		return
	}
	if err := c.inMem.Set([]byte(store(queryKey)), bs, seconds); err != nil {
		log.Debug().Err(err).Str("key", queryKey).Msg("failed to set in-memory cache")
	}
}

// Get implements Cache interface
func (c *Client) Get(ctx context.Context, queryKey string, target interface{}, expire time.Duration, f PassThroughFunc) error {
	var fn PassThroughExpireFunc = func() (interface{}, time.Duration, error) {
		res, err := f()
		return res, expire, err
	}
	return c.GetWithExpire(ctx, queryKey, target, fn)
}

// GetWithExpire gets cache result, and uses pass through func to set expire time
func (c *Client) GetWithExpire(ctx context.Context, queryKey string, target interface{}, f PassThroughExpireFunc) error {
	if bs, ok := c.getInMem(queryKey); ok {
		return unmarshal(bs, target)
	}

	var waitCtx context.Context
	var waitCtxCancelFunc context.CancelFunc
retry:
	res, e := c.primaryConn.Get(ctx, store(queryKey)).Bytes()
	// not found
	if e != nil {
		if !errors.Is(e, redis.Nil) {
			log.Err(e).Str("key", queryKey).Msg("failed to get from cache")
			return c.getNoCache(ctx, queryKey, f, target)
		}

		// Empty cache, obtain lock first to query the data source.
		// If the holder fails or times out, another caller obtains the lock after the limit.
		updated, err := c.primaryConn.SetNX(ctx, lock(queryKey), "", c.readThroughPerKeyLimit).Result()
		if err != nil {
			log.Err(err).Str("key", queryKey).Msg("failed to set cache lock")
			return c.getNoCache(ctx, queryKey, f, target)
		}
		if updated {
			return c.getNoCache(ctx, queryKey, f, target)
		}
		// Did not obtain lock, sleep and retry to wait for update
		if waitCtx == nil {
			waitCtx, waitCtxCancelFunc = context.WithTimeout(ctx, c.maxWaitingTime)
			defer waitCtxCancelFunc()
		}

		select {
		case <-ctx.Done():
			return ErrTimeout
		case <-time.After(minSleep):
			goto retry
		case <-waitCtx.Done():
			return ErrTimeout
		}
	}

	if ttl, err := c.primaryConn.TTL(ctx, store(queryKey)).Result(); err == nil {
		c.setInMem(queryKey, res, ttl)
	}
	return unmarshal(res, target)
}

// Invalidate implements Cache interface
func (c *Client) Invalidate(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if c.inMem != nil {
			c.inMem.Del([]byte(store(key)))
		}
		if err := c.invalidKey(ctx, lock(key), store(key)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) invalidKey(ctx context.Context, keys ...string) error {
	return c.primaryConn.Del(ctx, keys...).Err()
}

// Set implements Cache interface
func (c *Client) Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error {
	bs, e := marshal(val)
	if e != nil {
		return e
	}
	if e = c.primaryConn.Set(ctx, store(key), bs, ttl).Err(); e != nil {
		return e
	}
	c.setInMem(key, bs, ttl)
	return nil
}

// marshal copy from https://github.com/go-redis/cache/blob/v8/cache.go#L331
// remove compression
func marshal(value interface{}) ([]byte, error) {
	switch value := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return value, nil
	case string:
		return []byte(value), nil
	}

	return msgpack.Marshal(value)
}

// unmarshal copy from https://github.com/go-redis/cache/blob/v8/cache.go#L369
func unmarshal(b []byte, value interface{}) error {
	if len(b) == 0 {
		return nil
	}

	switch value := value.(type) {
	case nil:
		return nil
	case *[]byte:
		clone := make([]byte, len(b))
		copy(clone, b)
		*value = clone
		return nil
	case *string:
		*value = string(b)
		return nil
	}

	return msgpack.Unmarshal(b, value)
}
