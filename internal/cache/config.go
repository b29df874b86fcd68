package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/coocood/freecache"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	mask "github.com/showa-93/go-mask"
)

type Config struct {
	Host                string        `default:"127.0.0.1"`
	Port                int           `default:"6379"`
	Password            string        `default:"" mask:"fixed"`
	IsElastiCache       bool          `default:"false"`
	IsClusterMode       bool          `default:"false"`
	ClusterAddrs        []string      `default:""`
	ClusterMaxRedirects int           `default:"3"`
	ReadTimeout         time.Duration `default:"3s"`
	PoolSize            int           `default:"50"`
}

type LayerConfig struct {
	ReadThroughPerKeyLimit time.Duration `default:"200ms"`
	MaxWaitingTime         time.Duration `default:"3s"`
	InMemCacheSize         int           `default:"52428800"` // base unit in byte: 50 * 1024 * 1024 = 52428800 -> 50MB
	InMemTTL               time.Duration `default:"5s"`
}

// MaskedConfig returns c with secrets replaced, suitable for logging
func MaskedConfig(c Config) Config {
	masker := mask.NewMasker()
	masker.RegisterMaskStringFunc(mask.MaskTypeFilled, masker.MaskFilledString)
	masker.RegisterMaskStringFunc(mask.MaskTypeFixed, masker.MaskFixedString)
	masked, err := masker.Mask(c)
	if err == nil {
		if mc, ok := masked.(Config); ok {
			return mc
		}
	}
	return Config{Host: c.Host, Port: c.Port}
}

// NewRedisClient builds a redis client from environment variables under envPrefix and pings it
func NewRedisClient(ctx context.Context, envPrefix string) (redis.UniversalClient, error) {
	c := Config{}
	if err := envconfig.Process(envPrefix, &c); err != nil {
		return nil, fmt.Errorf("[Cache] failed to process redis config: %w", err)
	}
	conf := MaskedConfig(c)
	log.Warn().Msgf("Redis Config: %+v", conf)

	var redisClient redis.UniversalClient
	if c.IsClusterMode {
		redisClient = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        c.ClusterAddrs,
			MaxRedirects: c.ClusterMaxRedirects,
			ReadTimeout:  c.ReadTimeout,
			PoolSize:     c.PoolSize,
			Password:     c.Password,
		})
	} else {
		option := &redis.Options{
			Addr:        fmt.Sprintf("%s:%d", c.Host, c.Port),
			ReadTimeout: c.ReadTimeout,
			PoolSize:    c.PoolSize,
			Password:    c.Password,
		}
		if c.IsElastiCache {
			// Elasticache cert cannot be applied to cname record we use
			option.TLSConfig = &tls.Config{
				// nolint: gosec
				InsecureSkipVerify: true,
			}
		}
		redisClient = redis.NewClient(option)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("[Cache] failed to connect to redis %s:%d: %w", conf.Host, conf.Port, err)
	}
	return redisClient, nil
}

// InitCache connects to redis and layers an in-process cache in front of it.
// Redis settings come from <envPrefix>_*, layer settings from <envPrefix>_CACHE_*.
func InitCache(ctx context.Context, envPrefix string) (redis.UniversalClient, *Client, error) {
	redisConn, err := NewRedisClient(ctx, envPrefix)
	if err != nil {
		return nil, nil, err
	}

	lc := LayerConfig{}
	if err := envconfig.Process(envPrefix+"_cache", &lc); err != nil {
		redisConn.Close()
		return nil, nil, fmt.Errorf("[Cache] failed to process cache config: %w", err)
	}
	log.Warn().Msgf("Cache Config: %+v", lc)

	c, err := NewCache(redisConn, Options{
		ReadThroughPerKeyLimit: lc.ReadThroughPerKeyLimit,
		MaxWaitingTime:         lc.MaxWaitingTime,
		InMem:                  freecache.NewCache(lc.InMemCacheSize),
		InMemTTL:               lc.InMemTTL,
	})
	if err != nil {
		redisConn.Close()
		return nil, nil, err
	}
	return redisConn, c, nil
}
