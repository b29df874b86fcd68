package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/galxe/blobs3/pkg/chain"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "blobs3"

// ErrInvalidConfig is returned when a configuration file cannot be used
var ErrInvalidConfig = errors.New("invalid config")

type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// CorsAllowedOrigins lists the origins allowed by the CORS middleware
	CorsAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type AuthConfig struct {
	// MaxSkew bounds the age of a signed request timestamp
	MaxSkew time.Duration `yaml:"max_skew"`
}

type StorageConfig struct {
	// Driver is "s3" or "memory"
	Driver       string `yaml:"driver"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	// TTL of a cached token query result
	TTL time.Duration `yaml:"ttl"`
	// EnvPrefix names the environment variables of the redis connection
	EnvPrefix string `yaml:"env_prefix"`
}

type MonitorConfig struct {
	LockTimeout  time.Duration `yaml:"lock_timeout"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

type LogConfig struct {
	Debug  bool   `yaml:"debug"`
	Format string `yaml:"format"`
}

type Config struct {
	// BlockchainConfig is the path of the chain definitions file
	BlockchainConfig string `yaml:"blockchain_config"`
	// AccessConfig is the path of the authorization rules file
	AccessConfig string `yaml:"access_config"`

	HTTP      HTTPConfig      `yaml:"http"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Logging   LogConfig       `yaml:"logging"`
}

// envOverrides are read from BLOBS3_* variables and win over the file
type envOverrides struct {
	BlockchainConfig   string   `envconfig:"BLOCKCHAIN_CONFIG"`
	AccessConfig       string   `envconfig:"ACCESS_CONFIG"`
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`
	Debug              *bool    `envconfig:"DEBUG"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Auth: AuthConfig{
			MaxSkew: 5 * time.Minute,
		},
		Storage: StorageConfig{
			Driver: "s3",
			Region: "us-east-1",
		},
		Cache: CacheConfig{
			TTL:       30 * time.Second,
			EnvPrefix: "blobs3_redis",
		},
		Monitor: MonitorConfig{
			LockTimeout:  time.Second,
			ProbeTimeout: 10 * time.Second,
		},
		Logging: LogConfig{
			Format: "json",
		},
	}
}

// LoadConfig reads the config file at path, if any, on top of the defaults and
// then applies environment overrides
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		log.Info().Str("path", path).Msg("Loading config file")
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("[Config] failed to read config file: %w", err)
		}
		content := os.ExpandEnv(string(data))
		dec := yaml.NewDecoder(strings.NewReader(content))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if env.BlockchainConfig != "" {
		c.BlockchainConfig = env.BlockchainConfig
	}
	if env.AccessConfig != "" {
		c.AccessConfig = env.AccessConfig
	}
	if len(env.CorsAllowedOrigins) > 0 {
		c.HTTP.CorsAllowedOrigins = env.CorsAllowedOrigins
	}
	if env.Debug != nil {
		c.Logging.Debug = *env.Debug
	}
	return nil
}

// Validate checks the settings every command depends on
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("%w: http port %d", ErrInvalidConfig, c.HTTP.Port)
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("%w: rate limit must be positive", ErrInvalidConfig)
	}
	if c.Auth.MaxSkew <= 0 {
		return fmt.Errorf("%w: auth max_skew must be positive", ErrInvalidConfig)
	}
	switch c.Storage.Driver {
	case "s3", "memory":
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("%w: cache ttl must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChainDefinition is one entry of the chain definitions file
type ChainDefinition struct {
	Endpoint         string `yaml:"endpoint" json:"endpoint"`
	ProofOfAuthority bool   `yaml:"proof_of_authority" json:"proof_of_authority"`
	ChainID          uint64 `yaml:"chain_id" json:"chain_id"`
	// HealthyBlockInterval is in seconds; <= 0 disables monitoring
	HealthyBlockInterval float64 `yaml:"healthy_block_interval" json:"healthy_block_interval"`
}

// ParseChainDefinitions decodes a name -> definition map (YAML or JSON) into
// definitions sorted by name
func ParseChainDefinitions(data []byte) ([]chain.Definition, error) {
	var raw map[string]ChainDefinition
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: chain definitions: %w", ErrInvalidConfig, err)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]chain.Definition, 0, len(names))
	for _, name := range names {
		d := raw[name]
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: chain name is empty", ErrInvalidConfig)
		}
		if d.Endpoint == "" {
			return nil, fmt.Errorf("%w: chain %s has no endpoint", ErrInvalidConfig, name)
		}
		defs = append(defs, chain.Definition{
			Name:                name,
			Endpoint:            d.Endpoint,
			ChainID:             d.ChainID,
			ProofOfAuthority:    d.ProofOfAuthority,
			HealthCheckInterval: time.Duration(d.HealthyBlockInterval * float64(time.Second)),
		})
	}
	return defs, nil
}

// LoadChainDefinitions reads the chain definitions file at path
func LoadChainDefinitions(path string) ([]chain.Definition, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: blockchain config path is empty", ErrInvalidConfig)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[Config] failed to read chain definitions: %w", err)
	}
	return ParseChainDefinitions(data)
}
