package api

import (
	"context"
	"fmt"
	"time"

	"github.com/galxe/blobs3/pkg/access"
	"github.com/galxe/blobs3/pkg/chain"
	"github.com/galxe/blobs3/pkg/storage"
)

const defaultMaxBodySize = 32 << 20

// Authorizer defines the authorization decision the handler needs
type Authorizer interface {
	Authorize(ctx context.Context, user string, accessType access.AccessType, path string) (access.Rule, bool, error)
}

// HealthReporter defines the chain health view the handler needs
type HealthReporter interface {
	HealthStatus() map[string]chain.Status
}

type Config struct {
	Engine Authorizer
	Chains HealthReporter
	Store  storage.ObjectStore
	// MaxSkew bounds the distance between a signed timestamp and now
	MaxSkew time.Duration
	// MaxBodySize limits uploaded blobs; zero means 32MiB
	MaxBodySize int64
}

// Handler handles HTTP requests
type Handler struct {
	engine      Authorizer
	chains      HealthReporter
	store       storage.ObjectStore
	maxSkew     time.Duration
	maxBodySize int64
	now         func() time.Time
}

func NewHandler(cfg *Config) (*Handler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("[API] config is nil")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("[API] engine is nil")
	}
	if cfg.Chains == nil {
		return nil, fmt.Errorf("[API] chains is nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("[API] store is nil")
	}
	if cfg.MaxSkew <= 0 {
		return nil, fmt.Errorf("[API] max skew must be positive")
	}
	maxBodySize := cfg.MaxBodySize
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	return &Handler{
		engine:      cfg.Engine,
		chains:      cfg.Chains,
		store:       cfg.Store,
		maxSkew:     cfg.MaxSkew,
		maxBodySize: maxBodySize,
		now:         time.Now,
	}, nil
}
