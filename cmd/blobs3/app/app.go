package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/galxe/blobs3/internal/cache"
	"github.com/galxe/blobs3/internal/metric"
	"github.com/galxe/blobs3/pkg/access"
	"github.com/galxe/blobs3/pkg/api"
	"github.com/galxe/blobs3/pkg/authz"
	"github.com/galxe/blobs3/pkg/chain"
	"github.com/galxe/blobs3/pkg/common/contracts"
	"github.com/galxe/blobs3/pkg/common/contracts/ethereum"
	"github.com/galxe/blobs3/pkg/config"
	"github.com/galxe/blobs3/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

// App holds all the dependencies
type App struct {
	ctx context.Context
	cfg *config.Config

	redisConn    redis.UniversalClient
	queryCache   *cache.Client
	registry     *chain.Registry
	monitor      *chain.Monitor
	rules        *access.RuleSet
	engine       *authz.Engine
	store        storage.ObjectStore
	apiServer    *api.Server
	metricServer *metric.Server
}

// New creates a new application instance
func New(ctx context.Context, cfg *config.Config) *App {
	return &App{
		ctx: ctx,
		cfg: cfg,
	}
}

// Engine returns the authorization engine built by InitAuthorizer
func (a *App) Engine() *authz.Engine {
	return a.engine
}

// Store returns the object store built by InitStorage
func (a *App) Store() storage.ObjectStore {
	return a.store
}

// Registry returns the chain registry built by InitAuthorizer
func (a *App) Registry() *chain.Registry {
	return a.registry
}

// Run starts every service and blocks until ctx is done or a server fails
func (a *App) Run() error {
	if err := a.InitAuthorizer(); err != nil {
		return err
	}
	if err := a.InitStorage(); err != nil {
		return err
	}
	if err := a.initAPI(); err != nil {
		return err
	}
	a.metricServer = metric.New(nil)

	if err := a.StartMonitor(); err != nil {
		return fmt.Errorf("failed to start health monitor: %w", err)
	}

	errChan := make(chan error, 2)
	go func() {
		if err := a.metricServer.Start(); err != nil {
			metric.RecordError("metric_server_start_failed")
			errChan <- fmt.Errorf("metric server: %w", err)
		}
	}()
	go func() {
		if err := a.apiServer.Start(); err != nil {
			metric.RecordError("api_server_start_failed")
			errChan <- fmt.Errorf("api server: %w", err)
		}
	}()

	log.Info().Strs("chains", a.registry.Names()).Int("rules", a.rules.Len()).Msg("blobs3 started")

	select {
	case <-a.ctx.Done():
		return nil
	case err := <-errChan:
		return err
	}
}

// InitAuthorizer loads chains and rules and builds the engine
func (a *App) InitAuthorizer() error {
	if err := a.initCache(); err != nil {
		return err
	}

	defs, err := config.LoadChainDefinitions(a.cfg.BlockchainConfig)
	if err != nil {
		metric.RecordError("config_load_failed")
		return fmt.Errorf("failed to load chain definitions: %w", err)
	}
	a.registry, err = chain.NewRegistryFromConfig(a.ctx, defs, a.dial)
	if err != nil {
		metric.RecordError("chain_dial_failed")
		return fmt.Errorf("failed to initialize chains: %w", err)
	}

	a.monitor, err = chain.NewMonitor(&chain.MonitorConfig{
		Registry:     a.registry,
		LockTimeout:  a.cfg.Monitor.LockTimeout,
		ProbeTimeout: a.cfg.Monitor.ProbeTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize health monitor: %w", err)
	}

	if a.cfg.AccessConfig == "" {
		return fmt.Errorf("%w: access config path is empty", config.ErrInvalidConfig)
	}
	a.rules, err = access.LoadRulesFile(a.cfg.AccessConfig)
	if err != nil {
		metric.RecordError("config_load_failed")
		return fmt.Errorf("failed to load access rules: %w", err)
	}

	a.engine, err = authz.NewEngine(&authz.Config{Rules: a.rules, Chains: a.registry})
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	return nil
}

// StartMonitor starts the health monitor. Every monitored chain has been
// probed once when it returns.
func (a *App) StartMonitor() error {
	return a.monitor.Start(a.ctx)
}

// InitStorage builds the configured object store
func (a *App) InitStorage() error {
	switch a.cfg.Storage.Driver {
	case "memory":
		a.store = storage.NewMemStore()
	default:
		s3Store, err := storage.NewS3Store(a.ctx, &storage.S3Config{
			Region:       a.cfg.Storage.Region,
			Endpoint:     a.cfg.Storage.Endpoint,
			UsePathStyle: a.cfg.Storage.UsePathStyle,
		})
		if err != nil {
			metric.RecordError("storage_init_failed")
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		a.store = s3Store
	}
	return nil
}

func (a *App) initCache() error {
	if !a.cfg.Cache.Enabled || a.queryCache != nil {
		return nil
	}
	var err error
	a.redisConn, a.queryCache, err = cache.InitCache(a.ctx, a.cfg.Cache.EnvPrefix)
	if err != nil {
		metric.RecordError("cache_init_failed")
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	return nil
}

func (a *App) dial(ctx context.Context, def chain.Definition) (contracts.ChainClient, error) {
	client, err := ethereum.Dial(ctx, &ethereum.Config{
		Name:     def.Name,
		Endpoint: def.Endpoint,
		ChainID:  def.ChainID,
	})
	if err != nil {
		return nil, err
	}
	if a.queryCache == nil {
		return client, nil
	}
	cached, err := ethereum.NewCachedClient(def.Name, client, a.queryCache, a.cfg.Cache.TTL)
	if err != nil {
		client.Close()
		return nil, err
	}
	return cached, nil
}

func (a *App) initAPI() error {
	handler, err := api.NewHandler(&api.Config{
		Engine:  a.engine,
		Chains:  a.registry,
		Store:   a.store,
		MaxSkew: a.cfg.Auth.MaxSkew,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize API handler: %w", err)
	}
	if len(a.cfg.HTTP.CorsAllowedOrigins) == 0 {
		log.Warn().Msg("No CORS origins configured, cross-origin requests are rejected")
	}
	a.apiServer, err = api.NewServer(&api.ServerConfig{
		Handler:            handler,
		Host:               a.cfg.HTTP.Host,
		Port:               a.cfg.HTTP.Port,
		CorsAllowedOrigins: a.cfg.HTTP.CorsAllowedOrigins,
		RequestsPerSecond:  a.cfg.RateLimit.RequestsPerSecond,
		Burst:              a.cfg.RateLimit.Burst,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize API server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the application. The monitor is stopped exactly once.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if a.apiServer != nil {
		if err := a.apiServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("api server: %w", err))
		}
	}
	if a.metricServer != nil {
		if err := a.metricServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric server: %w", err))
		}
	}
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.registry != nil {
		if err := a.registry.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.redisConn != nil {
		if err := a.redisConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
