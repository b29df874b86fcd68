package chain

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/galxe/blobs3/internal/metric"
	"github.com/galxe/blobs3/pkg/common"
	"github.com/galxe/blobs3/pkg/common/contracts"
)

// Definition is the static configuration of a chain
type Definition struct {
	Name             string
	Endpoint         string
	ChainID          uint64
	ProofOfAuthority bool
	// HealthCheckInterval <= 0 disables monitoring and the chain is always healthy
	HealthCheckInterval time.Duration
}

// Status is a point-in-time copy of a chain's health
type Status struct {
	Endpoint            string  `json:"endpoint"`
	ChainID             uint64  `json:"chain_id"`
	ProofOfAuthority    bool    `json:"proof_of_authority"`
	HealthCheckInterval float64 `json:"health_check_interval"`
	LastBlockHeight     uint64  `json:"last_block_height"`
	LastBlockTimestamp  uint64  `json:"last_block_timestamp"`
	Healthy             bool    `json:"healthy"`
}

type healthState struct {
	height    uint64
	timestamp uint64
	healthy   bool
}

// Handle holds a chain's client and its mutable health state.
// Probes are serialized by lock; readers load the latest snapshot without locking.
type Handle struct {
	def    Definition
	client contracts.ChainClient
	lock   *semaphore.Weighted
	state  atomic.Pointer[healthState]
}

// NewHandle creates a handle in the initial state. Monitored chains start
// unhealthy until their first successful probe.
func NewHandle(def Definition, client contracts.ChainClient) *Handle {
	h := &Handle{
		def:    def,
		client: client,
		lock:   semaphore.NewWeighted(1),
	}
	h.state.Store(&healthState{healthy: false})
	return h
}

func (h *Handle) Name() string {
	return h.def.Name
}

func (h *Handle) Client() contracts.ChainClient {
	return h.client
}

func (h *Handle) Definition() Definition {
	return h.def
}

// Exempt reports whether monitoring is disabled for the chain
func (h *Handle) Exempt() bool {
	return h.def.HealthCheckInterval <= 0
}

// Healthy reports the last observed health. Exempt chains are always healthy.
func (h *Handle) Healthy() bool {
	if h.Exempt() {
		return true
	}
	return h.state.Load().healthy
}

// Status returns a copy of the chain's current health
func (h *Handle) Status() Status {
	s := h.state.Load()
	return Status{
		Endpoint:            h.def.Endpoint,
		ChainID:             h.def.ChainID,
		ProofOfAuthority:    h.def.ProofOfAuthority,
		HealthCheckInterval: h.def.HealthCheckInterval.Seconds(),
		LastBlockHeight:     s.height,
		LastBlockTimestamp:  s.timestamp,
		Healthy:             h.Exempt() || s.healthy,
	}
}

func (h *Handle) markUnhealthy() {
	prev := h.state.Load()
	h.state.Store(&healthState{height: prev.height, timestamp: prev.timestamp, healthy: false})
	metric.RecordChainHealth(h.def.Name, false, prev.height)
}

// probe checks that the chain advanced since the previous probe.
// It returns the resulting health.
func (h *Handle) probe(ctx context.Context, lockTimeout, rpcTimeout time.Duration) bool {
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	if err := h.lock.Acquire(lockCtx, 1); err != nil {
		log.Warn().Err(err).Str("chain", h.def.Name).Msg("[Chain] failed to acquire probe lock")
		h.markUnhealthy()
		return false
	}
	defer h.lock.Release(1)

	rpcCtx, cancelRPC := context.WithTimeout(ctx, rpcTimeout)
	defer cancelRPC()
	start := time.Now()
	height, timestamp, err := common.LatestBlock(rpcCtx, h.client)
	metric.RecordProbeDuration(h.def.Name, time.Since(start))
	if err != nil {
		log.Warn().Err(err).Str("chain", h.def.Name).Msg("[Chain] health probe failed")
		h.markUnhealthy()
		return false
	}

	prev := h.state.Load()
	healthy := height > prev.height && timestamp > prev.timestamp
	h.state.Store(&healthState{height: height, timestamp: timestamp, healthy: healthy})
	metric.RecordChainHealth(h.def.Name, healthy, height)

	if !healthy {
		log.Warn().
			Str("chain", h.def.Name).
			Uint64("height", height).
			Uint64("previousHeight", prev.height).
			Msg("[Chain] chain did not advance")
	} else {
		log.Debug().Str("chain", h.def.Name).Uint64("height", height).Msg("[Chain] chain healthy")
	}
	return healthy
}
