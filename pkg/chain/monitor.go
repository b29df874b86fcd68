package chain

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultLockTimeout  = time.Second
	defaultProbeTimeout = 10 * time.Second
)

var (
	// ErrMonitorStopped is returned when starting a monitor that was stopped
	ErrMonitorStopped = errors.New("monitor stopped")
	// ErrMonitorStarted is returned when starting a monitor twice
	ErrMonitorStarted = errors.New("monitor already started")
)

type MonitorConfig struct {
	Registry *Registry
	// LockTimeout bounds how long a probe waits for the chain lock
	LockTimeout time.Duration
	// ProbeTimeout bounds the latest-block RPC of a probe
	ProbeTimeout time.Duration
}

// Monitor periodically probes every monitored chain of a registry
type Monitor struct {
	registry     *Registry
	lockTimeout  time.Duration
	probeTimeout time.Duration

	mu       sync.Mutex
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewMonitor(cfg *MonitorConfig) (*Monitor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	m := &Monitor{
		registry:     cfg.Registry,
		lockTimeout:  cfg.LockTimeout,
		probeTimeout: cfg.ProbeTimeout,
	}
	if m.lockTimeout <= 0 {
		m.lockTimeout = defaultLockTimeout
	}
	if m.probeTimeout <= 0 {
		m.probeTimeout = defaultProbeTimeout
	}
	return m, nil
}

// Start probes every monitored chain once, waits for the results, then
// schedules a repeating probe per chain at its configured interval.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrMonitorStopped
	}
	if m.started {
		return ErrMonitorStarted
	}
	m.started = true

	monitored := m.monitored()
	var initial sync.WaitGroup
	for _, h := range monitored {
		initial.Add(1)
		go func(h *Handle) {
			defer initial.Done()
			h.probe(ctx, m.lockTimeout, m.probeTimeout)
		}(h)
	}
	initial.Wait()

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	for _, h := range monitored {
		m.wg.Add(1)
		go func(h *Handle) {
			defer m.wg.Done()
			m.run(ctx, h)
		}(h)
	}

	log.Info().Int("chains", len(monitored)).Msg("[Monitor] chain health monitoring started")
	return nil
}

func (m *Monitor) run(ctx context.Context, h *Handle) {
	interval := h.Definition().HealthCheckInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("chain", h.Name()).Msgf("[Monitor] Recovered from panic: %v\nStack: %s", r, debug.Stack())
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("chain", h.Name()).Msg("[Monitor] stopping chain probes")
			return
		case <-ticker.C:
			h.probe(ctx, m.lockTimeout, m.probeTimeout)
		}
	}
}

// Stop cancels all probes, waits for in-flight probes and marks every
// monitored chain unhealthy. Only the first call has an effect.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		if m.cancel != nil {
			m.cancel()
		}
		m.mu.Unlock()

		m.wg.Wait()
		for _, h := range m.monitored() {
			h.markUnhealthy()
		}
		log.Info().Msg("[Monitor] chain health monitoring stopped")
	})
}

func (m *Monitor) monitored() []*Handle {
	var out []*Handle
	for _, name := range m.registry.names {
		if h := m.registry.chains[name]; !h.Exempt() {
			out = append(out, h)
		}
	}
	return out
}
