package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monitoredDef(name string) Definition {
	return Definition{Name: name, Endpoint: "http://localhost:8545", ChainID: 1, HealthCheckInterval: 10 * time.Millisecond}
}

func TestProbeTransitions(t *testing.T) {
	client := scripted(
		header(10, 100),
		header(10, 100),
		header(11, 101),
		header(9, 99),
		header(12, 90),
		header(13, 110),
	)
	h := NewHandle(monitoredDef("wyrm"), client)
	assert.False(t, h.Healthy(), "monitored chains start unhealthy")

	ctx := context.Background()
	steps := []struct {
		healthy   bool
		height    uint64
		timestamp uint64
	}{
		{true, 10, 100},
		{false, 10, 100},
		{true, 11, 101},
		{false, 9, 99},
		{false, 12, 90},
		{true, 13, 110},
	}
	for i, step := range steps {
		got := h.probe(ctx, time.Second, time.Second)
		assert.Equal(t, step.healthy, got, "step %d", i)
		status := h.Status()
		assert.Equal(t, step.healthy, status.Healthy, "step %d", i)
		assert.Equal(t, step.height, status.LastBlockHeight, "step %d", i)
		assert.Equal(t, step.timestamp, status.LastBlockTimestamp, "step %d", i)
	}
}

func TestProbeLockTimeout(t *testing.T) {
	client := scripted(header(10, 100), header(11, 101))
	h := NewHandle(monitoredDef("wyrm"), client)
	require.True(t, h.probe(context.Background(), time.Second, time.Second))

	require.True(t, h.lock.TryAcquire(1))
	healthy := h.probe(context.Background(), 20*time.Millisecond, time.Second)
	h.lock.Release(1)

	assert.False(t, healthy)
	assert.False(t, h.Healthy())
	status := h.Status()
	assert.Equal(t, uint64(10), status.LastBlockHeight)
	assert.Equal(t, uint64(100), status.LastBlockTimestamp)
	assert.Equal(t, 1, client.Calls())
}

func TestProbeRPCErrorReleasesLock(t *testing.T) {
	client := &fakeClient{next: func(call int) (*types.Header, error) {
		if call == 1 {
			return header(5, 50), nil
		}
		return nil, errors.New("connection refused")
	}}
	h := NewHandle(monitoredDef("wyrm"), client)
	require.True(t, h.probe(context.Background(), time.Second, time.Second))

	assert.False(t, h.probe(context.Background(), time.Second, time.Second))
	assert.False(t, h.Healthy())
	assert.Equal(t, uint64(5), h.Status().LastBlockHeight)

	require.True(t, h.lock.TryAcquire(1), "lock must be released after an RPC failure")
	h.lock.Release(1)
}

func TestProbeRPCTimeout(t *testing.T) {
	client := &fakeClient{next: func(call int) (*types.Header, error) {
		return nil, context.DeadlineExceeded
	}}
	h := NewHandle(monitoredDef("wyrm"), client)
	assert.False(t, h.probe(context.Background(), time.Second, time.Millisecond))
}

func TestExemptChainAlwaysHealthy(t *testing.T) {
	def := Definition{Name: "local", Endpoint: "http://localhost:8545", HealthCheckInterval: 0}
	h := NewHandle(def, advancing())
	assert.True(t, h.Exempt())
	assert.True(t, h.Healthy())
	assert.True(t, h.Status().Healthy)

	def.HealthCheckInterval = -time.Second
	assert.True(t, NewHandle(def, advancing()).Healthy())
}

func TestStatusFields(t *testing.T) {
	def := Definition{Name: "wyrm", Endpoint: "https://wyrm.example", ChainID: 322, ProofOfAuthority: true, HealthCheckInterval: 1500 * time.Millisecond}
	status := NewHandle(def, advancing()).Status()
	assert.Equal(t, "https://wyrm.example", status.Endpoint)
	assert.Equal(t, uint64(322), status.ChainID)
	assert.True(t, status.ProofOfAuthority)
	assert.Equal(t, 1.5, status.HealthCheckInterval)
}
