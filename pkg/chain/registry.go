package chain

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/galxe/blobs3/pkg/common/contracts"
)

// DialFunc connects to the chain described by def
type DialFunc func(ctx context.Context, def Definition) (contracts.ChainClient, error)

// Registry maps chain names to handles. It is immutable after construction.
type Registry struct {
	chains map[string]*Handle
	names  []string
}

// NewRegistry builds a registry from handles with unique names
func NewRegistry(handles ...*Handle) (*Registry, error) {
	r := &Registry{chains: make(map[string]*Handle, len(handles))}
	for _, h := range handles {
		if h == nil {
			return nil, fmt.Errorf("[Registry] handle is nil")
		}
		if _, ok := r.chains[h.Name()]; ok {
			return nil, fmt.Errorf("[Registry] duplicate chain %q", h.Name())
		}
		r.chains[h.Name()] = h
		r.names = append(r.names, h.Name())
	}
	sort.Strings(r.names)
	return r, nil
}

// NewRegistryFromConfig dials every definition. On failure the clients dialed
// so far are closed.
func NewRegistryFromConfig(ctx context.Context, defs []Definition, dial DialFunc) (*Registry, error) {
	if dial == nil {
		return nil, fmt.Errorf("[Registry] dial func is nil")
	}
	handles := make([]*Handle, 0, len(defs))
	closeAll := func() {
		for _, h := range handles {
			if err := h.client.Close(); err != nil {
				log.Warn().Err(err).Str("chain", h.Name()).Msg("[Registry] failed to close client")
			}
		}
	}
	for _, def := range defs {
		client, err := dial(ctx, def)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("[Registry] failed to dial chain %s: %w", def.Name, err)
		}
		handles = append(handles, NewHandle(def, client))
		log.Info().Str("chain", def.Name).Uint64("chainID", def.ChainID).Msg("[Registry] connected to chain")
	}
	r, err := NewRegistry(handles...)
	if err != nil {
		closeAll()
		return nil, err
	}
	return r, nil
}

// Get returns the handle of the named chain
func (r *Registry) Get(name string) (*Handle, bool) {
	h, ok := r.chains[name]
	return h, ok
}

// Names returns chain names in sorted order
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// HealthStatus returns a snapshot of every chain's health
func (r *Registry) HealthStatus() map[string]Status {
	out := make(map[string]Status, len(r.chains))
	for name, h := range r.chains {
		out[name] = h.Status()
	}
	return out
}

// Close closes all chain clients
func (r *Registry) Close() error {
	var errs []error
	for _, name := range r.names {
		if err := r.chains[name].client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("[Registry] failed to close client for chain %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
