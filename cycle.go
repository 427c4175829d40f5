package prefetch

import (
	"context"
	"encoding/json"
)

// Cycle bundles the per-request/render instances: one Client with its own
// cache and one DataStore. Construct a fresh Cycle per cycle and discard it
// afterwards; no state is shared through package-level variables and no
// teardown is required.
type Cycle struct {
	Client *Client
	Store  *DataStore
}

// NewCycle constructs a fresh Client and an empty DataStore.
func NewCycle(options ...Option) *Cycle {
	return &Cycle{
		Client: New(options...),
		Store:  NewDataStore(),
	}
}

// Prefetch returns the value stored under key when present — the hydration
// consumer path, served without touching the network — and otherwise issues
// a GET for path, records the decoded payload under key and returns it.
func (cy *Cycle) Prefetch(ctx context.Context, key, path string, opts *RequestOptions) (any, error) {
	if value, ok := cy.Store.Get(key); ok {
		return value, nil
	}
	resp, err := cy.Client.Get(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	cy.Store.Set(key, resp.Data)
	if cy.Client.metrics != nil {
		cy.Client.metrics.RecordHydrationKeys(cy.Store.Len())
	}
	return resp.Data, nil
}

// Dehydrate serializes the store for transport to the consuming process. The
// payload is one flat JSON object, keys in insertion order, suitable for
// embedding at the well-known location the counterpart reads at startup.
func (cy *Cycle) Dehydrate() ([]byte, error) {
	return json.Marshal(cy.Store)
}

// Hydrate merges a payload produced by Dehydrate into the store. Call it
// before any read of the cycle's own data.
func (cy *Cycle) Hydrate(data []byte) error {
	return json.Unmarshal(data, cy.Store)
}
