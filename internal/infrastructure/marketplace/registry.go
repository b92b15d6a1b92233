package marketplace

import (
	"fmt"
	"sort"

	"github.com/bricksync/backend/internal/domain/marketplace"
)

// AdapterRegistry holds the configured marketplace adapters keyed by provider
// code. Registration happens once at startup, lookups are read-only after.
type AdapterRegistry struct {
	adapters map[marketplace.ProviderCode]marketplace.Marketplace
}

var _ marketplace.Registry = (*AdapterRegistry)(nil)

// NewAdapterRegistry creates a registry from the given adapters
func NewAdapterRegistry(adapters ...marketplace.Marketplace) *AdapterRegistry {
	m := make(map[marketplace.ProviderCode]marketplace.Marketplace, len(adapters))
	for _, a := range adapters {
		m[a.Provider()] = a
	}
	return &AdapterRegistry{adapters: m}
}

// Get returns the adapter for the given provider code
func (r *AdapterRegistry) Get(provider marketplace.ProviderCode) (marketplace.Marketplace, error) {
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", marketplace.ErrProviderNotConfigured, provider)
	}
	return adapter, nil
}

// List returns all registered adapters in stable provider order
func (r *AdapterRegistry) List() []marketplace.Marketplace {
	codes := make([]string, 0, len(r.adapters))
	for code := range r.adapters {
		codes = append(codes, code.String())
	}
	sort.Strings(codes)

	out := make([]marketplace.Marketplace, 0, len(codes))
	for _, code := range codes {
		out = append(out, r.adapters[marketplace.ProviderCode(code)])
	}
	return out
}

// Registrar returns the webhook registrar for a provider, or nil when the
// provider does not support push notifications
func (r *AdapterRegistry) Registrar(provider marketplace.ProviderCode) marketplace.WebhookRegistrar {
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil
	}
	registrar, ok := adapter.(marketplace.WebhookRegistrar)
	if !ok {
		return nil
	}
	return registrar
}
