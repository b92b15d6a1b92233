package marketplace

import (
	"context"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Marketplace Port Interface
// ---------------------------------------------------------------------------

// Marketplace defines the port interface for external marketplaces.
// It follows the Ports & Adapters pattern: the interface lives in the domain
// layer and concrete implementations (BrickLink, BrickOwl) live in the
// infrastructure layer.
type Marketplace interface {
	// Provider returns the provider code this adapter handles
	Provider() ProviderCode

	// TestConnection verifies the tenant's credentials against the provider
	// with a cheap authenticated read. Returns a normalized error on failure.
	TestConnection(ctx context.Context, tenantID uuid.UUID) error

	// PullOrders pulls orders changed since the request's Since time
	PullOrders(ctx context.Context, req *OrderPullRequest) ([]RemoteOrder, error)

	// GetOrder retrieves a single order by its provider order ID
	GetOrder(ctx context.Context, tenantID uuid.UUID, externalOrderID string) (*RemoteOrder, error)

	// GetOrderItems retrieves the full line item set for an order
	GetOrderItems(ctx context.Context, tenantID uuid.UUID, externalOrderID string) ([]RemoteOrderItem, error)
}

// WebhookRegistrar is implemented by providers that support push
// notifications. Registration is idempotent on the provider side.
type WebhookRegistrar interface {
	// RegisterWebhook points the provider's push notifications at callbackURL
	RegisterWebhook(ctx context.Context, tenantID uuid.UUID, callbackURL string) error
}

// Registry provides access to configured marketplace adapters by code
type Registry interface {
	// Get returns the adapter for the given provider code
	Get(provider ProviderCode) (Marketplace, error)

	// List returns all registered adapters
	List() []Marketplace
}
