package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bricksync/backend/internal/domain/credential"
	"github.com/bricksync/backend/internal/domain/marketplace"
)

// BrickOwlAdapter implements the marketplace port against the BrickOwl API.
// Authentication is a single API key sent as the key query parameter. The
// provider has no response envelope: HTTP status is the only failure signal,
// and error bodies carry an error object.
type BrickOwlAdapter struct {
	credentials CredentialSource
	limiter     Limiter
	transport   *Transport
	logger      *zap.Logger
	baseURL     string
}

var _ marketplace.Marketplace = (*BrickOwlAdapter)(nil)

// NewBrickOwlAdapter creates a BrickOwl adapter
func NewBrickOwlAdapter(credentials CredentialSource, limiter Limiter, transport *Transport, logger *zap.Logger) *BrickOwlAdapter {
	return &BrickOwlAdapter{
		credentials: credentials,
		limiter:     limiter,
		transport:   transport,
		logger:      logger,
		baseURL:     BrickOwlAPIBaseURL,
	}
}

// Provider returns the provider code this adapter handles
func (a *BrickOwlAdapter) Provider() marketplace.ProviderCode {
	return marketplace.ProviderCodeBrickOwl
}

// config assembles a request config from the tenant's decrypted credentials
func (a *BrickOwlAdapter) config(ctx context.Context, tenantID uuid.UUID) (*BrickOwlConfig, error) {
	fields, err := a.credentials.DecryptedFields(ctx, tenantID, marketplace.ProviderCodeBrickOwl)
	if err != nil {
		return nil, err
	}
	cfg := NewBrickOwlConfig(fields[credential.FieldAPIKey])
	cfg.APIBaseURL = a.baseURL
	if err := cfg.Validate(); err != nil {
		return nil, marketplace.NewAppError(marketplace.ProviderCodeBrickOwl,
			marketplace.ErrorCodeInvalidCredentials, err.Error())
	}
	return cfg, nil
}

// call executes one admitted logical call and decodes the JSON body into out
func (a *BrickOwlAdapter) call(ctx context.Context, tenantID uuid.UUID, path string, query map[string]string, out any) error {
	cfg, err := a.config(ctx, tenantID)
	if err != nil {
		return err
	}

	if err := a.limiter.Admit(ctx, tenantID, marketplace.ProviderCodeBrickOwl); err != nil {
		return err
	}

	result, err := a.transport.Do(ctx, &callRequest{
		Provider:   marketplace.ProviderCodeBrickOwl,
		Idempotent: true,
		ParseError: parseBrickOwlError,
		Build: func(ctx context.Context) (*http.Request, error) {
			values := url.Values{}
			values.Set("key", cfg.APIKey)
			for k, v := range query {
				values.Set(k, v)
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.APIBaseURL+path+"?"+values.Encode(), nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Accept", "application/json")
			return req, nil
		},
	})
	if err != nil {
		a.limiter.ReportFailure(ctx, tenantID, marketplace.ProviderCodeBrickOwl)
		return err
	}

	if out != nil {
		if err := decodeBody(result.Body, out); err != nil {
			a.limiter.ReportFailure(ctx, tenantID, marketplace.ProviderCodeBrickOwl)
			appErr := marketplace.NewAppError(marketplace.ProviderCodeBrickOwl,
				marketplace.ErrorCodeInvalidResponse, err.Error())
			appErr.WithCorrelationID(result.CorrelationID)
			return appErr
		}
	}

	a.limiter.ReportSuccess(ctx, tenantID, marketplace.ProviderCodeBrickOwl)
	return nil
}

// TestConnection verifies the API key with the cheapest authenticated read
func (a *BrickOwlAdapter) TestConnection(ctx context.Context, tenantID uuid.UUID) error {
	var out json.RawMessage
	return a.call(ctx, tenantID, "/order/list", map[string]string{"limit": "1"}, &out)
}

// PullOrders pulls orders changed since the request's Since time. The
// provider filters server side on a unix list timestamp.
func (a *BrickOwlAdapter) PullOrders(ctx context.Context, req *marketplace.OrderPullRequest) ([]marketplace.RemoteOrder, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	query := map[string]string{}
	if !req.Since.IsZero() {
		query["list_timestamp"] = sinceParam(req.Since)
	}

	var raw []boOrder
	if err := a.call(ctx, req.TenantID, "/order/list", query, &raw); err != nil {
		return nil, err
	}

	orders := make([]marketplace.RemoteOrder, 0, len(raw))
	for i := range raw {
		order, err := normalizeBrickOwlOrder(&raw[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

// GetOrder retrieves a single order by its provider order ID
func (a *BrickOwlAdapter) GetOrder(ctx context.Context, tenantID uuid.UUID, externalOrderID string) (*marketplace.RemoteOrder, error) {
	var raw boOrder
	if err := a.call(ctx, tenantID, "/order/view", map[string]string{"order_id": externalOrderID}, &raw); err != nil {
		if appErr := marketplace.AsAppError(err); appErr != nil && appErr.Code == marketplace.ErrorCodeNotFound {
			return nil, marketplace.ErrOrderNotFound
		}
		return nil, err
	}
	return normalizeBrickOwlOrder(&raw)
}

// GetOrderItems retrieves the full line item set for an order
func (a *BrickOwlAdapter) GetOrderItems(ctx context.Context, tenantID uuid.UUID, externalOrderID string) ([]marketplace.RemoteOrderItem, error) {
	var raw []boOrderItem
	if err := a.call(ctx, tenantID, "/order/items", map[string]string{"order_id": externalOrderID}, &raw); err != nil {
		if appErr := marketplace.AsAppError(err); appErr != nil && appErr.Code == marketplace.ErrorCodeNotFound {
			return nil, marketplace.ErrOrderNotFound
		}
		return nil, err
	}
	return normalizeBrickOwlItems(raw)
}
