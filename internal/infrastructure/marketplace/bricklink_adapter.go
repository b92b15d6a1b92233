package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bricksync/backend/internal/domain/credential"
	"github.com/bricksync/backend/internal/domain/marketplace"
)

// BrickLinkAdapter implements the marketplace port against the BrickLink
// store API. Every call is admitted through the limiter first, signed with
// OAuth 1.0a per attempt, and reported back to the limiter exactly once.
type BrickLinkAdapter struct {
	credentials CredentialSource
	limiter     Limiter
	transport   *Transport
	logger      *zap.Logger
	baseURL     string
}

var (
	_ marketplace.Marketplace      = (*BrickLinkAdapter)(nil)
	_ marketplace.WebhookRegistrar = (*BrickLinkAdapter)(nil)
)

// NewBrickLinkAdapter creates a BrickLink adapter
func NewBrickLinkAdapter(credentials CredentialSource, limiter Limiter, transport *Transport, logger *zap.Logger) *BrickLinkAdapter {
	return &BrickLinkAdapter{
		credentials: credentials,
		limiter:     limiter,
		transport:   transport,
		logger:      logger,
		baseURL:     BrickLinkAPIBaseURL,
	}
}

// Provider returns the provider code this adapter handles
func (a *BrickLinkAdapter) Provider() marketplace.ProviderCode {
	return marketplace.ProviderCodeBrickLink
}

// config assembles a signing config from the tenant's decrypted credentials
func (a *BrickLinkAdapter) config(ctx context.Context, tenantID uuid.UUID) (*BrickLinkConfig, error) {
	fields, err := a.credentials.DecryptedFields(ctx, tenantID, marketplace.ProviderCodeBrickLink)
	if err != nil {
		return nil, err
	}
	cfg := NewBrickLinkConfig(
		fields[credential.FieldConsumerKey],
		fields[credential.FieldConsumerSecret],
		fields[credential.FieldTokenValue],
		fields[credential.FieldTokenSecret],
	)
	cfg.APIBaseURL = a.baseURL
	if err := cfg.Validate(); err != nil {
		return nil, marketplace.NewAppError(marketplace.ProviderCodeBrickLink,
			marketplace.ErrorCodeInvalidCredentials, err.Error())
	}
	return cfg, nil
}

// call executes one admitted, signed, envelope-checked logical call.
// An HTTP 200 whose envelope meta signals failure counts as a failure for
// the limiter, same as a transport-level error.
func (a *BrickLinkAdapter) call(ctx context.Context, tenantID uuid.UUID, method, path string, query map[string]string, body, out any) error {
	cfg, err := a.config(ctx, tenantID)
	if err != nil {
		return err
	}

	if err := a.limiter.Admit(ctx, tenantID, marketplace.ProviderCodeBrickLink); err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			a.limiter.ReportFailure(ctx, tenantID, marketplace.ProviderCodeBrickLink)
			return marketplace.NewAppError(marketplace.ProviderCodeBrickLink,
				marketplace.ErrorCodeUnexpected, "failed to encode request body: "+err.Error())
		}
	}

	requestURL := cfg.APIBaseURL + path
	result, err := a.transport.Do(ctx, &callRequest{
		Provider:   marketplace.ProviderCodeBrickLink,
		Idempotent: method == http.MethodGet || method == http.MethodPut,
		ParseError: parseEnvelopeError,
		Build: func(ctx context.Context) (*http.Request, error) {
			auth, err := cfg.AuthorizationHeader(method, requestURL, query)
			if err != nil {
				return nil, err
			}
			fullURL := requestURL
			if len(query) > 0 {
				values := url.Values{}
				for k, v := range query {
					values.Set(k, v)
				}
				fullURL += "?" + values.Encode()
			}
			var reader *bytes.Reader
			if payload != nil {
				reader = bytes.NewReader(payload)
			} else {
				reader = bytes.NewReader(nil)
			}
			req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", auth)
			req.Header.Set("Accept", "application/json")
			if payload != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			return req, nil
		},
	})
	if err != nil {
		a.limiter.ReportFailure(ctx, tenantID, marketplace.ProviderCodeBrickLink)
		return err
	}

	if err := decodeEnvelope(marketplace.ProviderCodeBrickLink, result.Body, out); err != nil {
		a.limiter.ReportFailure(ctx, tenantID, marketplace.ProviderCodeBrickLink)
		if appErr := marketplace.AsAppError(err); appErr != nil {
			appErr.WithCorrelationID(result.CorrelationID)
		}
		return err
	}

	a.limiter.ReportSuccess(ctx, tenantID, marketplace.ProviderCodeBrickLink)
	return nil
}

// TestConnection verifies the tenant's OAuth credentials with a cheap
// authenticated catalog read
func (a *BrickLinkAdapter) TestConnection(ctx context.Context, tenantID uuid.UUID) error {
	return a.call(ctx, tenantID, http.MethodGet, "/colors", nil, nil, nil)
}

// PullOrders pulls incoming orders. The provider has no changed-since filter,
// so Since is applied client side on the ordered-at timestamp.
func (a *BrickLinkAdapter) PullOrders(ctx context.Context, req *marketplace.OrderPullRequest) ([]marketplace.RemoteOrder, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	query := map[string]string{"direction": "in"}
	if req.IncludeFiled {
		query["filed"] = "true"
	}

	var raw []blOrder
	if err := a.call(ctx, req.TenantID, http.MethodGet, "/orders", query, nil, &raw); err != nil {
		return nil, err
	}

	orders := make([]marketplace.RemoteOrder, 0, len(raw))
	for i := range raw {
		order, err := normalizeBrickLinkOrder(&raw[i])
		if err != nil {
			return nil, err
		}
		if !req.Since.IsZero() && !order.OrderedAt.IsZero() && order.OrderedAt.Before(req.Since) {
			continue
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

// GetOrder retrieves a single order by its provider order ID
func (a *BrickLinkAdapter) GetOrder(ctx context.Context, tenantID uuid.UUID, externalOrderID string) (*marketplace.RemoteOrder, error) {
	var raw blOrder
	if err := a.call(ctx, tenantID, http.MethodGet, "/orders/"+url.PathEscape(externalOrderID), nil, nil, &raw); err != nil {
		if appErr := marketplace.AsAppError(err); appErr != nil && appErr.Code == marketplace.ErrorCodeNotFound {
			return nil, marketplace.ErrOrderNotFound
		}
		return nil, err
	}
	return normalizeBrickLinkOrder(&raw)
}

// GetOrderItems retrieves the full line item set for an order. The provider
// groups lines into batches; the result is flattened.
func (a *BrickLinkAdapter) GetOrderItems(ctx context.Context, tenantID uuid.UUID, externalOrderID string) ([]marketplace.RemoteOrderItem, error) {
	var batches [][]blOrderItem
	if err := a.call(ctx, tenantID, http.MethodGet, "/orders/"+url.PathEscape(externalOrderID)+"/items", nil, nil, &batches); err != nil {
		if appErr := marketplace.AsAppError(err); appErr != nil && appErr.Code == marketplace.ErrorCodeNotFound {
			return nil, marketplace.ErrOrderNotFound
		}
		return nil, err
	}
	return normalizeBrickLinkItems(batches)
}

// RegisterWebhook points the store's push notifications at callbackURL.
// Registration is idempotent on the provider side: re-registering the same
// URL is a no-op there.
func (a *BrickLinkAdapter) RegisterWebhook(ctx context.Context, tenantID uuid.UUID, callbackURL string) error {
	body := map[string]string{"url": callbackURL}
	err := a.call(ctx, tenantID, http.MethodPut, "/settings/notification_callback", nil, body, nil)
	if err == nil {
		a.logger.Info("webhook callback registered",
			zap.String("provider", marketplace.ProviderCodeBrickLink.String()),
			zap.String("tenant_id", tenantID.String()),
		)
	}
	return err
}

// sinceParam formats a time for provider query parameters
func sinceParam(t time.Time) string {
	return strconv.FormatInt(t.UTC().Unix(), 10)
}
