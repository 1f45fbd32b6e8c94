package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"tracknote/internal/domain"
)

// Compile-time interface check.
var _ OrderStore = (*HTTPStore)(nil)

// HTTPStore implements OrderStore against a remote journal service speaking
// the JSON API under /api. It is the backend of choice when the journal runs
// as its own service and this engine attaches to it.
type HTTPStore struct {
	client *resty.Client
}

// NewHTTPStore creates a store client for the journal service at baseURL.
func NewHTTPStore(baseURL string) *HTTPStore {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "application/json")
	return &HTTPStore{client: client}
}

// Close is a no-op; the underlying HTTP client holds no persistent resources.
func (s *HTTPStore) Close() error { return nil }

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type upsertResponse struct {
	PersistedID string `json:"persistedId"`
}

type stateUpdateRequest struct {
	ID         string `json:"id"`
	State      string `json:"currentState"`
	ExecutedAt int64  `json:"executedAt,omitempty"`
	MergedAt   int64  `json:"mergedAt,omitempty"`
	MergeToID  string `json:"mergeToId,omitempty"`
	EntryPrice float64 `json:"entryPrice,omitempty"`
}

type mergeRequestWire struct {
	Instrument   string          `json:"instrument"`
	ComponentIDs []string        `json:"componentOrderIds"`
	Holding      *domain.Holding `json:"holding,omitempty"`
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// FetchAll returns every order record held by the journal service.
func (s *HTTPStore) FetchAll(ctx context.Context) ([]*domain.Order, error) {
	var orders []*domain.Order
	if err := s.get(ctx, "/api/orders", &orders); err != nil {
		return nil, domain.NewTransportError("fetch all orders", err)
	}
	return orders, nil
}

// FetchByState returns all orders in the given lifecycle state.
func (s *HTTPStore) FetchByState(ctx context.Context, state domain.LifecycleState) ([]*domain.Order, error) {
	var orders []*domain.Order
	if err := s.get(ctx, "/api/orders/state/"+string(state), &orders); err != nil {
		return nil, domain.NewTransportError("fetch orders by state", err)
	}
	return orders, nil
}

// FetchByInstrumentState returns orders for one instrument in the given state.
func (s *HTTPStore) FetchByInstrumentState(ctx context.Context, instrument string, state domain.LifecycleState) ([]*domain.Order, error) {
	var orders []*domain.Order
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("instrument", instrument).
		SetResult(&orders).
		Get("/api/orders/state/" + string(state))
	if err := respError(resp, err); err != nil {
		return nil, domain.NewTransportError("fetch orders by instrument", err)
	}
	return orders, nil
}

// MergedPositions returns the stored merged positions, newest first.
func (s *HTTPStore) MergedPositions(ctx context.Context) ([]*domain.MergedPosition, error) {
	var positions []*domain.MergedPosition
	if err := s.get(ctx, "/api/positions/merged", &positions); err != nil {
		return nil, domain.NewTransportError("fetch merged positions", err)
	}
	return positions, nil
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

// Upsert sends the order to the journal service and records the persisted ID
// it assigns.
func (s *HTTPStore) Upsert(ctx context.Context, order *domain.Order) (string, error) {
	if order.Identity == "" {
		return "", domain.NewValidationError("identity", "order has no identity to key on")
	}

	var out upsertResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(order).
		SetResult(&out).
		Post("/api/orders")
	if err := respError(resp, err); err != nil {
		return "", domain.NewTransportError("upsert order", err)
	}
	order.PersistedID = out.PersistedID
	return out.PersistedID, nil
}

// UpdateState transitions the remote record keyed by persisted ID or
// identity.
func (s *HTTPStore) UpdateState(ctx context.Context, id string, to domain.LifecycleState, extra StateUpdate) error {
	if id == "" {
		return domain.NewValidationError("id", "no usable order id for state update")
	}

	req := stateUpdateRequest{
		ID:         id,
		State:      string(to),
		MergeToID:  extra.MergeToID,
		EntryPrice: extra.EntryPrice,
	}
	if !extra.ExecutedAt.IsZero() {
		req.ExecutedAt = extra.ExecutedAt.UnixMilli()
	}
	if !extra.MergedAt.IsZero() {
		req.MergedAt = extra.MergedAt.UnixMilli()
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/api/orders/update")
	if err := respError(resp, err); err != nil {
		return domain.NewTransportError("update state", err)
	}
	return nil
}

// Merge asks the journal service to consolidate the components server-side,
// keeping the merge a single atomic operation at the storage layer.
func (s *HTTPStore) Merge(ctx context.Context, req MergeRequest) (*domain.MergedPosition, error) {
	if len(req.Components) == 0 {
		return nil, domain.NewValidationError("components", "merge request has no components")
	}

	wire := mergeRequestWire{Instrument: req.Instrument, Holding: req.Holding}
	for _, o := range req.Components {
		id := domain.IdentityOf(o)
		if id == "" {
			return nil, domain.NewValidationError("identity", "merge component has no usable id")
		}
		wire.ComponentIDs = append(wire.ComponentIDs, id)
	}

	var pos domain.MergedPosition
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(wire).
		SetResult(&pos).
		Post("/api/orders/merge")
	if err := respError(resp, err); err != nil {
		return nil, domain.NewTransportError("merge", err)
	}
	return &pos, nil
}

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

func (s *HTTPStore) get(ctx context.Context, path string, out any) error {
	resp, err := s.client.R().SetContext(ctx).SetResult(out).Get(path)
	return respError(resp, err)
}

func respError(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("%s %s: %s", resp.Request.Method, resp.Request.URL, resp.Status())
	}
	return nil
}
