package httpapi

import "tracknote/internal/domain"

// UpsertResponse returns the store-assigned ID for a saved order.
type UpsertResponse struct {
	PersistedID string `json:"persistedId"`
}

// StateUpdateRequest asks for a lifecycle transition on one order. ID may be
// a persisted ID or an identity.
type StateUpdateRequest struct {
	ID         string  `json:"id"`
	State      string  `json:"currentState"`
	ExecutedAt int64   `json:"executedAt,omitempty"` // Unix ms
	MergedAt   int64   `json:"mergedAt,omitempty"`   // Unix ms
	MergeToID  string  `json:"mergeToId,omitempty"`
	EntryPrice float64 `json:"entryPrice,omitempty"`
}

// MergeRequestJSON asks the store to consolidate the identified orders.
type MergeRequestJSON struct {
	Instrument   string          `json:"instrument"`
	ComponentIDs []string        `json:"componentOrderIds"`
	Holding      *domain.Holding `json:"holding,omitempty"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status string `json:"status"`
	Feed   string `json:"feed"`
}
