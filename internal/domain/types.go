// Package domain defines the core types shared across the reconciliation
// engine: orders, holdings, merged positions, lifecycle states, and the
// numeric comparison rules used when matching broker data against the
// persisted store.
package domain

import (
	"log/slog"
	"math"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Enums
// ---------------------------------------------------------------------------

// Side is the trade direction of an order.
type Side string

const (
	SideBuy       Side = "buy"
	SideSell      Side = "sell"
	SideShortSell Side = "ss" // broker-reported short-sell action
)

// IsSell reports whether the side reduces or shorts a position (sell or
// short-sell).
func (s Side) IsSell() bool {
	return s == SideSell || s == SideShortSell
}

// OrderKind is the broker order type.
type OrderKind string

const (
	KindLimit  OrderKind = "limit"
	KindStop   OrderKind = "stop"
	KindMarket OrderKind = "market"
)

// Direction is the position direction an order belongs to.
type Direction string

const (
	DirectionLong    Direction = "long"
	DirectionShort   Direction = "short"
	DirectionUnknown Direction = ""
)

// LifecycleState tracks an order through its one-way lifecycle. Transitions
// only ever move forward: preorder → bought → merged.
type LifecycleState string

const (
	StatePreorder LifecycleState = "preorder"
	StateBought   LifecycleState = "bought"
	StateMerged   LifecycleState = "merged"
)

// lifecycleRank orders the states for transition checks.
var lifecycleRank = map[LifecycleState]int{
	StatePreorder: 0,
	StateBought:   1,
	StateMerged:   2,
}

// CanTransition reports whether an order may move from one lifecycle state to
// another. Only strictly forward moves are allowed; there is no reversal.
func CanTransition(from, to LifecycleState) bool {
	f, okF := lifecycleRank[from]
	t, okT := lifecycleRank[to]
	return okF && okT && t > f
}

// StatusPendingCancel is the broker status reported while a cancellation is
// in flight. It is orthogonal to the lifecycle state: an order in
// PendingCancel is still eligible for bought detection.
const StatusPendingCancel = "PendingCancel"

// ---------------------------------------------------------------------------
// Order
// ---------------------------------------------------------------------------

// Order is the central entity of the engine. It carries both broker-feed
// data (instrument, side, kind, prices, status) and engine-assigned data
// (identity, lifecycle state, relationships, classification flags).
type Order struct {
	// Identity is the stable engine-assigned ID ("TN-{instrument}-{digest}").
	// Immutable once assigned.
	Identity string `json:"tradeNoteId,omitempty"`

	// PersistedID is the store-assigned ID, set once the order has been
	// upserted. Empty for orders that only exist in the feed.
	PersistedID string `json:"persistedId,omitempty"`

	// BrokerOrderID is the broker's own order ID from the feed, when known.
	BrokerOrderID string `json:"brokerOrderId,omitempty"`

	Instrument string    `json:"instrument"`
	Side       Side      `json:"side"`
	Kind       OrderKind `json:"orderKind"`

	// Quantity is the canonical share count. Legacy records may instead
	// carry TotalQuantity or Shares; use QuantityOf to read across all three.
	Quantity      float64 `json:"quantity,omitempty"`
	TotalQuantity float64 `json:"totalQuantity,omitempty"`
	Shares        float64 `json:"shares,omitempty"`

	// LimitPrice and StopPrice are optional; zero means absent.
	LimitPrice float64 `json:"limitPrice,omitempty"`
	StopPrice  float64 `json:"stopPrice,omitempty"`

	// EntryPrice is the recorded fill price, when known. Falls back to
	// LimitPrice in weighted-average calculations.
	EntryPrice float64 `json:"entryPrice,omitempty"`

	// Status is the broker-reported status string (e.g. "Submitted",
	// "Filled", "PendingCancel"). Never interpreted as a lifecycle state.
	Status string `json:"status,omitempty"`

	State LifecycleState `json:"currentState,omitempty"`

	IsMainOrder         bool      `json:"isMainOrder"`
	ParentIdentity      string    `json:"parentOrderId,omitempty"`
	SubOrderIdentities  []string  `json:"subOrderIds,omitempty"`
	Direction           Direction `json:"positionDirection,omitempty"`
	IsExitPositionOrder bool      `json:"isExitPositionOrder"`

	// MergeToID back-references the merged position once the order has been
	// consumed by a merge.
	MergeToID string `json:"mergeToId,omitempty"`

	// Journal annotations carried through from the store.
	CatalystData    string `json:"catalystData,omitempty"`
	ReasonData      string `json:"reasonData,omitempty"`
	ReasonCompleted bool   `json:"reasonCompleted,omitempty"`

	// Source tags where the order record originated (feed, manual import).
	// Preserved across merges for duplicate detection.
	Source string `json:"source,omitempty"`

	PositionValue float64 `json:"positionValue,omitempty"`

	SavedAt    time.Time `json:"savedAt,omitempty"`
	ExecutedAt time.Time `json:"executedAt,omitempty"`
	MergedAt   time.Time `json:"mergedAt,omitempty"`
}

// QuantityOf returns the order's share count, reading the legacy fallback
// chain totalQuantity → quantity → shares (first non-zero wins). The chain is
// resolved here, once, so every consumer sees the same value; a debug line is
// emitted when a legacy field engages.
func QuantityOf(o *Order) float64 {
	switch {
	case o.TotalQuantity != 0:
		if o.Quantity == 0 {
			slog.Debug("quantity fallback engaged", "instrument", o.Instrument, "field", "totalQuantity")
		}
		return o.TotalQuantity
	case o.Quantity != 0:
		return o.Quantity
	case o.Shares != 0:
		slog.Debug("quantity fallback engaged", "instrument", o.Instrument, "field", "shares")
		return o.Shares
	}
	return 0
}

// IdentityOf returns the best available ID for store updates, walking the
// fallback chain persistedId → identity → broker order ID.
func IdentityOf(o *Order) string {
	if o.PersistedID != "" {
		return o.PersistedID
	}
	if o.Identity != "" {
		return o.Identity
	}
	return o.BrokerOrderID
}

// EntryPriceOf returns the price used for weighted-average calculations:
// the recorded entry price when present, otherwise the limit price.
func EntryPriceOf(o *Order) float64 {
	if o.EntryPrice != 0 {
		return o.EntryPrice
	}
	return o.LimitPrice
}

// InferredShort reports whether the order opens a short position, inferred
// from its side the way the broker feed reports short entries.
func (o *Order) InferredShort() bool {
	return o.Side.IsSell()
}

// NormalizeOrder canonicalizes a freshly ingested order: upper-cases the
// instrument, folds the legacy quantity fields into Quantity, and derives
// ReasonCompleted from the presence of reason data. Called once at the feed
// and store boundaries.
func NormalizeOrder(o *Order) {
	o.Instrument = strings.ToUpper(o.Instrument)
	if q := QuantityOf(o); q != o.Quantity {
		o.Quantity = q
	}
	if o.ReasonData != "" {
		o.ReasonCompleted = true
	}
}

// ---------------------------------------------------------------------------
// Holding
// ---------------------------------------------------------------------------

// Holding is a broker-reported current position. Negative shares indicate a
// short position; IsShort is an optional explicit override for brokers that
// report shorts with positive share counts.
type Holding struct {
	Instrument string  `json:"instrument"`
	Shares     float64 `json:"shares"`
	IsShort    bool    `json:"isShort,omitempty"`
	AvgPrice   float64 `json:"avgPrice,omitempty"`
}

// Short reports whether the holding is a short position.
func (h *Holding) Short() bool {
	return h.IsShort || h.Shares < 0
}

// AbsShares returns the unsigned share count.
func (h *Holding) AbsShares() float64 {
	return math.Abs(h.Shares)
}

// FindHolding returns the holding for the given instrument, or nil.
func FindHolding(holdings []Holding, instrument string) *Holding {
	for i := range holdings {
		if holdings[i].Instrument == instrument {
			return &holdings[i]
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// MergedPosition
// ---------------------------------------------------------------------------

// MergedPosition is the consolidated record produced when multiple bought
// orders for the same instrument are combined. It is terminal: a merged
// position is never itself merged again.
type MergedPosition struct {
	ID                 string         `json:"mergedId"`
	Instrument         string         `json:"instrument"`
	CombinedQuantity   float64        `json:"combinedQuantity"`
	WeightedEntryPrice float64        `json:"weightedEntryPrice"`
	PositionValue      float64        `json:"positionValue,omitempty"`
	ComponentIdentities []string      `json:"componentOrderIds"`
	State              LifecycleState `json:"currentState"`
	CreatedAt          time.Time      `json:"createdAt"`
}

// ---------------------------------------------------------------------------
// Numeric tolerance
// ---------------------------------------------------------------------------

// RelTolerance is the relative tolerance applied to quantity and price
// comparisons between independently sourced records.
const RelTolerance = 0.001

// FillTolerance is the slack allowed when comparing holding quantities
// against expected fill quantities (1%), absorbing partial-share rounding.
const FillTolerance = 0.01

// ApproxEqual reports whether a and b are equal within RelTolerance,
// relative to the larger magnitude. Exact zero matches only zero.
func ApproxEqual(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= RelTolerance*scale
}
