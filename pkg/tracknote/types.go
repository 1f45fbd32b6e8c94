package tracknote

import "time"

// Order mirrors the server's order record. Enum-like fields travel as their
// wire strings ("buy"/"sell"/"ss", "limit"/"stop"/"market", "preorder"/
// "bought"/"merged") so importers need nothing beyond this package.
type Order struct {
	Identity      string `json:"tradeNoteId,omitempty"`
	PersistedID   string `json:"persistedId,omitempty"`
	BrokerOrderID string `json:"brokerOrderId,omitempty"`

	Instrument string `json:"instrument"`
	Side       string `json:"side"`
	Kind       string `json:"orderKind"`

	Quantity      float64 `json:"quantity,omitempty"`
	TotalQuantity float64 `json:"totalQuantity,omitempty"`
	Shares        float64 `json:"shares,omitempty"`

	LimitPrice float64 `json:"limitPrice,omitempty"`
	StopPrice  float64 `json:"stopPrice,omitempty"`
	EntryPrice float64 `json:"entryPrice,omitempty"`

	Status string `json:"status,omitempty"`
	State  string `json:"currentState,omitempty"`

	IsMainOrder         bool     `json:"isMainOrder"`
	ParentIdentity      string   `json:"parentOrderId,omitempty"`
	SubOrderIdentities  []string `json:"subOrderIds,omitempty"`
	Direction           string   `json:"positionDirection,omitempty"`
	IsExitPositionOrder bool     `json:"isExitPositionOrder"`

	MergeToID string `json:"mergeToId,omitempty"`

	CatalystData    string `json:"catalystData,omitempty"`
	ReasonData      string `json:"reasonData,omitempty"`
	ReasonCompleted bool   `json:"reasonCompleted,omitempty"`

	Source        string  `json:"source,omitempty"`
	PositionValue float64 `json:"positionValue,omitempty"`

	SavedAt    time.Time `json:"savedAt,omitempty"`
	ExecutedAt time.Time `json:"executedAt,omitempty"`
	MergedAt   time.Time `json:"mergedAt,omitempty"`
}

// MergedPosition mirrors the server's consolidated position record.
type MergedPosition struct {
	ID                  string    `json:"mergedId"`
	Instrument          string    `json:"instrument"`
	CombinedQuantity    float64   `json:"combinedQuantity"`
	WeightedEntryPrice  float64   `json:"weightedEntryPrice"`
	PositionValue       float64   `json:"positionValue,omitempty"`
	ComponentIdentities []string  `json:"componentOrderIds"`
	State               string    `json:"currentState"`
	CreatedAt           time.Time `json:"createdAt"`
}

// PassReport mirrors the server's reconciliation pass summary.
type PassReport struct {
	PassID     string        `json:"passId"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
	Matched    int           `json:"matched"`
	NewOrders  int           `json:"newOrders"`
	MainOrders int           `json:"mainOrders"`
	ExitOrders int           `json:"exitOrders"`
	Saved      int           `json:"saved"`
	Backlog    int           `json:"backlog"`
	Executed   int           `json:"executed"`
	Merged     int           `json:"merged"`
}

// DetectResult mirrors the server's fill-detection outcome.
type DetectResult struct {
	Executed  int               `json:"executed"`
	Merged    int               `json:"merged"`
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Positions []*MergedPosition `json:"positions,omitempty"`
}
