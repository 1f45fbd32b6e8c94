package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tracknote/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ OrderStore = (*SQLiteStore)(nil)

// SQLiteStore implements OrderStore backed by an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS orders (
	persisted_id     TEXT PRIMARY KEY,
	identity         TEXT NOT NULL UNIQUE,
	broker_order_id  TEXT NOT NULL DEFAULT '',
	instrument       TEXT NOT NULL,
	side             TEXT NOT NULL,
	kind             TEXT NOT NULL,
	quantity         REAL NOT NULL DEFAULT 0,
	total_quantity   REAL NOT NULL DEFAULT 0,
	shares           REAL NOT NULL DEFAULT 0,
	limit_price      REAL NOT NULL DEFAULT 0,
	stop_price       REAL NOT NULL DEFAULT 0,
	entry_price      REAL NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT 'preorder',
	is_main_order    INTEGER NOT NULL DEFAULT 0,
	parent_identity  TEXT NOT NULL DEFAULT '',
	sub_order_ids    TEXT NOT NULL DEFAULT '[]',
	direction        TEXT NOT NULL DEFAULT '',
	is_exit          INTEGER NOT NULL DEFAULT 0,
	merge_to_id      TEXT NOT NULL DEFAULT '',
	catalyst_data    TEXT NOT NULL DEFAULT '',
	reason_data      TEXT NOT NULL DEFAULT '',
	reason_completed INTEGER NOT NULL DEFAULT 0,
	source           TEXT NOT NULL DEFAULT '',
	position_value   REAL NOT NULL DEFAULT 0,
	saved_at         INTEGER NOT NULL DEFAULT 0,
	executed_at      INTEGER NOT NULL DEFAULT 0,
	merged_at        INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_orders_state ON orders(state);
CREATE INDEX IF NOT EXISTS idx_orders_instrument_state ON orders(instrument, state);

CREATE TABLE IF NOT EXISTS merged_positions (
	merged_id            TEXT PRIMARY KEY,
	instrument           TEXT NOT NULL,
	combined_quantity    REAL NOT NULL,
	weighted_entry_price REAL NOT NULL,
	position_value       REAL NOT NULL DEFAULT 0,
	component_ids        TEXT NOT NULL DEFAULT '[]',
	created_at           INTEGER NOT NULL
);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, runs the
// schema, and returns a ready-to-use store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, domain.NewTransportError("open sqlite", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, domain.NewTransportError("init schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

const orderColumns = `persisted_id, identity, broker_order_id, instrument, side, kind,
	quantity, total_quantity, shares, limit_price, stop_price, entry_price,
	status, state, is_main_order, parent_identity, sub_order_ids, direction,
	is_exit, merge_to_id, catalyst_data, reason_data, reason_completed,
	source, position_value, saved_at, executed_at, merged_at`

// FetchAll returns every stored order record.
func (s *SQLiteStore) FetchAll(ctx context.Context) ([]*domain.Order, error) {
	return s.queryOrders(ctx, "fetch all orders",
		`SELECT `+orderColumns+` FROM orders ORDER BY saved_at`)
}

// FetchByState returns all orders in the given lifecycle state.
func (s *SQLiteStore) FetchByState(ctx context.Context, state domain.LifecycleState) ([]*domain.Order, error) {
	return s.queryOrders(ctx, "fetch orders by state",
		`SELECT `+orderColumns+` FROM orders WHERE state = ? ORDER BY saved_at`, string(state))
}

// FetchByInstrumentState returns orders for one instrument in the given state.
func (s *SQLiteStore) FetchByInstrumentState(ctx context.Context, instrument string, state domain.LifecycleState) ([]*domain.Order, error) {
	return s.queryOrders(ctx, "fetch orders by instrument",
		`SELECT `+orderColumns+` FROM orders WHERE instrument = ? AND state = ? ORDER BY saved_at`,
		instrument, string(state))
}

func (s *SQLiteStore) queryOrders(ctx context.Context, op, query string, args ...any) ([]*domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewTransportError(op, err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, domain.NewTransportError(op, err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewTransportError(op, err)
	}
	return orders, nil
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

// Upsert inserts the order or updates the record sharing its identity. The
// persisted ID of the stored row is returned and recorded on the order.
func (s *SQLiteStore) Upsert(ctx context.Context, order *domain.Order) (string, error) {
	if order.Identity == "" {
		return "", domain.NewValidationError("identity", "order has no identity to key on")
	}
	if order.Instrument == "" {
		return "", domain.NewValidationError("instrument", "order has no instrument")
	}

	pid := order.PersistedID
	if pid == "" {
		pid = uuid.NewString()
	}
	savedAt := order.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	subIDs, _ := json.Marshal(orEmpty(order.SubOrderIdentities))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(identity) DO UPDATE SET
			broker_order_id = excluded.broker_order_id,
			quantity = excluded.quantity,
			total_quantity = excluded.total_quantity,
			shares = excluded.shares,
			limit_price = excluded.limit_price,
			stop_price = excluded.stop_price,
			entry_price = excluded.entry_price,
			status = excluded.status,
			is_main_order = excluded.is_main_order,
			parent_identity = excluded.parent_identity,
			sub_order_ids = excluded.sub_order_ids,
			direction = excluded.direction,
			is_exit = excluded.is_exit,
			catalyst_data = excluded.catalyst_data,
			reason_data = excluded.reason_data,
			reason_completed = excluded.reason_completed,
			source = excluded.source,
			position_value = excluded.position_value`,
		pid, order.Identity, order.BrokerOrderID, order.Instrument,
		string(order.Side), string(order.Kind),
		order.Quantity, order.TotalQuantity, order.Shares,
		order.LimitPrice, order.StopPrice, order.EntryPrice,
		order.Status, string(stateOrDefault(order.State)),
		boolInt(order.IsMainOrder), order.ParentIdentity, string(subIDs),
		string(order.Direction), boolInt(order.IsExitPositionOrder),
		order.MergeToID, order.CatalystData, order.ReasonData,
		boolInt(order.ReasonCompleted), order.Source, order.PositionValue,
		savedAt.UnixMilli(), msOrZero(order.ExecutedAt), msOrZero(order.MergedAt),
	)
	if err != nil {
		return "", domain.NewTransportError("upsert order", err)
	}

	// On conflict the existing row keeps its persisted ID; read it back.
	var storedID string
	err = s.db.QueryRowContext(ctx,
		`SELECT persisted_id FROM orders WHERE identity = ?`, order.Identity).Scan(&storedID)
	if err != nil {
		return "", domain.NewTransportError("upsert order", err)
	}
	order.PersistedID = storedID
	return storedID, nil
}

// UpdateState transitions the order keyed by persisted ID or identity.
// Backward transitions are rejected with a validation error.
func (s *SQLiteStore) UpdateState(ctx context.Context, id string, to domain.LifecycleState, extra StateUpdate) error {
	if id == "" {
		return domain.NewValidationError("id", "no usable order id for state update")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewTransportError("update state", err)
	}
	defer tx.Rollback()

	if err := updateStateTx(ctx, tx, id, to, extra); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.NewTransportError("update state", err)
	}
	return nil
}

func updateStateTx(ctx context.Context, tx *sql.Tx, id string, to domain.LifecycleState, extra StateUpdate) error {
	var current string
	err := tx.QueryRowContext(ctx,
		`SELECT state FROM orders WHERE persisted_id = ? OR identity = ?`, id, id).Scan(&current)
	if err == sql.ErrNoRows {
		return domain.NewValidationError("id", fmt.Sprintf("no order found for %q", id))
	}
	if err != nil {
		return domain.NewTransportError("update state", err)
	}
	if !domain.CanTransition(domain.LifecycleState(current), to) {
		return domain.NewValidationError("state",
			fmt.Sprintf("cannot move %q from %s to %s", id, current, to))
	}

	set := "state = ?"
	args := []any{string(to)}
	if !extra.ExecutedAt.IsZero() {
		set += ", executed_at = ?"
		args = append(args, extra.ExecutedAt.UnixMilli())
	}
	if !extra.MergedAt.IsZero() {
		set += ", merged_at = ?"
		args = append(args, extra.MergedAt.UnixMilli())
	}
	if extra.MergeToID != "" {
		set += ", merge_to_id = ?"
		args = append(args, extra.MergeToID)
	}
	if extra.EntryPrice != 0 {
		set += ", entry_price = ?"
		args = append(args, extra.EntryPrice)
	}
	args = append(args, id, id)

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET `+set+` WHERE persisted_id = ? OR identity = ?`, args...); err != nil {
		return domain.NewTransportError("update state", err)
	}
	return nil
}

// Merge consolidates the component orders into one merged position inside a
// single transaction. Quantities and prices come from the stored records, so
// callers may pass components carrying only an identity. Components already
// consumed by an earlier merge are skipped, so a retried merge does not
// double-count.
func (s *SQLiteStore) Merge(ctx context.Context, req MergeRequest) (*domain.MergedPosition, error) {
	if req.Instrument == "" {
		return nil, domain.NewValidationError("instrument", "merge request has no instrument")
	}
	if len(req.Components) == 0 {
		return nil, domain.NewValidationError("components", "merge request has no components")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.NewTransportError("merge", err)
	}
	defer tx.Rollback()

	// Load each component's stored row and filter to those still in the
	// bought state.
	var live []*domain.Order
	for _, o := range req.Components {
		id := domain.IdentityOf(o)
		if id == "" {
			return nil, domain.NewValidationError("identity", "merge component has no usable id")
		}
		stored := &domain.Order{}
		var state, mergeTo string
		err := tx.QueryRowContext(ctx, `
			SELECT persisted_id, identity, instrument, quantity, total_quantity,
			       shares, entry_price, limit_price, state, merge_to_id
			FROM orders WHERE persisted_id = ? OR identity = ?`,
			id, id).Scan(&stored.PersistedID, &stored.Identity, &stored.Instrument,
			&stored.Quantity, &stored.TotalQuantity, &stored.Shares,
			&stored.EntryPrice, &stored.LimitPrice, &state, &mergeTo)
		if err == sql.ErrNoRows {
			return nil, domain.NewValidationError("id", fmt.Sprintf("merge component %q not stored", id))
		}
		if err != nil {
			return nil, domain.NewTransportError("merge", err)
		}
		if domain.LifecycleState(state) == domain.StateMerged || mergeTo != "" {
			continue
		}
		live = append(live, stored)
	}
	if len(live) == 0 {
		return nil, domain.NewValidationError("components", "all components already merged")
	}

	quantity, price := CombineComponents(live)
	if req.Holding != nil && req.Holding.AvgPrice > 0 {
		price = req.Holding.AvgPrice
	}

	now := time.Now()
	pos := &domain.MergedPosition{
		ID:                 uuid.NewString(),
		Instrument:         req.Instrument,
		CombinedQuantity:   quantity,
		WeightedEntryPrice: price,
		PositionValue:      quantity * price,
		State:              domain.StateMerged,
		CreatedAt:          now,
	}
	for _, o := range live {
		pos.ComponentIdentities = append(pos.ComponentIdentities, domain.IdentityOf(o))
	}

	componentIDs, _ := json.Marshal(pos.ComponentIdentities)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO merged_positions
			(merged_id, instrument, combined_quantity, weighted_entry_price, position_value, component_ids, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		pos.ID, pos.Instrument, pos.CombinedQuantity, pos.WeightedEntryPrice,
		pos.PositionValue, string(componentIDs), now.UnixMilli(),
	); err != nil {
		return nil, domain.NewTransportError("merge", err)
	}

	for _, o := range live {
		id := domain.IdentityOf(o)
		err := updateStateTx(ctx, tx, id, domain.StateMerged,
			StateUpdate{MergedAt: now, MergeToID: pos.ID})
		if err != nil {
			return nil, fmt.Errorf("merging component %q: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.NewTransportError("merge", err)
	}
	return pos, nil
}

// MergedPositions returns the stored merged positions, newest first.
func (s *SQLiteStore) MergedPositions(ctx context.Context) ([]*domain.MergedPosition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT merged_id, instrument, combined_quantity, weighted_entry_price,
		       position_value, component_ids, created_at
		FROM merged_positions ORDER BY created_at DESC`)
	if err != nil {
		return nil, domain.NewTransportError("fetch merged positions", err)
	}
	defer rows.Close()

	var positions []*domain.MergedPosition
	for rows.Next() {
		var p domain.MergedPosition
		var componentIDs string
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.Instrument, &p.CombinedQuantity,
			&p.WeightedEntryPrice, &p.PositionValue, &componentIDs, &createdAt); err != nil {
			return nil, domain.NewTransportError("fetch merged positions", err)
		}
		json.Unmarshal([]byte(componentIDs), &p.ComponentIdentities)
		p.State = domain.StateMerged
		p.CreatedAt = time.UnixMilli(createdAt)
		positions = append(positions, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewTransportError("fetch merged positions", err)
	}
	return positions, nil
}

// ---------------------------------------------------------------------------
// Row helpers
// ---------------------------------------------------------------------------

func scanOrder(rows *sql.Rows) (*domain.Order, error) {
	var o domain.Order
	var side, kind, state, direction, subIDs string
	var isMain, isExit, reasonDone int
	var savedAt, executedAt, mergedAt int64

	err := rows.Scan(
		&o.PersistedID, &o.Identity, &o.BrokerOrderID, &o.Instrument, &side, &kind,
		&o.Quantity, &o.TotalQuantity, &o.Shares,
		&o.LimitPrice, &o.StopPrice, &o.EntryPrice,
		&o.Status, &state, &isMain, &o.ParentIdentity, &subIDs, &direction,
		&isExit, &o.MergeToID, &o.CatalystData, &o.ReasonData, &reasonDone,
		&o.Source, &o.PositionValue, &savedAt, &executedAt, &mergedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Side = domain.Side(side)
	o.Kind = domain.OrderKind(kind)
	o.State = domain.LifecycleState(state)
	o.Direction = domain.Direction(direction)
	o.IsMainOrder = isMain != 0
	o.IsExitPositionOrder = isExit != 0
	o.ReasonCompleted = reasonDone != 0
	json.Unmarshal([]byte(subIDs), &o.SubOrderIdentities)
	o.SavedAt = time.UnixMilli(savedAt)
	if executedAt != 0 {
		o.ExecutedAt = time.UnixMilli(executedAt)
	}
	if mergedAt != 0 {
		o.MergedAt = time.UnixMilli(mergedAt)
	}
	return &o, nil
}

func stateOrDefault(s domain.LifecycleState) domain.LifecycleState {
	if s == "" {
		return domain.StatePreorder
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func msOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
