// Package engine coordinates one reconciliation pass: pairing the broker
// feed against the persisted store, classifying what is new, and tracking
// fills and merges.
package engine

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"tracknote/internal/domain"
	"tracknote/internal/feed"
	"tracknote/internal/reconcile"
	"tracknote/internal/store"
	"tracknote/internal/track"
	"tracknote/internal/util"
)

// Engine orchestrates reconciliation between the broker feed and the order
// store. Feed and store reads degrade to empty views; only writes fail a
// pass.
type Engine struct {
	feed    feed.BrokerFeed
	orders  store.OrderStore
	journal *store.ParquetJournal // optional

	assigner   *reconcile.Assigner
	directions *reconcile.DirectionResolver
	classifier *reconcile.MainOrderClassifier
	tracker    *track.Tracker
	guard      *util.FetchGuard

	log *slog.Logger
}

// NewEngine creates an engine wired with the given dependencies. journal may
// be nil to disable pass journaling; minFetchInterval bounds how often the
// preorder backlog is re-fetched.
func NewEngine(f feed.BrokerFeed, orders store.OrderStore, journal *store.ParquetJournal, minFetchInterval time.Duration) *Engine {
	directions := reconcile.NewDirectionResolver()
	return &Engine{
		feed:       f,
		orders:     orders,
		journal:    journal,
		assigner:   reconcile.NewAssigner(),
		directions: directions,
		classifier: reconcile.NewMainOrderClassifier(directions),
		tracker:    track.NewTracker(orders),
		guard:      util.NewFetchGuard(minFetchInterval),
		log:        slog.Default().With("component", "engine"),
	}
}

// Tracker exposes the engine's tracker, mainly for clock pinning in tests.
func (e *Engine) Tracker() *track.Tracker { return e.tracker }

// PassReport summarizes one reconciliation pass.
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

// Reconcile runs one full pass:
//
//  1. Read the broker's open orders and holdings.
//  2. Pair feed orders against stored records and carry tracking data over.
//  3. Assign identities to unmatched feed orders and classify them.
//  4. Mark exit-position orders against holdings and link brackets.
//  5. Persist the main new-position orders as preorders.
//  6. Surface the preorder backlog no longer visible at the broker.
//  7. Detect fills and merge newly bought orders.
func (e *Engine) Reconcile(ctx context.Context) (PassReport, error) {
	report := PassReport{PassID: uuid.NewString(), StartedAt: time.Now()}
	defer func() {
		report.Duration = time.Since(report.StartedAt)
		mtxPasses.Inc()
		mtxPassDuration.Set(report.Duration.Seconds())
		e.journalPass(report)
	}()

	// 1. Broker view. An unreachable feed leaves nothing to reconcile.
	feedOrders, err := e.feed.CurrentOrders(ctx)
	if err != nil {
		e.log.Warn("feed orders unavailable, skipping pass", "err", err)
		return report, nil
	}
	holdings, err := e.feed.CurrentHoldings(ctx)
	if err != nil {
		e.log.Warn("feed holdings unavailable, continuing without", "err", err)
		holdings = nil
	}

	// 2. Stored view. A failed read means everything looks new; that is
	// safe because Upsert is keyed by identity.
	stored, err := e.orders.FetchAll(ctx)
	if err != nil {
		e.log.Warn("store read failed, treating all feed orders as new", "err", err)
		stored = nil
	}
	for _, o := range stored {
		if o.Direction != domain.DirectionUnknown {
			e.directions.SetHint(o.Instrument, o.Direction)
		}
	}

	// 3. Pair and carry tracking data over.
	res := reconcile.Match(feedOrders, stored)
	report.Matched = len(res.Matches)
	mtxMatched.Add(float64(report.Matched))

	working := make([]*domain.Order, 0, len(feedOrders))
	for _, m := range res.Matches {
		working = append(working, reconcile.MergeOrderData(m.Source, m.Target))
	}

	// 4. New feed orders get identities and a main/sub classification.
	newOrders := res.UnmatchedSource
	report.NewOrders = len(newOrders)
	for _, o := range newOrders {
		e.assigner.Assign(o)
	}
	for _, o := range newOrders {
		o.IsMainOrder = e.classifier.IsMainOrder(o, feedOrders)
		if o.IsMainOrder {
			report.MainOrders++
		}
		working = append(working, o)
	}

	// 5. Holdings decide new-position vs exit; then link brackets.
	report.ExitOrders = reconcile.ApplyHoldings(working, holdings)
	mtxExitOrders.Set(float64(report.ExitOrders))
	reconcile.BuildRelationships(working)

	// 6. Persist the main new-position orders.
	saved, err := e.saveMainOrders(ctx, newOrders)
	report.Saved = saved
	if err != nil {
		return report, err
	}

	// 7. Preorders gone from the broker's open orders still await fills;
	// surface them for the tracking step.
	report.Backlog = len(e.PreorderBacklog(ctx, feedOrders))

	// 8. Fill detection and merging against the same holdings snapshot.
	trackRes := e.tracker.ProcessHoldings(ctx, holdings)
	report.Executed = trackRes.Executed
	report.Merged = trackRes.Merged
	mtxExecuted.Add(float64(trackRes.Executed))
	mtxMerged.Add(float64(trackRes.Merged))
	e.journalPositions(trackRes.Positions)

	e.log.Info("pass complete",
		"passId", report.PassID,
		"matched", report.Matched,
		"new", report.NewOrders,
		"saved", report.Saved,
		"exits", report.ExitOrders,
		"backlog", report.Backlog,
		"executed", report.Executed,
		"merged", report.Merged,
		"elapsed", time.Since(report.StartedAt).Round(time.Millisecond),
	)
	return report, nil
}

// saveMainOrders persists the main new-position entry orders as preorders.
// Exit orders and sub-orders are not persisted: the engine tracks entries,
// and their brackets travel with them as sub-order identities.
func (e *Engine) saveMainOrders(ctx context.Context, newOrders []*domain.Order) (int, error) {
	saved := 0
	for _, o := range newOrders {
		if !e.shouldPersist(o) {
			continue
		}

		o.State = domain.StatePreorder
		o.SavedAt = time.Now()
		if _, err := e.orders.Upsert(ctx, o); err != nil {
			return saved, err
		}
		saved++
		mtxSaved.WithLabelValues("main").Inc()

		e.log.Info("preorder saved",
			"id", o.Identity,
			"instrument", o.Instrument,
			"side", o.Side,
			"quantity", domain.QuantityOf(o),
		)
	}
	return saved, nil
}

// shouldPersist keeps only main entry orders whose side is consistent with
// the position direction: buys for longs, sells for shorts. This drops
// stray classifications where a lone stop or target ended up flagged main.
func (e *Engine) shouldPersist(o *domain.Order) bool {
	if !o.IsMainOrder || o.IsExitPositionOrder {
		return false
	}
	if e.directions.Hint(o.Instrument) == domain.DirectionShort {
		return o.Side.IsSell()
	}
	return o.Side == domain.SideBuy
}

// DetectAndMerge runs fill detection and merging alone, against a fresh
// holdings snapshot. It backs the on-demand detection endpoint.
func (e *Engine) DetectAndMerge(ctx context.Context) (track.TrackResult, error) {
	holdings, err := e.feed.CurrentHoldings(ctx)
	if err != nil {
		e.log.Warn("feed holdings unavailable", "err", err)
		return track.TrackResult{Success: true, Message: "holdings unavailable"}, nil
	}

	res := e.tracker.ProcessHoldings(ctx, holdings)
	mtxExecuted.Add(float64(res.Executed))
	mtxMerged.Add(float64(res.Merged))
	e.journalPositions(res.Positions)
	return res, nil
}

// PreorderBacklog returns the stored preorders that have left the broker's
// open orders, plus those whose broker status is PendingCancel: a pending
// cancellation can still fill. Calls are rate-limited through the fetch
// guard; a suppressed call returns nil immediately instead of blocking.
func (e *Engine) PreorderBacklog(ctx context.Context, openOrders []*domain.Order) []*domain.Order {
	if !e.guard.Acquire() {
		mtxFetchSuppressed.Inc()
		e.log.Debug("backlog fetch suppressed")
		return nil
	}
	defer e.guard.Release()

	preorders, err := e.orders.FetchByState(ctx, domain.StatePreorder)
	if err != nil {
		e.log.Warn("fetching preorder backlog failed", "err", err)
		return nil
	}

	var backlog []*domain.Order
	for _, p := range preorders {
		if p.Instrument == "" || p.Side == "" || domain.QuantityOf(p) <= 0 {
			continue
		}
		if p.Status == domain.StatusPendingCancel || !inOpenOrders(p, openOrders) {
			backlog = append(backlog, p)
		}
	}
	return backlog
}

// inOpenOrders reports whether the preorder is still visible at the broker,
// matched by broker order ID when present, otherwise by instrument, side and
// quantity.
func inOpenOrders(p *domain.Order, open []*domain.Order) bool {
	for _, o := range open {
		if p.BrokerOrderID != "" && o.BrokerOrderID == p.BrokerOrderID {
			return true
		}
		if o.Instrument == p.Instrument && o.Side == p.Side &&
			math.Abs(domain.QuantityOf(o)-domain.QuantityOf(p)) < domain.RelTolerance {
			return true
		}
	}
	return false
}

// journalPass appends the pass summary to the parquet journal, when one is
// configured.
func (e *Engine) journalPass(report PassReport) {
	if e.journal == nil {
		return
	}
	rec := store.PassRecord{
		PassID:     report.PassID,
		Timestamp:  report.StartedAt.UnixMilli(),
		Matched:    int64(report.Matched),
		NewOrders:  int64(report.NewOrders),
		MainOrders: int64(report.MainOrders),
		ExitOrders: int64(report.ExitOrders),
		Executed:   int64(report.Executed),
		Merged:     int64(report.Merged),
		DurationMs: report.Duration.Milliseconds(),
	}
	if err := e.journal.AppendPass(rec); err != nil {
		e.log.Warn("journaling pass failed", "passId", report.PassID, "err", err)
	}
}

// journalPositions appends merged positions to the parquet journal, when one
// is configured.
func (e *Engine) journalPositions(positions []*domain.MergedPosition) {
	if e.journal == nil {
		return
	}
	for _, pos := range positions {
		if err := e.journal.AppendMergedPosition(pos); err != nil {
			e.log.Warn("journaling merged position failed", "mergedId", pos.ID, "err", err)
		}
	}
}
