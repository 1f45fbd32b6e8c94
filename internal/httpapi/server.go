// Package httpapi serves the reconciliation engine's JSON API: order reads
// and writes against the store, on-demand reconciliation and fill detection,
// and Prometheus metrics.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tracknote/internal/domain"
	"tracknote/internal/engine"
	"tracknote/internal/feed"
	"tracknote/internal/store"
)

// Server serves the engine's HTTP API.
type Server struct {
	engine *engine.Engine
	orders store.OrderStore
	feed   feed.BrokerFeed
	log    *slog.Logger
}

// NewServer creates a server over the given engine, store, and feed.
func NewServer(e *engine.Engine, orders store.OrderStore, f feed.BrokerFeed, log *slog.Logger) *Server {
	return &Server{engine: e, orders: orders, feed: f, log: log}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/orders", s.handleListOrders)
	mux.HandleFunc("GET /api/orders/state/{state}", s.handleOrdersByState)
	mux.HandleFunc("POST /api/orders", s.handleUpsertOrder)
	mux.HandleFunc("POST /api/orders/update", s.handleUpdateState)
	mux.HandleFunc("POST /api/orders/merge", s.handleMerge)
	mux.HandleFunc("GET /api/positions/merged", s.handleMergedPositions)
	mux.HandleFunc("POST /api/reconcile", s.handleReconcile)
	mux.HandleFunc("POST /api/detect", s.handleDetect)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// errorStatus maps the engine's failure classes onto HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTransport):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok", Feed: s.feed.Name()})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.FetchAll(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	writeJSON(w, orders)
}

func (s *Server) handleOrdersByState(w http.ResponseWriter, r *http.Request) {
	state := domain.LifecycleState(r.PathValue("state"))
	switch state {
	case domain.StatePreorder, domain.StateBought, domain.StateMerged:
	default:
		writeError(w, http.StatusBadRequest, "unknown state: "+string(state))
		return
	}

	var orders []*domain.Order
	var err error
	if instrument := r.URL.Query().Get("instrument"); instrument != "" {
		orders, err = s.orders.FetchByInstrumentState(r.Context(), instrument, state)
	} else {
		orders, err = s.orders.FetchByState(r.Context(), state)
	}
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	writeJSON(w, orders)
}

func (s *Server) handleUpsertOrder(w http.ResponseWriter, r *http.Request) {
	var order domain.Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		writeError(w, http.StatusBadRequest, "invalid order payload")
		return
	}
	domain.NormalizeOrder(&order)

	pid, err := s.orders.Upsert(r.Context(), &order)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, UpsertResponse{PersistedID: pid})
}

func (s *Server) handleUpdateState(w http.ResponseWriter, r *http.Request) {
	var req StateUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid update payload")
		return
	}

	extra := store.StateUpdate{MergeToID: req.MergeToID, EntryPrice: req.EntryPrice}
	if req.ExecutedAt != 0 {
		extra.ExecutedAt = time.UnixMilli(req.ExecutedAt)
	}
	if req.MergedAt != 0 {
		extra.MergedAt = time.UnixMilli(req.MergedAt)
	}

	err := s.orders.UpdateState(r.Context(), req.ID, domain.LifecycleState(req.State), extra)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequestJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid merge payload")
		return
	}

	components := make([]*domain.Order, 0, len(req.ComponentIDs))
	for _, id := range req.ComponentIDs {
		components = append(components, &domain.Order{Identity: id, Instrument: req.Instrument})
	}

	pos, err := s.orders.Merge(r.Context(), store.MergeRequest{
		Instrument: req.Instrument,
		Components: components,
		Holding:    req.Holding,
	})
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, pos)
}

func (s *Server) handleMergedPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.orders.MergedPositions(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	if positions == nil {
		positions = []*domain.MergedPosition{}
	}
	writeJSON(w, positions)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.Reconcile(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, report)
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.DetectAndMerge(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, res)
}
