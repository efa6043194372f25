// Package server exposes the tracker over HTTP: a JSON API for the
// browser scorekeeping UI plus a WebSocket stream of state and price
// updates.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/phenomenon0/dugout-tracker/pkg/baseball/outcomes"
	"github.com/phenomenon0/dugout-tracker/pkg/baseball/quality"
	"github.com/phenomenon0/dugout-tracker/pkg/baseball/state"
	"github.com/phenomenon0/dugout-tracker/pkg/baseball/teams"
	"github.com/phenomenon0/dugout-tracker/pkg/tracker"
	"github.com/phenomenon0/dugout-tracker/pkg/tracker/metrics"
	"github.com/phenomenon0/dugout-tracker/pkg/tracker/store"
)

// Config wires the server's collaborators.
type Config struct {
	Addr    string
	Manager *tracker.Manager
	Tables  *outcomes.Tables
	Desk    *tracker.OrderDesk
	Advisor *tracker.AdvisorClient
	Store   *store.Store
	Hub     *Hub
	Metrics *metrics.TrackerMetrics

	// DefaultOrderUSDC is the spend when an order omits the amount.
	DefaultOrderUSDC float64
}

// Server is the HTTP API server.
type Server struct {
	cfg        Config
	httpServer *http.Server
}

// New creates the server and its routes.
func New(cfg Config) *Server {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}
	if cfg.DefaultOrderUSDC <= 0 {
		cfg.DefaultOrderUSDC = 10
	}

	s := &Server{cfg: cfg}

	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/teams", s.handleTeams).Methods("GET")

	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleCloseSession).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/events", s.handleEvent).Methods("POST")
	api.HandleFunc("/sessions/{id}/outcomes", s.handleOutcomes).Methods("GET")
	api.HandleFunc("/sessions/{id}/outcomes/apply", s.handleApplyOutcome).Methods("POST")
	api.HandleFunc("/sessions/{id}/quality", s.handleQuality).Methods("GET")
	api.HandleFunc("/sessions/{id}/market", s.handleMarket).Methods("GET")
	api.HandleFunc("/sessions/{id}/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/sessions/{id}/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/sessions/{id}/advice", s.handleAdvice).Methods("GET")
	api.HandleFunc("/sessions/{id}/save", s.handleSave).Methods("POST")
	api.HandleFunc("/sessions/{id}/load", s.handleLoad).Methods("POST")
	api.HandleFunc("/saves/exists", s.handleSaveExists).Methods("GET")

	router.Handle("/metrics", promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{}))
	if cfg.Hub != nil {
		router.HandleFunc("/ws", cfg.Hub.ServeWS)
	}

	// The browser frontend ships from its own origin; mirror the
	// permissive policy the UI was built against.
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      c.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	log.Printf("[HTTP] listening on %s", s.cfg.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// --- Response helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*tracker.Session, bool) {
	id := mux.Vars(r)["id"]
	sess, ok := s.cfg.Manager.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session %s not found", id)
		return nil, false
	}
	return sess, true
}

type sessionResponse struct {
	ID         string                `json:"id"`
	Away       teams.Team            `json:"away"`
	Home       teams.Team            `json:"home"`
	Date       string                `json:"date"`
	State      state.GameState       `json:"state"`
	Prices     tracker.MarketPrices  `json:"prices"`
	Market     *tracker.MarketTokens `json:"market,omitempty"`
	HistoryLen int                   `json:"historyLen"`
	DryRun     bool                  `json:"dryRun"`
}

func (s *Server) sessionResponse(sess *tracker.Session) sessionResponse {
	return sessionResponse{
		ID:         sess.ID,
		Away:       sess.Away,
		Home:       sess.Home,
		Date:       sess.Date.Format("2006-01-02"),
		State:      sess.Machine.Snapshot(),
		Prices:     sess.Prices(),
		Market:     sess.Tokens(),
		HistoryLen: sess.Machine.HistoryLen(),
		DryRun:     s.cfg.Desk != nil && s.cfg.Desk.DryRun(),
	}
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, teams.All())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Away string `json:"away"`
		Home string `json:"home"`
		Date string `json:"date"` // yyyy-mm-dd, defaults to today
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decode request: %v", err)
		return
	}

	date := time.Now()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad date %q: want yyyy-mm-dd", req.Date)
			return
		}
		date = parsed
	}

	sess, err := s.cfg.Manager.Create(r.Context(), req.Away, req.Home, date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	writeJSON(w, http.StatusCreated, s.sessionResponse(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.cfg.Manager.List()
	out := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, s.sessionResponse(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.sessionResponse(sess))
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.cfg.Manager.Close(id) {
		writeError(w, http.StatusNotFound, "session %s not found", id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decode request: %v", err)
		return
	}

	var gs state.GameState
	switch req.Type {
	case "strike":
		gs = sess.Machine.Strike()
		s.cfg.Metrics.RecordGameEvent(string(state.EventStrike))
	case "ball":
		gs = sess.Machine.Ball()
		s.cfg.Metrics.RecordGameEvent(string(state.EventBall))
	case "foul":
		gs = sess.Machine.Foul()
		s.cfg.Metrics.RecordGameEvent(string(state.EventFoul))
	case "undo":
		s.cfg.Metrics.RecordUndo(sess.Machine.HistoryLen())
		gs = sess.Machine.Undo()
	case "reset":
		gs = sess.Machine.Reset()
		sess.SetLastOutcome(nil)
		s.cfg.Metrics.RecordGameEvent(string(state.EventReset))
	default:
		writeError(w, http.StatusBadRequest, "unknown event type %q", req.Type)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":      gs,
		"historyLen": sess.Machine.HistoryLen(),
	})
}

// candidatesFor returns outcome candidates and band thresholds for a
// source at the session's current situation.
func (s *Server) candidatesFor(gs state.GameState, source string) ([]outcomes.PlayOutcome, *quality.Thresholds, error) {
	switch source {
	case "inplay":
		cands := s.cfg.Tables.AllKnownOutcomes(gs.Bases, gs.Outs)
		return cands, quality.Compute(cands, gs.Bases, gs.Outs), nil
	case "basepath":
		cands := s.cfg.Tables.FromFrequencyTable(gs.Bases, gs.Outs, s.cfg.Tables.BasePath)
		return cands, quality.ComputeBasePath(cands, gs.Bases), nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q", source)
	}
}

func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	gs := sess.Machine.Snapshot()
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "all"
	}
	band := quality.Band(r.URL.Query().Get("quality"))
	if band != "" && !band.Valid() {
		writeError(w, http.StatusBadRequest, "unknown quality band %q", band)
		return
	}

	result := make(map[string][]outcomes.PlayOutcome)
	sources := []string{source}
	if source == "all" {
		sources = []string{"inplay", "basepath"}
	}

	for _, src := range sources {
		cands, thresholds, err := s.candidatesFor(gs, src)
		if err != nil {
			writeError(w, http.StatusBadRequest, "%v", err)
			return
		}

		if band != "" {
			if src == "basepath" {
				if band != quality.Bad && band != quality.Neutral && band != quality.Good {
					writeError(w, http.StatusBadRequest, "band %q not valid for base-path outcomes", band)
					return
				}
				cands = thresholds.FilterBasePath(cands, band)
			} else {
				cands = thresholds.Filter(cands, band)
			}
		}

		s.cfg.Metrics.OutcomesOffered.WithLabelValues(src, string(band)).Inc()
		result[src] = cands
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"situation": map[string]interface{}{
			"bases": gs.Bases.Key(),
			"outs":  gs.Outs,
		},
		"outcomes": result,
	})
}

func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	gs := sess.Machine.Snapshot()
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "inplay"
	}

	cands, thresholds, err := s.candidatesFor(gs, source)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	bands := quality.Bands
	if source == "basepath" {
		bands = quality.BasePathBands
	}

	expectations := make(map[quality.Band]quality.BandExpectation, len(bands))
	for _, b := range bands {
		var banded []outcomes.PlayOutcome
		if source == "basepath" {
			banded = thresholds.FilterBasePath(cands, b)
		} else {
			banded = thresholds.Filter(cands, b)
		}
		expectations[b] = quality.Expectation(b, banded)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"situation": map[string]interface{}{
			"bases": gs.Bases.Key(),
			"outs":  gs.Outs,
		},
		"source":       source,
		"thresholds":   thresholds,
		"ranges":       thresholds.Ranges(),
		"expectations": expectations,
	})
}

func (s *Server) handleApplyOutcome(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Source     string `json:"source"` // inplay | basepath
		Descriptor string `json:"descriptor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decode request: %v", err)
		return
	}
	if req.Source != "inplay" && req.Source != "basepath" {
		writeError(w, http.StatusBadRequest, "unknown source %q", req.Source)
		return
	}

	d, err := outcomes.ParseDescriptor(req.Descriptor)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	gs := sess.Machine.Snapshot()
	cands, _, err := s.candidatesFor(gs, req.Source)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	var applied *outcomes.PlayOutcome
	for i := range cands {
		if cands[i].FinalBases == d.FinalBases &&
			cands[i].RunsScored == d.RunsScored &&
			cands[i].OutsGained == d.OutsGained {
			applied = &cands[i]
			break
		}
	}
	if applied == nil {
		writeError(w, http.StatusBadRequest, "outcome %q not available from %s|%d", req.Descriptor, gs.Bases.Key(), gs.Outs)
		return
	}

	var after state.GameState
	if req.Source == "basepath" {
		after = sess.Machine.ApplyBasePathOutcome(applied.Resolved())
		s.cfg.Metrics.RecordGameEvent(string(state.EventBasePathOutcome))
	} else {
		after = sess.Machine.ApplyPlayOutcome(applied.Resolved())
		s.cfg.Metrics.RecordGameEvent(string(state.EventPlayOutcome))
	}
	s.cfg.Metrics.OutcomesApplied.WithLabelValues(req.Source).Inc()
	sess.SetLastOutcome(applied)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":      after,
		"applied":    applied,
		"historyLen": sess.Machine.HistoryLen(),
	})
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"market": sess.Tokens(),
		"prices": sess.Prices(),
	})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if s.cfg.Desk == nil {
		writeError(w, http.StatusServiceUnavailable, "order desk not configured")
		return
	}

	var req struct {
		Side   string  `json:"side"` // home | away
		Amount float64 `json:"amount"`
		Price  float64 `json:"price"` // 0: use latest midpoint
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decode request: %v", err)
		return
	}

	tokens := sess.Tokens()
	if tokens == nil {
		writeError(w, http.StatusConflict, "session has no linked market")
		return
	}

	prices := sess.Prices()
	var tokenID string
	price := req.Price
	switch req.Side {
	case "home":
		tokenID = tokens.HomeTokenID
		if price == 0 {
			price = prices.Home
		}
	case "away":
		tokenID = tokens.AwayTokenID
		if price == 0 {
			price = prices.Away
		}
	default:
		writeError(w, http.StatusBadRequest, "side must be home or away")
		return
	}

	if price == 0 {
		writeError(w, http.StatusConflict, "no price available; supply one explicitly")
		return
	}
	amount := req.Amount
	if amount <= 0 {
		amount = s.cfg.DefaultOrderUSDC
	}

	result, err := s.cfg.Desk.SubmitBuy(r.Context(), tokenID, price, amount, tokens.NegRisk)
	if err != nil {
		var rej *tracker.RejectionError
		if errors.As(err, &rej) {
			writeError(w, http.StatusUnprocessableEntity, "%v", err)
			return
		}
		if s.cfg.Hub != nil {
			s.cfg.Hub.BroadcastError(sess.ID, err, "order")
		}
		writeError(w, http.StatusBadGateway, "%v", err)
		return
	}

	if s.cfg.Hub != nil {
		s.cfg.Hub.BroadcastOrder(sess.ID, result)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.session(w, r); !ok {
		return
	}
	if s.cfg.Desk == nil {
		writeError(w, http.StatusServiceUnavailable, "order desk not configured")
		return
	}

	orders, spend := s.cfg.Desk.Guardrails().DailyStats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dryRun":      s.cfg.Desk.DryRun(),
		"ledger":      s.cfg.Desk.Ledger().Entries(),
		"dailyOrders": orders,
		"dailySpend":  spend,
	})
}

func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if s.cfg.Advisor == nil || !s.cfg.Advisor.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "advisor not configured")
		return
	}

	prices := sess.Prices()
	req := &tracker.AdviceRequest{
		GameState:     sess.Machine.Snapshot(),
		RecentOutcome: sess.LastOutcome(),
		Prices:        &prices,
	}

	advice, err := s.cfg.Advisor.Recommend(r.Context(), req)
	if err != nil {
		// Advisory only: surfaced as a warning, never fatal
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"advice":  nil,
			"warning": err.Error(),
		})
		return
	}

	sess.SetAdvice(advice)
	if s.cfg.Hub != nil {
		s.cfg.Hub.BroadcastAdvice(sess.ID, advice)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"advice": advice})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if s.cfg.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return
	}

	var req struct {
		User string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decode request: %v", err)
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	err := s.cfg.Store.Save(req.User, sess.Away.Code, sess.Home.Code, sess.Date, sess.Machine.Snapshot())
	if err != nil {
		s.cfg.Metrics.RecordSaveOp("save", "error")
		writeError(w, http.StatusInternalServerError, "save: %v", err)
		return
	}

	s.cfg.Metrics.RecordSaveOp("save", "ok")
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if s.cfg.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return
	}

	var req struct {
		User string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decode request: %v", err)
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	saved, err := s.cfg.Store.Load(req.User, sess.Away.Code, sess.Home.Code, sess.Date)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.cfg.Metrics.RecordSaveOp("load", "not-found")
			writeError(w, http.StatusNotFound, "no save for this matchup")
			return
		}
		s.cfg.Metrics.RecordSaveOp("load", "error")
		writeError(w, http.StatusInternalServerError, "load: %v", err)
		return
	}

	// Loading replaces the state wholesale and is not undoable.
	gs := sess.Machine.SetState(saved.State, false)
	s.cfg.Metrics.RecordSaveOp("load", "ok")
	s.cfg.Metrics.RecordGameEvent(string(state.EventSetState))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":   gs,
		"savedAt": saved.SavedAt,
	})
}

func (s *Server) handleSaveExists(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return
	}

	q := r.URL.Query()
	user, away, home := q.Get("user"), q.Get("away"), q.Get("home")
	if user == "" || away == "" || home == "" {
		writeError(w, http.StatusBadRequest, "user, away, and home are required")
		return
	}

	date := time.Now()
	if ds := q.Get("date"); ds != "" {
		parsed, err := time.Parse("2006-01-02", ds)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad date %q: want yyyy-mm-dd", ds)
			return
		}
		date = parsed
	}

	exists, err := s.cfg.Store.Exists(user, away, home, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "check save: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}
