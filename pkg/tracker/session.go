// Package tracker owns game sessions: each session ties one game state
// machine to its matchup, market link, price snapshots, and advisor
// recommendations.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phenomenon0/dugout-tracker/pkg/baseball/outcomes"
	"github.com/phenomenon0/dugout-tracker/pkg/baseball/state"
	"github.com/phenomenon0/dugout-tracker/pkg/baseball/teams"
	"github.com/phenomenon0/dugout-tracker/pkg/tracker/metrics"
)

// Session is one tracked game. All game mutation goes through Machine;
// everything else is snapshot state guarded by mu.
type Session struct {
	ID      string
	Away    teams.Team
	Home    teams.Team
	Date    time.Time
	Machine *state.Machine

	mu          sync.RWMutex
	tokens      *MarketTokens
	prices      MarketPrices
	advice      *Advice
	lastOutcome *outcomes.PlayOutcome
	createdAt   time.Time
	cancel      context.CancelFunc
}

// Tokens returns the market token mapping, nil when no market was found.
func (s *Session) Tokens() *MarketTokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// Prices returns the latest price snapshot.
func (s *Session) Prices() MarketPrices {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prices
}

func (s *Session) setPrices(p MarketPrices) {
	s.mu.Lock()
	s.prices = p
	s.mu.Unlock()
}

// Advice returns the last advisor recommendation, nil if none.
func (s *Session) Advice() *Advice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.advice
}

// SetAdvice stores an advisor recommendation.
func (s *Session) SetAdvice(a *Advice) {
	s.mu.Lock()
	s.advice = a
	s.mu.Unlock()
}

// LastOutcome returns the most recently applied outcome, nil if none.
func (s *Session) LastOutcome() *outcomes.PlayOutcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastOutcome
}

// SetLastOutcome stores the most recently applied outcome.
func (s *Session) SetLastOutcome(o *outcomes.PlayOutcome) {
	s.mu.Lock()
	s.lastOutcome = o
	s.mu.Unlock()
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) stopPoller() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ManagerConfig wires the manager's collaborators. Gamma and Prices may
// be nil; sessions then run without a market link.
type ManagerConfig struct {
	Gamma        EventSource
	Prices       PriceSource
	PollInterval time.Duration
	Metrics      *metrics.TrackerMetrics

	// OnState is called after every machine mutation.
	OnState func(sessionID string, gs state.GameState)
	// OnPrices is called after every price poll.
	OnPrices func(sessionID string, p MarketPrices)
}

// Manager owns all live sessions.
type Manager struct {
	cfg ManagerConfig

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session for the matchup. Market discovery failures
// degrade the price status; they never fail the session.
func (m *Manager) Create(ctx context.Context, awayCode, homeCode string, date time.Time) (*Session, error) {
	away, err := teams.Validate(awayCode)
	if err != nil {
		return nil, fmt.Errorf("away team: %w", err)
	}
	home, err := teams.Validate(homeCode)
	if err != nil {
		return nil, fmt.Errorf("home team: %w", err)
	}
	if away.Code == home.Code {
		return nil, fmt.Errorf("away and home team are both %s", away.Code)
	}

	id := uuid.New().String()
	machine := state.NewMachine()

	gs := state.NewGameState()
	gs.AwayTeam = away.Name
	gs.HomeTeam = home.Name
	machine.SetState(gs, false)

	if m.cfg.OnState != nil {
		machine.OnChange(func(snap state.GameState) {
			m.cfg.OnState(id, snap)
		})
	}

	s := &Session{
		ID:        id,
		Away:      away,
		Home:      home,
		Date:      date,
		Machine:   machine,
		prices:    MarketPrices{Status: PriceStatusPending},
		createdAt: time.Now(),
	}

	m.linkMarket(ctx, s)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	m.cfg.Metrics.ActiveSessions.Inc()

	log.Printf("[SESSION] created %s: %s @ %s (%s)", id, away.Code, home.Code, date.Format("2006-01-02"))
	return s, nil
}

// linkMarket resolves the matchup's market and starts the price poller.
func (m *Manager) linkMarket(ctx context.Context, s *Session) {
	if m.cfg.Gamma == nil || m.cfg.Prices == nil {
		s.prices = MarketPrices{Status: PriceStatusNotFound}
		return
	}

	tokens, err := FindMarket(ctx, m.cfg.Gamma, s.Away.Code, s.Home.Code, s.Date)
	if err != nil {
		status := PriceStatusUnavailable
		if errors.Is(err, ErrMarketNotFound) {
			status = PriceStatusNotFound
		}
		log.Printf("[MARKET] %s: %v", s.ID, err)
		s.prices = MarketPrices{Status: status}
		return
	}

	s.tokens = tokens
	s.prices = MarketPrices{Status: PriceStatusPending, Slug: tokens.Slug}

	pollCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	poller := NewPoller(tokens, m.cfg.Prices, m.cfg.PollInterval, m.cfg.Metrics, func(p MarketPrices) {
		s.setPrices(p)
		if m.cfg.OnPrices != nil {
			m.cfg.OnPrices(s.ID, p)
		}
	})
	go poller.Run(pollCtx)
}

// Get returns a session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns all sessions, newest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].createdAt.After(out[j].createdAt)
	})
	return out
}

// Close stops a session's poller and removes it.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.stopPoller()
	m.cfg.Metrics.ActiveSessions.Dec()
	return true
}

// Shutdown stops every session's poller.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.stopPoller()
		m.cfg.Metrics.ActiveSessions.Dec()
	}
}
