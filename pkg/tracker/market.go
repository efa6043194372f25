package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/phenomenon0/dugout-tracker/pkg/baseball/teams"
	"github.com/phenomenon0/dugout-tracker/pkg/polymarket/gamma"
	"github.com/phenomenon0/dugout-tracker/pkg/tracker/metrics"
)

// ErrMarketNotFound means no Polymarket event exists for the matchup.
// The game stays playable; market panels show a warning.
var ErrMarketNotFound = errors.New("market not found")

// Price feed status values.
const (
	PriceStatusOK          = "ok"
	PriceStatusPending     = "pending"
	PriceStatusUnavailable = "unavailable"
	PriceStatusNotFound    = "not-found"
)

const pollRequestTimeout = 2 * time.Second

// MarketTokens identifies the moneyline market for a game and maps its
// two CLOB tokens to home and away.
type MarketTokens struct {
	Slug        string `json:"slug"`
	ConditionID string `json:"conditionId"`
	HomeTokenID string `json:"homeTokenId"`
	AwayTokenID string `json:"awayTokenId"`
	NegRisk     bool   `json:"negRisk"`
}

// MarketPrices is a snapshot of the two moneyline midpoints.
type MarketPrices struct {
	Status    string    `json:"status"`
	Slug      string    `json:"slug,omitempty"`
	Home      float64   `json:"home"`
	Away      float64   `json:"away"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// GameSlug builds the Polymarket event slug for an MLB game.
func GameSlug(away, home string, date time.Time) string {
	return fmt.Sprintf("mlb-%s-%s-%s",
		strings.ToLower(away), strings.ToLower(home), date.Format("2006-01-02"))
}

// EventSource is the slice of the gamma client FindMarket needs.
type EventSource interface {
	GetEventBySlug(ctx context.Context, slug string) (*gamma.Event, error)
}

// PriceSource serves token midpoints. Satisfied by *clob.Client.
type PriceSource interface {
	GetMidpoint(ctx context.Context, tokenID string) (string, error)
}

// FindMarket locates the moneyline market for the matchup and maps its
// tokens to home/away by outcome label.
func FindMarket(ctx context.Context, src EventSource, away, home string, date time.Time) (*MarketTokens, error) {
	slug := GameSlug(away, home, date)

	event, err := src.GetEventBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gamma.ErrNotFound) {
			return nil, fmt.Errorf("event %q: %w", slug, ErrMarketNotFound)
		}
		return nil, fmt.Errorf("fetch event %q: %w", slug, err)
	}

	for i := range event.Markets {
		market := &event.Markets[i]
		if !market.IsTradeable() {
			continue
		}

		outcomes := market.Outcomes()
		tokens := market.ClobTokenIDs()
		if len(outcomes) != 2 || len(tokens) != 2 {
			continue
		}

		var homeToken, awayToken string
		for j, outcome := range outcomes {
			switch {
			case matchesTeam(outcome, home):
				homeToken = tokens[j]
			case matchesTeam(outcome, away):
				awayToken = tokens[j]
			}
		}
		if homeToken == "" || awayToken == "" {
			// Not the moneyline market (totals, props, etc.)
			continue
		}

		return &MarketTokens{
			Slug:        slug,
			ConditionID: market.ConditionID,
			HomeTokenID: homeToken,
			AwayTokenID: awayToken,
			NegRisk:     market.NegRisk || event.NegRisk,
		}, nil
	}

	return nil, fmt.Errorf("event %q has no moneyline market: %w", slug, ErrMarketNotFound)
}

// matchesTeam reports whether a market outcome label refers to the team
// with the given code. Labels vary: "NYY", "Yankees", "New York Yankees".
func matchesTeam(outcome, code string) bool {
	outcome = strings.TrimSpace(outcome)
	if strings.EqualFold(outcome, code) {
		return true
	}

	team, ok := teams.ByCode(code)
	if !ok {
		return false
	}
	if strings.EqualFold(outcome, team.Name) {
		return true
	}

	// Nickname: last word of the full name ("Red Sox" needs two)
	lower := strings.ToLower(team.Name)
	return strings.HasSuffix(lower, strings.ToLower(outcome)) && outcome != ""
}

// Poller periodically fetches both moneyline midpoints and hands the
// snapshot back through a callback. A failed poll degrades the status
// instead of stopping the game.
type Poller struct {
	tokens   *MarketTokens
	source   PriceSource
	interval time.Duration
	metrics  *metrics.TrackerMetrics
	onPrices func(MarketPrices)
}

// NewPoller creates a poller for the given market.
func NewPoller(tokens *MarketTokens, source PriceSource, interval time.Duration, m *metrics.TrackerMetrics, onPrices func(MarketPrices)) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if m == nil {
		m = metrics.Default()
	}
	return &Poller{
		tokens:   tokens,
		source:   source,
		interval: interval,
		metrics:  m,
		onPrices: onPrices,
	}
}

// Run polls until the context is canceled. The first poll happens
// immediately.
func (p *Poller) Run(ctx context.Context) {
	p.pollOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, pollRequestTimeout)
	defer cancel()

	home, homeErr := p.midpoint(reqCtx, p.tokens.HomeTokenID)
	away, awayErr := p.midpoint(reqCtx, p.tokens.AwayTokenID)

	snapshot := MarketPrices{
		Slug:      p.tokens.Slug,
		UpdatedAt: time.Now(),
	}

	if homeErr != nil || awayErr != nil {
		err := homeErr
		if err == nil {
			err = awayErr
		}
		if ctx.Err() != nil {
			return
		}
		log.Printf("[MARKET] poll %s failed: %v", p.tokens.Slug, err)
		snapshot.Status = PriceStatusUnavailable
		p.metrics.RecordPoll("error", time.Since(start).Seconds())
	} else {
		snapshot.Status = PriceStatusOK
		snapshot.Home = home
		snapshot.Away = away
		p.metrics.RecordPoll("ok", time.Since(start).Seconds())
	}

	if p.onPrices != nil {
		p.onPrices(snapshot)
	}
}

func (p *Poller) midpoint(ctx context.Context, tokenID string) (float64, error) {
	raw, err := p.source.GetMidpoint(ctx, tokenID)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse midpoint %q: %w", raw, err)
	}
	return v, nil
}
