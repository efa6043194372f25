// Package gamma is a read-only client for the Polymarket Gamma Markets
// API, used here to discover the moneyline market for a given MLB game.
package gamma

import (
	"encoding/json"
	"strconv"
	"time"
)

// Event is a Polymarket event: the container for a game's markets.
type Event struct {
	ID          string    `json:"id"`
	Ticker      string    `json:"ticker"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	Active      bool      `json:"active"`
	Closed      bool      `json:"closed"`
	Archived    bool      `json:"archived"`
	Restricted  bool      `json:"restricted"`
	Liquidity   JSONFloat `json:"liquidity"`
	Volume      JSONFloat `json:"volume"`
	Markets     []Market  `json:"markets,omitempty"`
	NegRisk     bool      `json:"negRisk"`
}

// IsTradeable reports whether orders can be placed against the event.
func (e *Event) IsTradeable() bool {
	return e.Active && !e.Closed && !e.Archived && !e.Restricted
}

// Market is a single prediction market inside an event.
type Market struct {
	ID              string    `json:"id"`
	Question        string    `json:"question"`
	ConditionID     string    `json:"conditionId"`
	Slug            string    `json:"slug"`
	Active          bool      `json:"active"`
	Closed          bool      `json:"closed"`
	Archived        bool      `json:"archived"`
	AcceptingOrders bool      `json:"acceptingOrders"`
	GameStartTime   string    `json:"gameStartTime,omitempty"`
	Liquidity       JSONFloat `json:"liquidity"`
	Volume          JSONFloat `json:"volume"`
	Spread          JSONFloat `json:"spread"`
	NegRisk         bool      `json:"negRisk"`
	EventID         string    `json:"eventID"`

	// JSON-encoded parallel arrays
	ClobTokenIDsRaw  string `json:"clobTokenIds"`
	OutcomesRaw      string `json:"outcomes"`
	OutcomePricesRaw string `json:"outcomePrices"`
}

// IsTradeable reports whether orders can be placed against the market.
func (m *Market) IsTradeable() bool {
	return m.Active && !m.Closed && !m.Archived && m.AcceptingOrders
}

// ClobTokenIDs returns the parsed CLOB token IDs, outcome-aligned.
func (m *Market) ClobTokenIDs() []string {
	var ids []string
	if m.ClobTokenIDsRaw != "" {
		json.Unmarshal([]byte(m.ClobTokenIDsRaw), &ids)
	}
	return ids
}

// Outcomes returns the parsed outcome labels, token-aligned.
func (m *Market) Outcomes() []string {
	var outcomes []string
	if m.OutcomesRaw != "" {
		json.Unmarshal([]byte(m.OutcomesRaw), &outcomes)
	}
	return outcomes
}

// OutcomePrices returns the parsed outcome prices, token-aligned.
func (m *Market) OutcomePrices() []string {
	var prices []string
	if m.OutcomePricesRaw != "" {
		json.Unmarshal([]byte(m.OutcomePricesRaw), &prices)
	}
	return prices
}

// EventsFilter narrows an events listing.
type EventsFilter struct {
	Active   *bool
	Closed   *bool
	Archived *bool
	Slug     string
	Limit    int
	Offset   int
}

// JSONFloat handles fields the API serves as either number or string.
type JSONFloat float64

func (j *JSONFloat) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*j = JSONFloat(f)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*j = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*j = JSONFloat(f)
	return nil
}

// Float64 returns the plain float value.
func (j JSONFloat) Float64() float64 {
	return float64(j)
}
