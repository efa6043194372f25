package gamma

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListEventsQueryParams(t *testing.T) {
	var gotQuery map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		json.NewEncoder(w).Encode([]Event{{Slug: "mlb-nyy-bos-2025-07-04"}})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))

	active := true
	closed := false
	events, err := c.ListEvents(context.Background(), &EventsFilter{
		Active: &active,
		Closed: &closed,
		Slug:   "mlb-nyy-bos-2025-07-04",
		Limit:  1,
	})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events", len(events))
	}

	want := map[string]string{
		"active": "true",
		"closed": "false",
		"slug":   "mlb-nyy-bos-2025-07-04",
		"limit":  "1",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
}

func TestGetEventBySlugNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Event{})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.GetEventBySlug(context.Background(), "mlb-nyy-bos-2025-07-04")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestGetEventBySlugAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.GetEventBySlug(context.Background(), "mlb-nyy-bos-2025-07-04")
	if err == nil {
		t.Fatal("want error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("server failure should not read as not-found")
	}
}

func TestGetMarket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/0xcond" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Market{ConditionID: "0xcond", Question: "Yankees vs. Red Sox"})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	market, err := c.GetMarket(context.Background(), "0xcond")
	if err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	if market.ConditionID != "0xcond" {
		t.Errorf("conditionID = %q", market.ConditionID)
	}
}

func TestMarketParallelArrays(t *testing.T) {
	m := Market{
		ClobTokenIDsRaw:  `["111","222"]`,
		OutcomesRaw:      `["Yankees","Red Sox"]`,
		OutcomePricesRaw: `["0.42","0.58"]`,
	}

	if got := m.ClobTokenIDs(); len(got) != 2 || got[0] != "111" {
		t.Errorf("ClobTokenIDs = %v", got)
	}
	if got := m.Outcomes(); len(got) != 2 || got[1] != "Red Sox" {
		t.Errorf("Outcomes = %v", got)
	}
	if got := m.OutcomePrices(); len(got) != 2 || got[0] != "0.42" {
		t.Errorf("OutcomePrices = %v", got)
	}

	var empty Market
	if got := empty.ClobTokenIDs(); got != nil {
		t.Errorf("empty ClobTokenIDs = %v", got)
	}
}

func TestJSONFloatDualForm(t *testing.T) {
	var payload struct {
		Num JSONFloat `json:"num"`
		Str JSONFloat `json:"str"`
		Nil JSONFloat `json:"nil"`
	}
	raw := `{"num": 12.5, "str": "3.25", "nil": ""}`
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Num != 12.5 || payload.Str != 3.25 || payload.Nil != 0 {
		t.Errorf("parsed = %+v", payload)
	}

	var bad struct {
		V JSONFloat `json:"v"`
	}
	if err := json.Unmarshal([]byte(`{"v": "abc"}`), &bad); err == nil {
		t.Error("want error for non-numeric string")
	}
}

func TestEventIsTradeable(t *testing.T) {
	e := Event{Active: true}
	if !e.IsTradeable() {
		t.Error("active event not tradeable")
	}
	e.Closed = true
	if e.IsTradeable() {
		t.Error("closed event tradeable")
	}

	m := Market{Active: true, AcceptingOrders: true}
	if !m.IsTradeable() {
		t.Error("active market not tradeable")
	}
	m.AcceptingOrders = false
	if m.IsTradeable() {
		t.Error("market not accepting orders is tradeable")
	}
}
