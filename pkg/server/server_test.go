package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phenomenon0/dugout-tracker/pkg/baseball/outcomes"
	"github.com/phenomenon0/dugout-tracker/pkg/baseball/state"
	"github.com/phenomenon0/dugout-tracker/pkg/tracker"
	"github.com/phenomenon0/dugout-tracker/pkg/tracker/metrics"
	"github.com/phenomenon0/dugout-tracker/pkg/tracker/store"
)

type testEnv struct {
	srv     *Server
	handler http.Handler
	manager *tracker.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tables, err := outcomes.Load()
	if err != nil {
		t.Fatalf("outcomes.Load: %v", err)
	}

	m := metrics.NewTrackerMetrics()
	manager := tracker.NewManager(tracker.ManagerConfig{Metrics: m})

	srv := New(Config{
		Addr:    "127.0.0.1:0",
		Manager: manager,
		Tables:  tables,
		Desk:    tracker.NewOrderDesk(nil, nil, true, m),
		Store:   store.New(t.TempDir()),
		Metrics: m,
	})
	return &testEnv{srv: srv, handler: srv.Handler(), manager: manager}
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	rec := e.request(t, "POST", "/api/sessions", map[string]string{
		"away": "NYY",
		"home": "BOS",
		"date": "2025-07-04",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", rec.Code, rec.Body)
	}
	var resp struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &resp)
	return resp.ID
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	rec := e.request(t, "GET", "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
}

func TestTeamsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	rec := e.request(t, "GET", "/api/teams", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("teams: %d", rec.Code)
	}
	var teams []struct {
		Code string `json:"code"`
	}
	decodeBody(t, rec, &teams)
	if len(teams) != 30 {
		t.Errorf("got %d teams, want 30", len(teams))
	}
}

func TestCreateSession(t *testing.T) {
	e := newTestEnv(t)
	rec := e.request(t, "POST", "/api/sessions", map[string]string{
		"away": "NYY", "home": "BOS", "date": "2025-07-04",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}

	var resp struct {
		ID     string `json:"id"`
		Date   string `json:"date"`
		Prices struct {
			Status string `json:"status"`
		} `json:"prices"`
		DryRun bool `json:"dryRun"`
	}
	decodeBody(t, rec, &resp)
	if resp.ID == "" {
		t.Error("no session id")
	}
	if resp.Date != "2025-07-04" {
		t.Errorf("date = %q", resp.Date)
	}
	if resp.Prices.Status != tracker.PriceStatusNotFound {
		t.Errorf("price status = %q, want not-found without a market link", resp.Prices.Status)
	}
	if !resp.DryRun {
		t.Error("dryRun not reported")
	}
}

func TestCreateSessionRejectsBadInput(t *testing.T) {
	e := newTestEnv(t)

	tests := []map[string]string{
		{"away": "XXX", "home": "BOS"},
		{"away": "NYY", "home": "NYY"},
		{"away": "NYY", "home": "BOS", "date": "07/04/2025"},
	}
	for _, body := range tests {
		if rec := e.request(t, "POST", "/api/sessions", body); rec.Code != http.StatusBadRequest {
			t.Errorf("create %v: %d, want 400", body, rec.Code)
		}
	}
}

func TestSessionNotFound(t *testing.T) {
	e := newTestEnv(t)
	if rec := e.request(t, "GET", "/api/sessions/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get unknown session: %d, want 404", rec.Code)
	}
}

func TestEventDispatch(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	post := func(eventType string) (state.GameState, int) {
		rec := e.request(t, "POST", "/api/sessions/"+id+"/events", map[string]string{"type": eventType})
		if rec.Code != http.StatusOK {
			t.Fatalf("event %q: %d %s", eventType, rec.Code, rec.Body)
		}
		var resp struct {
			State      state.GameState `json:"state"`
			HistoryLen int             `json:"historyLen"`
		}
		decodeBody(t, rec, &resp)
		return resp.State, resp.HistoryLen
	}

	gs, hist := post("strike")
	if gs.Strikes != 1 || hist != 1 {
		t.Errorf("after strike: strikes=%d historyLen=%d", gs.Strikes, hist)
	}
	gs, _ = post("ball")
	if gs.Balls != 1 {
		t.Errorf("after ball: balls=%d", gs.Balls)
	}
	gs, _ = post("foul")
	if gs.Strikes != 2 {
		t.Errorf("after foul: strikes=%d", gs.Strikes)
	}
	gs, hist = post("undo")
	if gs.Strikes != 1 || gs.Balls != 1 || hist != 2 {
		t.Errorf("after undo: strikes=%d balls=%d historyLen=%d", gs.Strikes, gs.Balls, hist)
	}
	gs, hist = post("reset")
	if gs.Strikes != 0 || gs.Balls != 0 || hist != 0 {
		t.Errorf("after reset: %+v historyLen=%d", gs, hist)
	}
	if gs.AwayTeam != "New York Yankees" {
		t.Errorf("reset dropped team name: %q", gs.AwayTeam)
	}

	rec := e.request(t, "POST", "/api/sessions/"+id+"/events", map[string]string{"type": "bunt"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown event: %d, want 400", rec.Code)
	}
}

type outcomesResponse struct {
	Situation struct {
		Bases string `json:"bases"`
		Outs  int    `json:"outs"`
	} `json:"situation"`
	Outcomes map[string][]outcomes.PlayOutcome `json:"outcomes"`
}

func TestOutcomesEndpoint(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	rec := e.request(t, "GET", "/api/sessions/"+id+"/outcomes", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("outcomes: %d %s", rec.Code, rec.Body)
	}
	var resp outcomesResponse
	decodeBody(t, rec, &resp)

	if resp.Situation.Bases != "empty" || resp.Situation.Outs != 0 {
		t.Errorf("situation = %+v", resp.Situation)
	}
	if len(resp.Outcomes["inplay"]) == 0 {
		t.Error("no in-play outcomes")
	}
	// Nobody on base: nothing can happen on the base paths.
	if len(resp.Outcomes["basepath"]) != 0 {
		t.Errorf("base-path outcomes with empty bases: %d", len(resp.Outcomes["basepath"]))
	}
}

func TestOutcomesQualityFilter(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	all := e.request(t, "GET", "/api/sessions/"+id+"/outcomes?source=inplay", nil)
	var allResp outcomesResponse
	decodeBody(t, all, &allResp)

	banded := e.request(t, "GET", "/api/sessions/"+id+"/outcomes?source=inplay&quality=very-bad", nil)
	if banded.Code != http.StatusOK {
		t.Fatalf("banded outcomes: %d %s", banded.Code, banded.Body)
	}
	var bandedResp outcomesResponse
	decodeBody(t, banded, &bandedResp)

	n, total := len(bandedResp.Outcomes["inplay"]), len(allResp.Outcomes["inplay"])
	if n == 0 || n >= total {
		t.Errorf("very-bad band has %d of %d outcomes", n, total)
	}
	for _, o := range bandedResp.Outcomes["inplay"] {
		if o.RunsScored > 0 {
			t.Errorf("run-scoring outcome graded very-bad: %+v", o)
		}
	}

	rec := e.request(t, "GET", "/api/sessions/"+id+"/outcomes?quality=amazing", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown band: %d, want 400", rec.Code)
	}

	rec = e.request(t, "GET", "/api/sessions/"+id+"/outcomes?source=basepath&quality=very-good", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("five-level band on base-path source: %d, want 400", rec.Code)
	}
}

func TestApplyOutcome(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	// Leadoff single.
	rec := e.request(t, "POST", "/api/sessions/"+id+"/outcomes/apply", map[string]string{
		"source":     "inplay",
		"descriptor": "first|0|0",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("apply: %d %s", rec.Code, rec.Body)
	}
	var resp struct {
		State      state.GameState       `json:"state"`
		Applied    *outcomes.PlayOutcome `json:"applied"`
		HistoryLen int                   `json:"historyLen"`
	}
	decodeBody(t, rec, &resp)
	if !resp.State.Bases.First || resp.State.Outs != 0 {
		t.Errorf("state after single = %+v", resp.State)
	}
	if resp.Applied == nil || resp.Applied.Probability <= 0 {
		t.Errorf("applied = %+v", resp.Applied)
	}
	if resp.HistoryLen != 1 {
		t.Errorf("historyLen = %d, want 1", resp.HistoryLen)
	}

	// Runner on first: a stolen base comes from the base-path table.
	rec = e.request(t, "POST", "/api/sessions/"+id+"/outcomes/apply", map[string]string{
		"source":     "basepath",
		"descriptor": "second|0|0",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("apply steal: %d %s", rec.Code, rec.Body)
	}
	decodeBody(t, rec, &resp)
	if !resp.State.Bases.Second || resp.State.Bases.First {
		t.Errorf("state after steal = %+v", resp.State.Bases)
	}
}

func TestApplyOutcomeRejectsUnreachable(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	tests := []map[string]string{
		{"source": "inplay", "descriptor": "not-a-descriptor"},
		{"source": "dreams", "descriptor": "first|0|0"},
		// Bases are empty: a bases-loaded result is not reachable.
		{"source": "inplay", "descriptor": "first,second,third|4|0"},
		// Nothing on the base paths either.
		{"source": "basepath", "descriptor": "second|0|0"},
	}
	for _, body := range tests {
		if rec := e.request(t, "POST", "/api/sessions/"+id+"/outcomes/apply", body); rec.Code != http.StatusBadRequest {
			t.Errorf("apply %v: %d, want 400", body, rec.Code)
		}
	}
}

func TestQualityEndpoint(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	rec := e.request(t, "GET", "/api/sessions/"+id+"/quality", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("quality: %d %s", rec.Code, rec.Body)
	}

	var resp struct {
		Source     string `json:"source"`
		Thresholds struct {
			VeryGoodMin float64 `json:"veryGoodMin"`
		} `json:"thresholds"`
		Ranges map[string]struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"ranges"`
		Expectations map[string]struct {
			OutcomeCount int `json:"outcomeCount"`
		} `json:"expectations"`
	}
	decodeBody(t, rec, &resp)

	if resp.Source != "inplay" {
		t.Errorf("source = %q", resp.Source)
	}
	if len(resp.Ranges) != 5 {
		t.Errorf("got %d ranges, want 5", len(resp.Ranges))
	}
	if resp.Ranges["very-bad"].Min != -1 || resp.Ranges["very-good"].Max != 1 {
		t.Errorf("outer bounds = %+v", resp.Ranges)
	}
	if len(resp.Expectations) != 5 {
		t.Errorf("got %d expectations, want 5", len(resp.Expectations))
	}
}

func TestOrdersWithoutMarket(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	rec := e.request(t, "POST", "/api/sessions/"+id+"/orders", map[string]interface{}{
		"side": "home", "amount": 10, "price": 0.5,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("order without market: %d, want 409", rec.Code)
	}
}

func TestListOrders(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	rec := e.request(t, "GET", "/api/sessions/"+id+"/orders", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list orders: %d", rec.Code)
	}
	var resp struct {
		DryRun      bool                  `json:"dryRun"`
		Ledger      []tracker.LedgerEntry `json:"ledger"`
		DailyOrders int                   `json:"dailyOrders"`
	}
	decodeBody(t, rec, &resp)
	if !resp.DryRun {
		t.Error("desk should be dry-run")
	}
	if len(resp.Ledger) != 0 || resp.DailyOrders != 0 {
		t.Errorf("fresh desk: %+v", resp)
	}
}

func TestAdviceWithoutAdvisor(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	rec := e.request(t, "GET", "/api/sessions/"+id+"/advice", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("advice without advisor: %d, want 503", rec.Code)
	}
}

func TestAdviceDegradesOnAdvisorFailure(t *testing.T) {
	advisorSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusBadGateway)
	}))
	defer advisorSrv.Close()

	tables, err := outcomes.Load()
	if err != nil {
		t.Fatalf("outcomes.Load: %v", err)
	}
	m := metrics.NewTrackerMetrics()
	manager := tracker.NewManager(tracker.ManagerConfig{Metrics: m})
	srv := New(Config{
		Addr:    "127.0.0.1:0",
		Manager: manager,
		Tables:  tables,
		Advisor: tracker.NewAdvisorClient(advisorSrv.URL, m),
		Metrics: m,
	})
	e := &testEnv{srv: srv, handler: srv.Handler(), manager: manager}
	id := e.createSession(t)

	rec := e.request(t, "GET", "/api/sessions/"+id+"/advice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("advice: %d, want 200 with a warning", rec.Code)
	}
	var resp struct {
		Advice  *tracker.Advice `json:"advice"`
		Warning string          `json:"warning"`
	}
	decodeBody(t, rec, &resp)
	if resp.Advice != nil {
		t.Errorf("advice = %+v, want nil", resp.Advice)
	}
	if resp.Warning == "" {
		t.Error("no warning for a failed advisor call")
	}
}

func TestSaveLoadFlow(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	// Load before any save.
	rec := e.request(t, "POST", "/api/sessions/"+id+"/load", map[string]string{"user": "alice"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("load before save: %d, want 404", rec.Code)
	}

	// Put some game on the board, then save.
	e.request(t, "POST", "/api/sessions/"+id+"/events", map[string]string{"type": "strike"})
	e.request(t, "POST", "/api/sessions/"+id+"/events", map[string]string{"type": "ball"})
	rec = e.request(t, "POST", "/api/sessions/"+id+"/save", map[string]string{"user": "alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("save: %d %s", rec.Code, rec.Body)
	}

	// Wipe the game, then load it back.
	e.request(t, "POST", "/api/sessions/"+id+"/events", map[string]string{"type": "reset"})
	rec = e.request(t, "POST", "/api/sessions/"+id+"/load", map[string]string{"user": "alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("load: %d %s", rec.Code, rec.Body)
	}
	var resp struct {
		State   state.GameState `json:"state"`
		SavedAt time.Time       `json:"savedAt"`
	}
	decodeBody(t, rec, &resp)
	if resp.State.Strikes != 1 || resp.State.Balls != 1 {
		t.Errorf("restored state = %+v", resp.State)
	}
	if resp.SavedAt.IsZero() {
		t.Error("savedAt not reported")
	}

	// Save requires a user.
	rec = e.request(t, "POST", "/api/sessions/"+id+"/save", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("save without user: %d, want 400", rec.Code)
	}
}

func TestSaveExists(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	check := func(wantExists bool) {
		t.Helper()
		rec := e.request(t, "GET", "/api/saves/exists?user=alice&away=NYY&home=BOS&date=2025-07-04", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("exists: %d %s", rec.Code, rec.Body)
		}
		var resp struct {
			Exists bool `json:"exists"`
		}
		decodeBody(t, rec, &resp)
		if resp.Exists != wantExists {
			t.Errorf("exists = %v, want %v", resp.Exists, wantExists)
		}
	}

	check(false)
	e.request(t, "POST", "/api/sessions/"+id+"/save", map[string]string{"user": "alice"})
	check(true)

	rec := e.request(t, "GET", "/api/saves/exists?user=alice", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("exists with missing params: %d, want 400", rec.Code)
	}
}

func TestCloseSession(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	rec := e.request(t, "DELETE", "/api/sessions/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("close: %d", rec.Code)
	}
	if rec := e.request(t, "GET", "/api/sessions/"+id, nil); rec.Code != http.StatusNotFound {
		t.Errorf("session survived close: %d", rec.Code)
	}
}
