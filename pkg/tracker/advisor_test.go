package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phenomenon0/dugout-tracker/pkg/baseball/state"
)

func TestAdvisorDisabled(t *testing.T) {
	c := NewAdvisorClient("", nil)
	if c.Enabled() {
		t.Error("empty base URL should disable the advisor")
	}
	if _, err := c.Recommend(context.Background(), &AdviceRequest{}); err == nil {
		t.Error("Recommend on a disabled advisor should fail")
	}
}

func TestAdvisorRecommend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/recommend" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}

		var req AdviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.GameState.Inning != 7 {
			t.Errorf("inning = %d, want 7", req.GameState.Inning)
		}

		json.NewEncoder(w).Encode(Advice{
			Action:     "buy-home",
			Confidence: 0.7,
			Size:       15,
			Reasoning:  []string{"home team leads late"},
		})
	}))
	defer srv.Close()

	c := NewAdvisorClient(srv.URL, nil)

	gs := state.NewGameState()
	gs.Inning = 7
	advice, err := c.Recommend(context.Background(), &AdviceRequest{GameState: gs})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if advice.Action != "buy-home" || advice.Confidence != 0.7 {
		t.Errorf("advice = %+v", advice)
	}
	if len(advice.Reasoning) != 1 {
		t.Errorf("reasoning = %v", advice.Reasoning)
	}
}

func TestAdvisorErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewAdvisorClient(srv.URL, nil)
	if _, err := c.Recommend(context.Background(), &AdviceRequest{}); err == nil {
		t.Error("want error for non-200 advisor response")
	}
}

func TestAdvisorBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewAdvisorClient(srv.URL, nil)
	if _, err := c.Recommend(context.Background(), &AdviceRequest{}); err == nil {
		t.Error("want error for undecodable advisor response")
	}
}
