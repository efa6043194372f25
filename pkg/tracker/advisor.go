package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/phenomenon0/dugout-tracker/pkg/baseball/outcomes"
	"github.com/phenomenon0/dugout-tracker/pkg/baseball/state"
	"github.com/phenomenon0/dugout-tracker/pkg/tracker/metrics"
)

const advisorTimeout = 5 * time.Second

// Advice is an advisor recommendation. It is always presented to the
// user, never acted on automatically.
type Advice struct {
	Action     string   `json:"action"` // buy-home | buy-away | hold
	Confidence float64  `json:"confidence"`
	Size       float64  `json:"size"`
	Reasoning  []string `json:"reasoning"`
}

// AdviceRequest is the snapshot POSTed to the advisor service.
type AdviceRequest struct {
	GameState     state.GameState       `json:"gameState"`
	RecentOutcome *outcomes.PlayOutcome `json:"recentOutcome,omitempty"`
	Prices        *MarketPrices         `json:"prices,omitempty"`
}

// AdvisorClient talks to an external advisor service. A zero base URL
// disables it.
type AdvisorClient struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.TrackerMetrics
}

// NewAdvisorClient creates an advisor client.
func NewAdvisorClient(baseURL string, m *metrics.TrackerMetrics) *AdvisorClient {
	if m == nil {
		m = metrics.Default()
	}
	return &AdvisorClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: advisorTimeout},
		metrics:    m,
	}
}

// Enabled reports whether an advisor service is configured.
func (c *AdvisorClient) Enabled() bool {
	return c.baseURL != ""
}

// Recommend posts the snapshot and returns the advisor's recommendation.
func (c *AdvisorClient) Recommend(ctx context.Context, req *AdviceRequest) (*Advice, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("advisor not configured")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/recommend", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.RecordAdvisor("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("advisor request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordAdvisor("error", time.Since(start).Seconds())
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("advisor error %d: %s", resp.StatusCode, string(respBody))
	}

	var advice Advice
	if err := json.NewDecoder(resp.Body).Decode(&advice); err != nil {
		c.metrics.RecordAdvisor("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("decode advice: %w", err)
	}

	c.metrics.RecordAdvisor("ok", time.Since(start).Seconds())
	return &advice, nil
}
