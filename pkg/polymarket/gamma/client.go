package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Gamma API base URL
	DefaultBaseURL = "https://gamma-api.polymarket.com"

	// Rate limits (from Polymarket docs)
	defaultRateLimit = 10.0 // requests per second
	defaultBurst     = 5
)

// ErrNotFound is returned when no event or market matches a lookup.
var ErrNotFound = fmt.Errorf("gamma: not found")

// Client is a Gamma API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit sets custom rate limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a new Gamma API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ListEvents fetches events matching the filter.
func (c *Client) ListEvents(ctx context.Context, filter *EventsFilter) ([]Event, error) {
	params := url.Values{}
	if filter != nil {
		if filter.Active != nil {
			params.Set("active", strconv.FormatBool(*filter.Active))
		}
		if filter.Closed != nil {
			params.Set("closed", strconv.FormatBool(*filter.Closed))
		}
		if filter.Archived != nil {
			params.Set("archived", strconv.FormatBool(*filter.Archived))
		}
		if filter.Slug != "" {
			params.Set("slug", filter.Slug)
		}
		if filter.Limit > 0 {
			params.Set("limit", strconv.Itoa(filter.Limit))
		}
		if filter.Offset > 0 {
			params.Set("offset", strconv.Itoa(filter.Offset))
		}
	}

	var events []Event
	if err := c.get(ctx, "/events", params, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// GetEventBySlug fetches an event by its slug.
func (c *Client) GetEventBySlug(ctx context.Context, slug string) (*Event, error) {
	events, err := c.ListEvents(ctx, &EventsFilter{Slug: slug, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("event %q: %w", slug, ErrNotFound)
	}
	return &events[0], nil
}

// GetMarket fetches a single market by condition ID.
func (c *Client) GetMarket(ctx context.Context, conditionID string) (*Market, error) {
	var market Market
	if err := c.get(ctx, "/markets/"+conditionID, nil, &market); err != nil {
		return nil, err
	}
	return &market, nil
}

// get performs a GET request with rate limiting.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
