package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"reportchat/internal/contextutil"
)

// DefaultBaseURL is the Google Custom Search JSON API endpoint.
const DefaultBaseURL = "https://www.googleapis.com/customsearch/v1"

// ErrQuotaExhausted is returned when the search API rejects the request for quota reasons.
var ErrQuotaExhausted = errors.New("search quota exhausted")

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Client queries Google Programmable Search.
type Client struct {
	BaseURL    string
	APIKey     string
	EngineID   string
	NumResults int
	client     *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a search client. ratePerSec and burst size the outbound token bucket.
func NewClient(baseURL, apiKey, engineID string, numResults int, ratePerSec float64, burst int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if numResults <= 0 || numResults > 10 {
		numResults = 10
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		EngineID:   engineID,
		NumResults: numResults,
		client:     &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}
}

// searchResponse is the subset of the Custom Search response we read.
type searchResponse struct {
	Items []Result `json:"items"`
}

// errorResponse is the Google API error envelope.
type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search returns up to NumResults hits for query in the order the API returned them.
// A response without items is an empty result, not an error.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty search query")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{
		"key":   {c.APIKey},
		"cx":    {c.EngineID},
		"q":     {query},
		"num":   {strconv.Itoa(c.NumResults)},
		"start": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: bad status %d: %s", ErrQuotaExhausted, resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, msg)
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	logger.DebugContext(ctx, "web search completed", "results", len(sr.Items), "duration_ms", time.Since(start).Milliseconds())
	return sr.Items, nil
}
