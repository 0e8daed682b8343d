package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client talks to the analysis service over HTTP. All methods are safe for
// concurrent use; a shared rate limiter keeps polling traffic polite.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Client for the given base URL. The API key may be empty
// for unauthenticated deployments. requestsPerSec caps outgoing requests;
// zero or negative disables limiting.
func NewClient(baseURL, apiKey string, requestsPerSec float64) *Client {
	limit := rate.Inf
	if requestsPerSec > 0 {
		limit = rate.Limit(requestsPerSec)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// SubmitBacktest submits a new job and returns the server's acknowledgement.
func (c *Client) SubmitBacktest(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/backtests", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetRun fetches the current snapshot of a run.
func (c *Client) GetRun(ctx context.Context, id string) (*RunSnapshot, error) {
	var snap RunSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/backtests/"+url.PathEscape(id), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// CancelRun asks the server to stop a run. Cancellation is advisory: the run
// keeps its current status until the server reports "cancelled".
func (c *Client) CancelRun(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/backtests/"+url.PathEscape(id)+"/cancel", nil, nil)
}

// CreateComparison creates a comparison group and returns its full snapshot.
func (c *Client) CreateComparison(ctx context.Context, req ComparisonRequest) (*ComparisonSnapshot, error) {
	var snap ComparisonSnapshot
	if err := c.do(ctx, http.MethodPost, "/api/comparisons", req, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetComparison fetches the current snapshot of a comparison group.
func (c *Client) GetComparison(ctx context.Context, groupID string) (*ComparisonSnapshot, error) {
	var snap ComparisonSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/comparisons/"+url.PathEscape(groupID), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListWatchlists returns all named symbol collections.
func (c *Client) ListWatchlists(ctx context.Context) ([]Watchlist, error) {
	var lists []Watchlist
	if err := c.do(ctx, http.MethodGet, "/api/watchlists", nil, &lists); err != nil {
		return nil, err
	}
	return lists, nil
}

// SaveWatchlist creates or updates a watchlist (create when ID is empty).
func (c *Client) SaveWatchlist(ctx context.Context, w Watchlist) (*Watchlist, error) {
	method := http.MethodPost
	path := "/api/watchlists"
	if w.ID != "" {
		method = http.MethodPut
		path += "/" + url.PathEscape(w.ID)
	}
	var saved Watchlist
	if err := c.do(ctx, method, path, w, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// DeleteWatchlist removes a watchlist by id.
func (c *Client) DeleteWatchlist(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/watchlists/"+url.PathEscape(id), nil, nil)
}

// apiError is a non-2xx response from the service.
type apiError struct {
	StatusCode int
	Message    string
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ErrorMessage extracts a user-displayable message from an error. Server
// messages pass through as-is; anything else gets the generic fallback.
func ErrorMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if apiErr, ok := err.(*apiError); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// do executes one JSON request/response round trip. body and out may be nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &apiError{StatusCode: resp.StatusCode}
		var errBody struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(respBody, &errBody) == nil {
			apiErr.Message = errBody.Message
			if apiErr.Message == "" {
				apiErr.Message = errBody.Error
			}
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
