package server

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

	"github.com/j-veylop/gemini-quota-switch/internal/models"
)

// ErrRefreshRunning is returned by Client.Refresh when the server rejects the
// trigger because a cycle is in progress.
var ErrRefreshRunning = errors.New("refresh already running")

// Client talks to a running server.
type Client struct {
	http    *http.Client
	BaseURL string
}

// NewClient creates a client for a server base URL such as http://localhost:3000.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// Stats fetches the latest snapshot.
func (c *Client) Stats(ctx context.Context) (*StatsResponse, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/stats", http.StatusOK)
	if err != nil {
		return nil, err
	}
	var out StatsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode stats response: %w", err)
	}
	return &out, nil
}

// LastUpdated parses the stats timestamp.
func (r *StatsResponse) LastUpdated() (time.Time, bool) {
	if r == nil || r.LastUpdatedTime == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(LastUpdatedFormat, *r.LastUpdatedTime)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// TrySwitch asks the server to switch to its preferred profile.
func (c *Client) TrySwitch(ctx context.Context) (models.SwitchResult, error) {
	body, err := c.do(ctx, http.MethodPut, "/api/try-switch", http.StatusOK)
	if err != nil {
		return models.SwitchResult{}, err
	}
	return ParseSwitchReply(string(body))
}

// Refresh triggers a refresh cycle.
func (c *Client) Refresh(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/refresh", http.StatusAccepted)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusConflict {
		return ErrRefreshRunning
	}
	return err
}

// HistoryChart fetches a rendered history chart.
func (c *Client) HistoryChart(ctx context.Context, profileID, family string, days, width, height int) (string, error) {
	q := url.Values{}
	q.Set("format", "chart")
	q.Set("family", family)
	q.Set("days", strconv.Itoa(days))
	q.Set("width", strconv.Itoa(width))
	q.Set("height", strconv.Itoa(height))

	body, err := c.do(ctx, http.MethodGet, "/api/history/"+url.PathEscape(profileID)+"?"+q.Encode(), http.StatusOK)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Projection fetches a profile's depletion projection.
func (c *Client) Projection(ctx context.Context, profileID, family string) (*models.Projection, error) {
	q := url.Values{}
	q.Set("family", family)

	body, err := c.do(ctx, http.MethodGet, "/api/projection/"+url.PathEscape(profileID)+"?"+q.Encode(), http.StatusOK)
	if err != nil {
		return nil, err
	}
	var out models.Projection
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode projection response: %w", err)
	}
	return &out, nil
}

// StatusError is a non-success server reply.
type StatusError struct {
	Body       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, want int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != want {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// ParseSwitchReply parses a "<1|0>|<profile>" try-switch body.
func ParseSwitchReply(body string) (models.SwitchResult, error) {
	flag, id, ok := strings.Cut(strings.TrimSpace(body), "|")
	if !ok || id == "" || (flag != "0" && flag != "1") {
		return models.SwitchResult{}, fmt.Errorf("malformed switch reply %q", body)
	}
	return models.SwitchResult{ProfileID: id, Switched: flag == "1"}, nil
}
