// Package apisport is a thin client for the api-sport.ru football feed.
//
// The feed is decoded into untyped JSON because its shape drifts between
// endpoints and seasons. The extractors in payload.go pull out the fields
// the bot needs and shrug off the rest.
package apisport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.api-sport.ru/v2"

const requestTimeout = 20 * time.Second

// Client calls the api-sport.ru HTTP API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient builds a feed client. An empty baseURL falls back to the
// public endpoint.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// ListMatches fetches the raw payload for one day of a tournament season.
// day is formatted as YYYY-MM-DD.
func (c *Client) ListMatches(ctx context.Context, day string, tournamentID, seasonID int64) (any, error) {
	q := url.Values{}
	q.Set("date", day)
	q.Set("tournamentId", strconv.FormatInt(tournamentID, 10))
	q.Set("seasonId", strconv.FormatInt(seasonID, 10))
	return c.get(ctx, "/football/matches", q)
}

// GetMatch fetches the raw payload for a single match by its feed id.
func (c *Client) GetMatch(ctx context.Context, id int64) (any, error) {
	return c.get(ctx, "/football/matches/"+strconv.FormatInt(id, 10), nil)
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (any, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apisport: GET %s: %w", path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 600))
		return nil, fmt.Errorf("apisport: GET %s: HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("apisport: GET %s: decode: %w", path, err)
	}
	return payload, nil
}
