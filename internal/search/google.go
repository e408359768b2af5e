// Package search is a thin Google Custom Search JSON API client.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultEndpoint = "https://www.googleapis.com/customsearch/v1"
	DefaultResults  = 3
)

var (
	ErrNotConfigured = errors.New("search is not configured")
	ErrEmptyQuery    = errors.New("empty search query")
)

type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type Client struct {
	apiKey     string
	cseID      string
	endpoint   string
	num        int
	httpClient *http.Client
}

type Option func(*Client)

func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(apiKey, cseID string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		cseID:      cseID,
		endpoint:   DefaultEndpoint,
		num:        DefaultResults,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != "" && c.cseID != ""
}

func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.cseID)
	params.Set("q", query)
	params.Set("num", fmt.Sprint(c.num))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Items []Result `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return payload.Items, nil
}

// Format renders results as Telegram Markdown blocks. An empty slice yields "".
func Format(results []Result) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("*%s*\n%s\n%s", r.Title, r.Snippet, r.Link))
	}
	return strings.Join(blocks, "\n\n")
}
