// Package danbooru polls the Danbooru JSON API for comments, posts and tags.
package danbooru

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	SourceID = "danbooru"

	defaultBaseURL  = "https://danbooru.donmai.us"
	defaultPageSize = 100
)

// Config holds Danbooru API client configuration.
type Config struct {
	BaseURL   string
	PageSize  int
	Timeout   time.Duration
	UserAgent string
}

func (c *Config) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.PageSize == 0 {
		c.PageSize = defaultPageSize
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
}

// Client is a thin wrapper over the Danbooru JSON endpoints, shared by the
// per-entity sources.
type Client struct {
	httpClient *http.Client
	baseURL    string
	pageSize   int
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates a Danbooru API client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg.setDefaults()
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:   cfg.BaseURL,
		pageSize:  cfg.PageSize,
		userAgent: cfg.UserAgent,
		logger:    logger.With("source", SourceID),
	}
}

// getJSON performs a GET against path (already including its query string)
// and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
