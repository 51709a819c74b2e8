// Package rule34 polls the Rule34 DAPI for comments.
package rule34

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danya02/multibooru-mirror/internal/poller"
	"github.com/danya02/multibooru-mirror/internal/record"
)

const (
	SourceID = "rule34"

	defaultBaseURL = "https://api.rule34.xxx"

	// createdAtLayout is the minute-precision format the DAPI serves.
	createdAtLayout = "2006-01-02 15:04"
)

// Config holds Rule34 source configuration.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

func (c *Config) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
}

// Comments polls the comment index. The DAPI has no ordering or pagination
// parameters for comments; each poll returns the most recent page and the
// loop's ID watermark filters out what was already seen.
type Comments struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logger     *slog.Logger
}

func NewComments(cfg Config, logger *slog.Logger) *Comments {
	cfg.setDefaults()
	return &Comments{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		logger:    logger.With("source", SourceID, "loop", "rule34-comments"),
	}
}

func (c *Comments) Name() string { return "rule34-comments" }

func (c *Comments) Fetch(ctx context.Context) (poller.Batch, error) {
	url := c.baseURL + "/index.php?page=dapi&s=comment&q=index"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return poller.Batch{}, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return poller.Batch{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return poller.Batch{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var listing apiComments
	if err := xml.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return poller.Batch{}, fmt.Errorf("decode response: %w", err)
	}

	var batch poller.Batch
	for _, comment := range listing.Comments {
		createdAt, err := time.Parse(createdAtLayout, comment.CreatedAt)
		if err != nil {
			c.logger.Error("failed to parse comment date",
				"comment_id", comment.ID,
				"created_at", comment.CreatedAt,
			)
			batch.ItemErrors++
			continue
		}

		creatorID := comment.CreatorID
		batch.Entries = append(batch.Entries, poller.Entry{
			Cursor: comment.ID,
			Records: []record.Data{record.Rule34Comment{
				ID: comment.ID,
				State: record.Rule34CommentState{
					Kind: record.StatePresent,
					Present: &record.Rule34CommentData{
						PostID:     comment.PostID,
						AuthorID:   &creatorID,
						AuthorName: comment.Creator,
						CreatedAt:  createdAt.UTC(),
						Body:       comment.Body,
					},
				},
			}},
		})
	}

	return batch, nil
}

// apiComments is the XML comment listing; every field is an attribute.
type apiComments struct {
	XMLName  xml.Name     `xml:"comments"`
	Comments []apiComment `xml:"comment"`
}

type apiComment struct {
	ID        int64  `xml:"id,attr"`
	PostID    int64  `xml:"post_id,attr"`
	CreatedAt string `xml:"created_at,attr"`
	Creator   string `xml:"creator,attr"`
	CreatorID int64  `xml:"creator_id,attr"`
	Body      string `xml:"body,attr"`
}
