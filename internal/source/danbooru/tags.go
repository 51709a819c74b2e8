package danbooru

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danya02/multibooru-mirror/internal/poller"
	"github.com/danya02/multibooru-mirror/internal/record"
)

// Tags polls /tags.json in ID order using a-pagination.
type Tags struct {
	client *Client
	logger *slog.Logger

	lastID int64
}

func NewTags(client *Client, logger *slog.Logger) *Tags {
	return &Tags{
		client: client,
		logger: logger.With("loop", "danbooru-tags"),
	}
}

func (t *Tags) Name() string { return "danbooru-tags" }

func (t *Tags) Fetch(ctx context.Context) (poller.Batch, error) {
	var path string
	if t.lastID == 0 {
		path = "/tags.json?limit=1"
	} else {
		path = fmt.Sprintf("/tags.json?page=a%d&limit=%d", t.lastID, t.client.pageSize)
	}

	var tags []apiTag
	if err := t.client.getJSON(ctx, path, &tags); err != nil {
		return poller.Batch{}, fmt.Errorf("fetch tags: %w", err)
	}

	var batch poller.Batch
	for _, tag := range tags {
		if tag.ID > t.lastID {
			t.lastID = tag.ID
		}
		batch.Entries = append(batch.Entries, poller.Entry{
			Cursor: tag.ID,
			Records: []record.Data{record.DanbooruTag{
				ID: tag.ID,
				State: record.DanbooruTagState{
					Kind: record.StatePresent,
					Present: &record.DanbooruTagData{
						Name:      tag.Name,
						Category:  tag.Category,
						PostCount: tag.PostCount,
						CreatedAt: tag.CreatedAt,
						UpdatedAt: tag.UpdatedAt,
					},
				},
			}},
		})
	}

	// Mark the tag after the newest one as confirmed absent.
	if len(batch.Entries) > 0 {
		last := &batch.Entries[0]
		for i := range batch.Entries {
			if batch.Entries[i].Cursor > last.Cursor {
				last = &batch.Entries[i]
			}
		}
		last.Records = append(last.Records, record.DanbooruTag{
			ID:    t.lastID + 1,
			State: record.DanbooruTagState{Kind: record.StateAbsent},
		})
	}

	return batch, nil
}
