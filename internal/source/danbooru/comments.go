package danbooru

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danya02/multibooru-mirror/internal/poller"
	"github.com/danya02/multibooru-mirror/internal/record"
)

// Comments polls /comments.json for live comments, ordered by updated_at.
// The watermark cursor is the comment's updated_at in milliseconds, so an
// edited comment is picked up again while pure score drift is not (score
// changes do not touch updated_at upstream).
type Comments struct {
	client *Client
	logger *slog.Logger
}

func NewComments(client *Client, logger *slog.Logger) *Comments {
	return &Comments{
		client: client,
		logger: logger.With("loop", "danbooru-comments"),
	}
}

func (c *Comments) Name() string { return "danbooru-comments" }

func (c *Comments) Fetch(ctx context.Context) (poller.Batch, error) {
	path := fmt.Sprintf(
		"/comments.json?group_by=comment&limit=%d&search[order]=updated_at&search[is_deleted]=false",
		c.client.pageSize,
	)

	var comments []apiComment
	if err := c.client.getJSON(ctx, path, &comments); err != nil {
		return poller.Batch{}, fmt.Errorf("fetch comments: %w", err)
	}

	var batch poller.Batch
	for _, comment := range comments {
		if comment.IsDeleted {
			c.logger.Warn("deleted comment in live listing, skipping", "comment_id", comment.ID)
			batch.ItemErrors++
			continue
		}
		batch.Entries = append(batch.Entries, poller.Entry{
			Cursor: comment.UpdatedAt.UnixMilli(),
			Records: []record.Data{record.DanbooruComment{
				ID: comment.ID,
				State: record.DanbooruCommentState{
					Kind: record.StatePresent,
					Present: &record.DanbooruCommentData{
						PostID:        comment.PostID,
						CreatedAt:     comment.CreatedAt,
						UpdatedAt:     comment.UpdatedAt,
						CreatorID:     comment.CreatorID,
						UpdaterID:     comment.UpdaterID,
						Body:          comment.Body,
						Score:         comment.Score,
						DoNotBumpPost: comment.DoNotBumpPost,
						IsSticky:      comment.IsSticky,
					},
				},
			}},
		})
	}

	return batch, nil
}

// DeletedComments is the twin of Comments querying is_deleted=true. Deletions
// are much rarer than creations, so its loop normally runs with a longer
// initial delay.
type DeletedComments struct {
	client *Client
	logger *slog.Logger
}

func NewDeletedComments(client *Client, logger *slog.Logger) *DeletedComments {
	return &DeletedComments{
		client: client,
		logger: logger.With("loop", "danbooru-deleted-comments"),
	}
}

func (c *DeletedComments) Name() string { return "danbooru-deleted-comments" }

func (c *DeletedComments) Fetch(ctx context.Context) (poller.Batch, error) {
	path := fmt.Sprintf(
		"/comments.json?group_by=comment&limit=%d&search[order]=updated_at&search[is_deleted]=true"+
			"&only=id,created_at,post_id,updated_at,is_deleted,creator[id],updater[id]",
		c.client.pageSize,
	)

	var comments []apiDeletedComment
	if err := c.client.getJSON(ctx, path, &comments); err != nil {
		return poller.Batch{}, fmt.Errorf("fetch deleted comments: %w", err)
	}

	var batch poller.Batch
	for _, comment := range comments {
		if !comment.IsDeleted {
			c.logger.Warn("live comment in deleted listing, skipping", "comment_id", comment.ID)
			batch.ItemErrors++
			continue
		}
		batch.Entries = append(batch.Entries, poller.Entry{
			Cursor: comment.UpdatedAt.UnixMilli(),
			Records: []record.Data{record.DanbooruComment{
				ID: comment.ID,
				State: record.DanbooruCommentState{
					Kind: record.StateDeleted,
					Deleted: &record.DanbooruCommentTombstone{
						PostID:    comment.PostID,
						CreatedAt: comment.CreatedAt,
						UpdatedAt: comment.UpdatedAt,
						CreatorID: comment.Creator.ID,
						UpdaterID: comment.Updater.ID,
					},
				},
			}},
		})
	}

	return batch, nil
}
