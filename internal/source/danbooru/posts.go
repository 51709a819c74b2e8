package danbooru

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danya02/multibooru-mirror/internal/media"
	"github.com/danya02/multibooru-mirror/internal/poller"
	"github.com/danya02/multibooru-mirror/internal/record"
)

// Downloader resolves a media URL into a committed asset. Satisfied by
// *media.Store.
type Downloader interface {
	EnqueueDownload(ctx context.Context, rawURL string) <-chan media.Result
}

// Posts polls /posts.json in ID order using a-pagination. Each post's media
// asset is resolved through the downloader before the records are handed to
// the loop, so a post record never precedes knowledge about its file.
type Posts struct {
	client     *Client
	downloader Downloader
	logger     *slog.Logger

	// lastID drives the page=a<id> request. It duplicates the loop's
	// watermark because request building needs it before Fetch returns.
	lastID int64
}

func NewPosts(client *Client, downloader Downloader, logger *slog.Logger) *Posts {
	return &Posts{
		client:     client,
		downloader: downloader,
		logger:     logger.With("loop", "danbooru-posts"),
	}
}

func (p *Posts) Name() string { return "danbooru-posts" }

func (p *Posts) Fetch(ctx context.Context) (poller.Batch, error) {
	var path string
	if p.lastID == 0 {
		// Bootstrap: the newest post is the starting point.
		path = "/posts.json?limit=1"
	} else {
		path = fmt.Sprintf("/posts.json?page=a%d&limit=%d", p.lastID, p.client.pageSize)
	}

	var posts []apiPost
	if err := p.client.getJSON(ctx, path, &posts); err != nil {
		return poller.Batch{}, fmt.Errorf("fetch posts: %w", err)
	}

	type pending struct {
		post  apiPost
		reply <-chan media.Result
	}

	// Enqueue all downloads first so the media worker can pipeline them.
	pendings := make([]pending, 0, len(posts))
	for _, post := range posts {
		item := pending{post: post}
		if post.FileURL != "" {
			item.reply = p.downloader.EnqueueDownload(ctx, post.FileURL)
		}
		pendings = append(pendings, item)
	}

	var batch poller.Batch
	for _, item := range pendings {
		post := item.post
		if post.ID > p.lastID {
			p.lastID = post.ID
		}

		records := []record.Data{record.DanbooruPost{
			ID: post.ID,
			State: record.DanbooruPostState{
				Kind: record.StatePresent,
				Present: &record.DanbooruPostData{
					UploaderID: post.UploaderID,
					CreatedAt:  post.CreatedAt,
					UpdatedAt:  post.UpdatedAt,
					Score:      post.Score,
					Rating:     post.Rating,
					TagString:  post.TagString,
					FileURL:    post.FileURL,
					MD5:        post.MD5,
					FileExt:    post.FileExt,
					FileSize:   post.FileSize,
				},
			},
		}}

		if item.reply != nil {
			records = append(records, p.mediaRecord(ctx, post, item.reply))
		}

		batch.Entries = append(batch.Entries, poller.Entry{
			Cursor:  post.ID,
			Records: records,
		})
	}

	// Record that the post after the newest one does not exist yet, so a
	// reader can tell "not mirrored" from "confirmed absent".
	if len(batch.Entries) > 0 {
		last := &batch.Entries[0]
		for i := range batch.Entries {
			if batch.Entries[i].Cursor > last.Cursor {
				last = &batch.Entries[i]
			}
		}
		last.Records = append(last.Records, record.DanbooruPost{
			ID:    p.lastID + 1,
			State: record.DanbooruPostState{Kind: record.StateAbsent},
		})
	}

	return batch, nil
}

func (p *Posts) mediaRecord(ctx context.Context, post apiPost, reply <-chan media.Result) record.Data {
	var result media.Result
	select {
	case result = <-reply:
	case <-ctx.Done():
		result = media.Result{Err: ctx.Err()}
	}

	if result.Err != nil {
		p.logger.Error("media download failed",
			"post_id", post.ID,
			"url", post.FileURL,
			"error", result.Err,
		)
		return record.Media{
			Locator: post.FileURL,
			State: record.MediaState{
				Kind:  record.MediaDownloadError,
				Error: result.Err.Error(),
			},
		}
	}

	p.logger.Debug("media downloaded", "post_id", post.ID, "path", result.Asset.Path())
	return record.Media{
		Locator: post.FileURL,
		State: record.MediaState{
			Kind:     record.MediaPresent,
			MediaRef: result.Asset.Path(),
		},
	}
}
