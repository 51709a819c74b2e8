package poller

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/danya02/multibooru-mirror/internal/record"
)

// Entry is one upstream listing item, positioned on the loop's watermark
// axis. Cursor is a Unix-millisecond update timestamp for sources ordered by
// update time, or the native entity ID for sources that only guarantee ID
// ordering. An entry may expand to several records (a post plus the media
// observation it triggered).
type Entry struct {
	Cursor  int64
	Records []record.Data
}

// Batch is the result of one listing fetch. ItemErrors counts entries that
// had to be skipped for per-item reasons (bad date, bad shape); they feed
// the loop's circuit breaker without aborting the batch.
type Batch struct {
	Entries    []Entry
	ItemErrors int
}

// Source fetches one page of upstream listings for a single
// (source, entity kind) pair.
type Source interface {
	// Name identifies the loop in logs, e.g. "danbooru.comments".
	Name() string
	Fetch(ctx context.Context) (Batch, error)
}

// Submitter hands finished records to the persistence path, either a local
// backend sender or a bus publisher.
type Submitter interface {
	Submit(ctx context.Context, rec record.Record) error
}
