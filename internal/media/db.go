package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// index is the sqlite bookkeeping database behind the media store:
// media_assets holds one row per distinct content hash, web_assets maps each
// seen URL to the hash it resolved to. The single download worker is the
// only writer, so no locking beyond sqlite's own is needed.
type index struct {
	db *sqlx.DB
}

const createIndexTables = `
	CREATE TABLE IF NOT EXISTS media_assets (
		sha256     BLOB PRIMARY KEY,
		media_type TEXT    NOT NULL,
		size       INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS web_assets (
		url    TEXT PRIMARY KEY,
		sha256 BLOB NOT NULL REFERENCES media_assets (sha256)
	);`

func openIndex(path string) (*index, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open media index: %w", err)
	}
	if _, err := db.Exec(createIndexTables); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure media index tables: %w", err)
	}
	return &index{db: db}, nil
}

func (i *index) close() error { return i.db.Close() }

type assetRow struct {
	SHA256    []byte `db:"sha256"`
	MediaType string `db:"media_type"`
	Size      int64  `db:"size"`
}

func (r assetRow) asset() (Asset, error) {
	var a Asset
	if len(r.SHA256) != len(a.Hash) {
		return a, fmt.Errorf("media index holds a %d-byte hash, want %d", len(r.SHA256), len(a.Hash))
	}
	copy(a.Hash[:], r.SHA256)
	a.Size = uint32(r.Size)
	a.Type = Type(r.MediaType)
	return a, nil
}

// assetByURL resolves a URL through the web_assets mapping. A nil asset
// with nil error means the URL has never been stored.
func (i *index) assetByURL(ctx context.Context, url string) (*Asset, error) {
	var row assetRow
	err := i.db.GetContext(ctx, &row, `
		SELECT media_assets.sha256, media_type, size
		FROM media_assets
		INNER JOIN web_assets ON media_assets.sha256 = web_assets.sha256
		WHERE web_assets.url = ?`, url)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a, err := row.asset()
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (i *index) assetByHash(ctx context.Context, hash [32]byte) (*Asset, error) {
	var row assetRow
	err := i.db.GetContext(ctx, &row, `
		SELECT sha256, media_type, size FROM media_assets WHERE sha256 = ?`, hash[:])
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a, err := row.asset()
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// upsertAsset inserts or replaces the asset row for its hash. Used both for
// new assets and for upgrading an Unknown media type in place.
func (i *index) upsertAsset(ctx context.Context, a Asset) error {
	_, err := i.db.ExecContext(ctx, `
		INSERT INTO media_assets (sha256, media_type, size)
		VALUES (?, ?, ?)
		ON CONFLICT (sha256) DO UPDATE SET
			media_type = excluded.media_type,
			size = excluded.size`,
		a.Hash[:], string(a.Type), int64(a.Size))
	return err
}

// linkWebAsset points a URL at a stored hash, replacing any prior mapping.
func (i *index) linkWebAsset(ctx context.Context, url string, hash [32]byte) error {
	_, err := i.db.ExecContext(ctx, `
		INSERT INTO web_assets (url, sha256)
		VALUES (?, ?)
		ON CONFLICT (url) DO UPDATE SET sha256 = excluded.sha256`,
		url, hash[:])
	return err
}

// assetCount reports the number of distinct stored assets.
func (i *index) assetCount(ctx context.Context) (int, error) {
	var n int
	err := i.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM media_assets")
	return n, err
}
