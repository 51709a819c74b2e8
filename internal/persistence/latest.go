package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/danya02/multibooru-mirror/internal/record"
)

// PostgresLatest keeps one row per (type_id, entity_type, entity_id) key
// holding the most recent record for that entity. It is the canonical
// current-state view for downstream readers; last write wins by arrival
// order at this backend.
type PostgresLatest struct {
	db     *sqlx.DB
	logger *slog.Logger
	lc     lifecycle
}

func NewPostgresLatest(db *sqlx.DB, logger *slog.Logger) *PostgresLatest {
	return &PostgresLatest{db: db, logger: logger.With("backend", "latest")}
}

const createLatestState = `
	CREATE TABLE IF NOT EXISTS latest_state (
		type_id     INTEGER NOT NULL,
		entity_type INTEGER NOT NULL,
		entity_id   BIGINT  NOT NULL,
		record_json TEXT    NOT NULL,
		PRIMARY KEY (type_id, entity_type, entity_id)
	)`

func (p *PostgresLatest) Init(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, createLatestState); err != nil {
		return fmt.Errorf("ensure latest_state table: %w", err)
	}
	p.lc.ready()
	return nil
}

func (p *PostgresLatest) Sender() Sender {
	p.lc.requireReady()
	return &postgresLatestSender{backend: p}
}

func (p *PostgresLatest) Shutdown(_ context.Context) error {
	p.lc.shutdown()
	return nil
}

type postgresLatestSender struct {
	backend *PostgresLatest
}

func (s *postgresLatestSender) Submit(ctx context.Context, rec record.Record) {
	_ = s.SubmitAndJoin(ctx, rec)
}

func (s *postgresLatestSender) SubmitAndJoin(ctx context.Context, rec record.Record) <-chan error {
	p := s.backend
	if err := p.lc.begin(); err != nil {
		return resolved(err)
	}

	ch := make(chan error, 1)
	go func() {
		defer p.lc.end()
		ch <- p.upsert(ctx, rec)
	}()
	return ch
}

func (p *PostgresLatest) upsert(ctx context.Context, rec record.Record) error {
	data, err := record.Encode(rec)
	if err != nil {
		return &StorageError{Backend: "latest", Err: fmt.Errorf("encode record: %w", err)}
	}

	key := rec.Key()
	query := `
		INSERT INTO latest_state (type_id, entity_type, entity_id, record_json)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (type_id, entity_type, entity_id) DO UPDATE SET
			record_json = EXCLUDED.record_json`

	_, err = p.db.ExecContext(ctx, query, int(key.TypeID), key.EntityType, key.EntityID, string(data))
	if err != nil {
		return &StorageError{Backend: "latest", Err: err}
	}

	p.logger.Debug("upserted record",
		"type_id", key.TypeID,
		"entity_type", key.EntityType,
		"entity_id", key.EntityID,
	)
	return nil
}
