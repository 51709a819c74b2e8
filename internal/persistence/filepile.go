package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/danya02/multibooru-mirror/internal/record"
	"github.com/danya02/multibooru-mirror/internal/snowflake"
)

// FilePile stores each record as one write-once file named by a freshly
// minted snowflake. It has no lookup structure: the pile is an append-only
// audit trail and replay source.
type FilePile struct {
	dir    string
	logger *slog.Logger
	lc     lifecycle
}

func NewFilePile(dir string, logger *slog.Logger) *FilePile {
	return &FilePile{dir: dir, logger: logger.With("backend", "filepile")}
}

func (p *FilePile) Init(_ context.Context) error {
	if err := os.MkdirAll(p.dir, 0o750); err != nil {
		return fmt.Errorf("create records directory: %w", err)
	}
	p.lc.ready()
	return nil
}

func (p *FilePile) Sender() Sender {
	p.lc.requireReady()
	return &filePileSender{pile: p}
}

func (p *FilePile) Shutdown(_ context.Context) error {
	p.lc.shutdown()
	return nil
}

type filePileSender struct {
	pile *FilePile
}

func (s *filePileSender) Submit(ctx context.Context, rec record.Record) {
	_ = s.SubmitAndJoin(ctx, rec)
}

func (s *filePileSender) SubmitAndJoin(_ context.Context, rec record.Record) <-chan error {
	p := s.pile
	if err := p.lc.begin(); err != nil {
		return resolved(err)
	}

	ch := make(chan error, 1)
	go func() {
		defer p.lc.end()
		ch <- p.write(rec)
	}()
	return ch
}

func (p *FilePile) write(rec record.Record) error {
	data, err := record.Encode(rec)
	if err != nil {
		return &StorageError{Backend: "filepile", Err: fmt.Errorf("encode record: %w", err)}
	}

	name := snowflake.NewRandom()
	path := filepath.Join(p.dir, name.String()+".json")
	p.logger.Debug("writing record", "file", path, "key", rec.Key())

	if err := os.WriteFile(path, data, 0o640); err != nil {
		return &StorageError{Backend: "filepile", Err: fmt.Errorf("write record file: %w", err)}
	}
	return nil
}
