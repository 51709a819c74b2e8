package persistence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/danya02/multibooru-mirror/internal/record"
)

// Duplicater fans every submission out to two child backends.
//
// Outcome policy: if the first backend returns a recoverable error it is
// logged and the second backend's outcome is reported instead, so a degraded
// child does not uniformly fail the pair. A child whose sender went away
// surfaces as ErrSenderDropped, distinct from a storage failure.
//
// The first-backend error precedence is asymmetric on purpose: it mirrors
// the behavior this store has always had, and downstream consumers key off
// the second (canonical) backend's outcome.
type Duplicater struct {
	first  Persistence
	second Persistence
	logger *slog.Logger

	// shuttingDown closes the local gate before either child is
	// contacted, so no submission can race past a cascading shutdown.
	shuttingDown atomic.Bool
}

func NewDuplicater(first, second Persistence, logger *slog.Logger) *Duplicater {
	return &Duplicater{
		first:  first,
		second: second,
		logger: logger.With("backend", "duplicater"),
	}
}

func (d *Duplicater) Init(ctx context.Context) error {
	if err := d.first.Init(ctx); err != nil {
		return err
	}
	return d.second.Init(ctx)
}

func (d *Duplicater) Sender() Sender {
	return &duplicaterSender{
		parent: d,
		first:  d.first.Sender(),
		second: d.second.Sender(),
	}
}

// Shutdown rejects new local submissions first, then shuts the children
// down concurrently.
func (d *Duplicater) Shutdown(ctx context.Context) error {
	d.shuttingDown.Store(true)

	var wg sync.WaitGroup
	var firstErr, secondErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		firstErr = d.first.Shutdown(ctx)
	}()
	go func() {
		defer wg.Done()
		secondErr = d.second.Shutdown(ctx)
	}()
	wg.Wait()

	return errors.Join(firstErr, secondErr)
}

type duplicaterSender struct {
	parent *Duplicater
	first  Sender
	second Sender
}

func (s *duplicaterSender) Submit(ctx context.Context, rec record.Record) {
	_ = s.SubmitAndJoin(ctx, rec)
}

func (s *duplicaterSender) SubmitAndJoin(ctx context.Context, rec record.Record) <-chan error {
	if s.parent.shuttingDown.Load() {
		return resolved(ErrShuttingDown)
	}

	firstResult := s.first.SubmitAndJoin(ctx, rec)
	secondResult := s.second.SubmitAndJoin(ctx, rec)

	ch := make(chan error, 1)
	go func() {
		firstErr, firstOK := <-firstResult
		secondErr, secondOK := <-secondResult

		switch {
		case !firstOK || !secondOK:
			ch <- ErrSenderDropped
		case firstErr != nil:
			s.parent.logger.Warn("first backend failed, reporting second's outcome",
				"error", firstErr, "key", rec.Key())
			ch <- secondErr
		default:
			ch <- secondErr
		}
	}()
	return ch
}
