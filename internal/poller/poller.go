// Package poller runs the per-(source, entity kind) acquisition loops.
//
// Each loop owns its watermark, delay and error-count state exclusively;
// nothing is shared between loops. The delay follows an additive-increase /
// additive-decrease controller trading freshness against upstream load, and
// a small error budget acts as a circuit breaker against persistent
// misconfiguration such as bad credentials.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/danya02/multibooru-mirror/internal/record"
)

// ErrTooManyErrors terminates a loop once its error budget is exhausted.
// It signals broken assumptions, not transient trouble, so the supervisor
// should log it and exit rather than restart blindly.
var ErrTooManyErrors = errors.New("poller: too many errors")

// Config holds the loop controller parameters.
type Config struct {
	// InitialDelay is the starting poll interval.
	InitialDelay time.Duration
	// MinDelay and MaxDelay clamp the interval.
	MinDelay time.Duration
	MaxDelay time.Duration
	// Step is the additive adjustment applied after each batch.
	Step time.Duration
	// Jitter spreads each sleep uniformly over [delay-Jitter, delay+Jitter].
	Jitter time.Duration
	// ErrorBudget is the number of errors tolerated before the loop dies.
	ErrorBudget int
	// ResetErrorsOnSuccess clears the error count whenever a batch yields
	// qualifying entries. Off by default: historically the counter only
	// ever grew within a process lifetime.
	ResetErrorsOnSuccess bool
}

func (c *Config) setDefaults() {
	if c.InitialDelay == 0 {
		c.InitialDelay = 30 * time.Second
	}
	if c.MinDelay == 0 {
		c.MinDelay = 10 * time.Second
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 1800 * time.Second
	}
	if c.Step == 0 {
		c.Step = 5 * time.Second
	}
	if c.Jitter == 0 {
		c.Jitter = 5 * time.Second
	}
	if c.ErrorBudget == 0 {
		c.ErrorBudget = 5
	}
}

// state is the loop-local watermark and backoff state. It lives for the
// loop's lifetime only; a process restart starts over from zero.
type state struct {
	watermark  int64
	delay      time.Duration
	errorCount int
}

// Loop polls one source and submits qualifying records in watermark order.
type Loop struct {
	source    Source
	submitter Submitter
	cfg       Config
	logger    *slog.Logger
}

func NewLoop(source Source, submitter Submitter, cfg Config, logger *slog.Logger) *Loop {
	cfg.setDefaults()
	return &Loop{
		source:    source,
		submitter: submitter,
		cfg:       cfg,
		logger:    logger.With("loop", source.Name()),
	}
}

// Run polls until ctx is canceled (returns nil) or the error budget is
// exhausted (returns ErrTooManyErrors).
func (l *Loop) Run(ctx context.Context) error {
	st := &state{delay: l.cfg.InitialDelay}
	l.logger.Info("loop started", "initial_delay", st.delay)

	for {
		if err := l.sleep(ctx, st.delay); err != nil {
			l.logger.Info("loop stopped")
			return nil
		}
		if err := l.runOnce(ctx, st); err != nil {
			l.logger.Error("loop terminating", "error", err, "error_count", st.errorCount)
			return fmt.Errorf("loop %s: %w", l.source.Name(), err)
		}
	}
}

// sleep waits a jittered interval or until ctx is canceled.
func (l *Loop) sleep(ctx context.Context, delay time.Duration) error {
	jitter := time.Duration(rand.Int64N(int64(2*l.cfg.Jitter))) - l.cfg.Jitter
	d := delay + jitter
	if d < 0 {
		d = 0
	}
	l.logger.Debug("sleeping", "duration", d)

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// runOnce performs one poll iteration against st.
func (l *Loop) runOnce(ctx context.Context, st *state) error {
	batch, err := l.source.Fetch(ctx)
	if err != nil {
		l.logger.Error("fetch failed", "error", err)
		if fatal := l.countErrors(st, 1); fatal != nil {
			return fatal
		}
		l.adjustDelay(st, 0)
		return nil
	}
	if fatal := l.countErrors(st, batch.ItemErrors); fatal != nil {
		return fatal
	}

	// Process in ascending watermark order so the watermark only moves
	// forward even when the upstream returns a page out of order.
	entries := append([]Entry(nil), batch.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Cursor < entries[j].Cursor })

	qualifying := 0
	for _, entry := range entries {
		if entry.Cursor <= st.watermark {
			continue
		}

		submitted := true
		for _, data := range entry.Records {
			rec := record.New(data)
			if err := l.submitter.Submit(ctx, rec); err != nil {
				l.logger.Error("submit failed", "error", err, "key", rec.Key())
				if fatal := l.countErrors(st, 1); fatal != nil {
					return fatal
				}
				submitted = false
				break
			}
		}
		if !submitted {
			continue
		}

		st.watermark = entry.Cursor
		qualifying++
	}

	l.logger.Debug("batch done",
		"qualifying", qualifying,
		"skipped_items", batch.ItemErrors,
		"watermark", st.watermark,
	)

	if qualifying > 0 && l.cfg.ResetErrorsOnSuccess {
		st.errorCount = 0
	}
	l.adjustDelay(st, qualifying)
	return nil
}

// adjustDelay applies the additive-increase/additive-decrease rule: back
// off when a poll finds nothing, speed up when it finds more than one.
func (l *Loop) adjustDelay(st *state, qualifying int) {
	switch {
	case qualifying == 0:
		st.delay += l.cfg.Step
	case qualifying > 1:
		st.delay -= l.cfg.Step
	}
	if st.delay > l.cfg.MaxDelay {
		st.delay = l.cfg.MaxDelay
	}
	if st.delay < l.cfg.MinDelay {
		st.delay = l.cfg.MinDelay
	}
}

func (l *Loop) countErrors(st *state, n int) error {
	for i := 0; i < n; i++ {
		st.errorCount++
		l.logger.Warn("error counted", "error_count", st.errorCount, "budget", l.cfg.ErrorBudget)
		if st.errorCount > l.cfg.ErrorBudget {
			return ErrTooManyErrors
		}
	}
	return nil
}
