// Package persistence turns a stream of records into durable storage.
//
// A backend moves through Uninitialized → Ready → ShuttingDown → Closed.
// Senders are cheap handles that may be shared across goroutines; a
// submission arriving after shutdown has begun fails fast with
// ErrShuttingDown instead of blocking or being dropped silently.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/danya02/multibooru-mirror/internal/record"
)

var (
	// ErrShuttingDown is returned for submissions made while the backend
	// is shutting down or closed.
	ErrShuttingDown = errors.New("persistence: shutting down")
	// ErrSenderDropped means the receiving side of a backend went away
	// before reporting an outcome. The caller must not assume the record
	// was not delivered.
	ErrSenderDropped = errors.New("persistence: sender dropped")
)

// StorageError is a typed failure from a specific backend.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("persistence: %s backend: %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Persistence is a record-storing backend.
type Persistence interface {
	// Init performs idempotent setup. It must be called before Sender.
	Init(ctx context.Context) error
	// Sender returns a shareable submission handle. It panics if called
	// before Init.
	Sender() Sender
	// Shutdown stops accepting new submissions and waits for in-flight
	// ones to complete before returning.
	Shutdown(ctx context.Context) error
}

// Sender submits records to its backend.
type Sender interface {
	// Submit hands off a record without waiting for the outcome. It is
	// defined as SubmitAndJoin with the result discarded: the backend
	// performs the same durability work either way.
	Submit(ctx context.Context, rec record.Record)
	// SubmitAndJoin hands off a record and returns a channel that yields
	// the outcome once the record has been durably handled (nil) or
	// rejected (a typed error). The channel is closed without a value if
	// the backend goes away before deciding.
	SubmitAndJoin(ctx context.Context, rec record.Record) <-chan error
}

// backend lifecycle states.
const (
	stateUninitialized = iota
	stateReady
	stateShuttingDown
	stateClosed
)

// lifecycle tracks a backend's state machine and its in-flight submissions.
type lifecycle struct {
	mu    sync.Mutex
	state int
	wg    sync.WaitGroup
}

func (l *lifecycle) ready() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == stateUninitialized {
		l.state = stateReady
	}
}

func (l *lifecycle) requireReady() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == stateUninitialized {
		panic("persistence: Sender called before Init")
	}
}

// begin registers an in-flight submission. It fails once shutdown has begun.
func (l *lifecycle) begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != stateReady {
		return ErrShuttingDown
	}
	l.wg.Add(1)
	return nil
}

func (l *lifecycle) end() { l.wg.Done() }

// shutdown flips the state and waits for in-flight submissions.
func (l *lifecycle) shutdown() {
	l.mu.Lock()
	if l.state == stateClosed {
		l.mu.Unlock()
		return
	}
	l.state = stateShuttingDown
	l.mu.Unlock()

	l.wg.Wait()

	l.mu.Lock()
	l.state = stateClosed
	l.mu.Unlock()
}

// resolved returns a channel already holding err (or a clean nil outcome).
func resolved(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	return ch
}
