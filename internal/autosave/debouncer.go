// Package autosave coalesces bursts of edits into a single save. Every edit
// restarts the quiet period of its (assignment, sub-assignment) pair; when the
// period elapses the latest state is saved exactly once.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Saver is the persistence step; *answers.Adapter satisfies it.
type Saver interface {
	Save(ctx context.Context, assignmentID, subID, html string) (bool, error)
}

// Result reports what happened to one submitted state.
type Result struct {
	Saved      bool // persisted; false for placeholders and missing ids
	Superseded bool // a newer edit replaced this state before it was saved
	Err        error
}

var ErrClosed = errors.New("autosave: closed")

type pairKey struct{ assignmentID, subID string }

type entry struct {
	html   string
	gen    uint64
	timer  *time.Timer
	waiter chan Result
}

type Debouncer struct {
	saver     Saver
	quiet     time.Duration
	log       *zap.Logger
	onSaved   func(assignmentID, subID string)
	saveLimit time.Duration

	mu       sync.Mutex
	pending  map[pairKey]*entry
	closed   bool
	inflight sync.WaitGroup
}

type Option func(*Debouncer)

func WithLogger(l *zap.Logger) Option { return func(d *Debouncer) { d.log = l } }

// OnSaved is called after every successful save.
func OnSaved(fn func(assignmentID, subID string)) Option {
	return func(d *Debouncer) { d.onSaved = fn }
}

func New(saver Saver, quiet time.Duration, opts ...Option) *Debouncer {
	d := &Debouncer{
		saver:     saver,
		quiet:     quiet,
		log:       zap.NewNop(),
		saveLimit: 10 * time.Second,
		pending:   map[pairKey]*entry{},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Submit records html as the latest state of the pair and restarts its quiet
// period. The returned channel yields exactly one Result.
func (d *Debouncer) Submit(assignmentID, subID, html string) <-chan Result {
	ch := make(chan Result, 1)
	if assignmentID == "" || subID == "" {
		ch <- Result{}
		return ch
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		ch <- Result{Err: ErrClosed}
		return ch
	}

	k := pairKey{assignmentID, subID}
	e := d.pending[k]
	if e == nil {
		e = &entry{}
		d.pending[k] = e
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	if e.waiter != nil {
		e.waiter <- Result{Superseded: true}
	}
	e.html = html
	e.gen++
	e.waiter = ch
	gen := e.gen
	e.timer = time.AfterFunc(d.quiet, func() { d.fire(k, e, gen) })
	return ch
}

// Pending returns the unsaved state of the pair, if any.
func (d *Debouncer) Pending(assignmentID, subID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.pending[pairKey{assignmentID, subID}]
	if !ok {
		return "", false
	}
	return e.html, true
}

// fire saves e if it is still the pending entry of k at generation gen. A
// flush may have replaced the entry while this timer waited for the lock.
func (d *Debouncer) fire(k pairKey, e *entry, gen uint64) {
	d.mu.Lock()
	if d.pending[k] != e || e.gen != gen || d.closed {
		d.mu.Unlock()
		return
	}
	delete(d.pending, k)
	d.inflight.Add(1)
	d.mu.Unlock()

	defer d.inflight.Done()
	ctx, cancel := context.WithTimeout(context.Background(), d.saveLimit)
	defer cancel()
	d.save(ctx, k, e)
}

func (d *Debouncer) save(ctx context.Context, k pairKey, e *entry) {
	saved, err := d.saver.Save(ctx, k.assignmentID, k.subID, e.html)
	if err != nil {
		d.log.Error("autosave failed", zap.String("assignment", k.assignmentID), zap.String("sub", k.subID), zap.Error(err))
	} else if saved && d.onSaved != nil {
		d.onSaved(k.assignmentID, k.subID)
	}
	e.waiter <- Result{Saved: saved, Err: err}
}

// take removes and returns every pending entry with its timer stopped.
func (d *Debouncer) take() map[pairKey]*entry {
	out := d.pending
	d.pending = map[pairKey]*entry{}
	for _, e := range out {
		e.timer.Stop()
	}
	return out
}

// Flush saves every pending state now. The saves outlive a cancelled ctx,
// bounded like timer-driven saves, since the taken states exist nowhere else.
func (d *Debouncer) Flush(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	batch := d.take()
	d.inflight.Add(1)
	d.mu.Unlock()
	defer d.inflight.Done()

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.saveLimit)
	defer cancel()
	for k, e := range batch {
		d.save(sctx, k, e)
	}
}

// Close flushes pending states, waits for saves in progress and rejects
// further submissions.
func (d *Debouncer) Close(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	batch := d.take()
	d.mu.Unlock()

	for k, e := range batch {
		d.save(ctx, k, e)
	}
	d.inflight.Wait()
}
