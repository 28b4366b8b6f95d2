// Package engine is the host side of the sync protocol: the Section Store
// and the Sync Engine actor that keeps one render surface consistent with
// it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hazyhaar/pagesync/hydrate"
	"github.com/hazyhaar/pagesync/protocol"
	"github.com/hazyhaar/pagesync/section"
	"github.com/hazyhaar/pagesync/transport"
)

var (
	// ErrNoActiveElement is returned by Command when nothing is selected.
	ErrNoActiveElement = errors.New("engine: no active element")
	// ErrStopped is returned by host API calls after Run has returned.
	ErrStopped = errors.New("engine: stopped")
)

// Persister receives every committed section.
type Persister interface {
	Save(ctx context.Context, docID string, position int, s section.Section) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithHydrator sets the pipeline applied to incoming CHANGE content. Nil
// commits content as received.
func WithHydrator(p *hydrate.Pipeline) Option { return func(e *Engine) { e.hydrator = p } }

// WithRecords sets the collaborator records source, read at every commit.
func WithRecords(fn func() hydrate.Records) Option { return func(e *Engine) { e.records = fn } }

// WithPersister delivers commits to p under docID.
func WithPersister(p Persister, docID string) Option {
	return func(e *Engine) { e.persister, e.docID = p, docID }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// OnSelect is called from the loop when the surface reports a section hit.
func OnSelect(fn func(sectionID string)) Option { return func(e *Engine) { e.onSelect = fn } }

// OnElement is called from the loop on every ELEMENT_SELECT.
func OnElement(fn func(section.ActiveElement)) Option { return func(e *Engine) { e.onElement = fn } }

// OnCommit is called from the loop after a section is committed.
func OnCommit(fn func(section.Section)) Option { return func(e *Engine) { e.onCommit = fn } }

// Stats are cumulative counters.
type Stats struct {
	Syncs   int64 `json:"syncs"`
	Commits int64 `json:"commits"`
	Dropped int64 `json:"dropped"`
}

type request struct {
	fn   func(ctx context.Context) error
	errc chan error
}

// Engine serves one surface connection. Host API methods are safe for
// concurrent use; they are queued into the loop.
type Engine struct {
	store     *Store
	hydrator  *hydrate.Pipeline
	records   func() hydrate.Records
	persister Persister
	docID     string
	logger    *slog.Logger
	onSelect  func(string)
	onElement func(section.ActiveElement)
	onCommit  func(section.Section)

	reqs     chan request
	done     chan struct{}
	doneOnce sync.Once

	// Owned by the Run goroutine.
	conn     transport.Conn
	ready    bool
	editing  bool
	pending  bool
	lastFP   string
	selected string
	active   *section.ActiveElement

	syncs   atomic.Int64
	commits atomic.Int64
	dropped atomic.Int64
}

// New creates an Engine over store.
func New(store *Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		records: func() hydrate.Records { return hydrate.Records{} },
		logger:  slog.Default(),
		reqs:    make(chan request),
		done:    make(chan struct{}),
	}
	e.hydrator = hydrate.New()
	for _, o := range opts {
		o(e)
	}
	return e
}

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	return Stats{Syncs: e.syncs.Load(), Commits: e.commits.Load(), Dropped: e.dropped.Load()}
}

// Run serves conn until ctx is done or the connection closes. An Engine
// runs once.
func (e *Engine) Run(ctx context.Context, conn transport.Conn) error {
	defer e.doneOnce.Do(func() { close(e.done) })
	e.conn = conn
	changed := e.store.Changed()
	inbox := conn.Inbox()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-inbox:
			if !ok {
				e.logger.Debug("engine: connection closed")
				return nil
			}
			e.handle(ctx, m)
		case <-changed:
			changed = e.store.Changed()
			e.push(ctx)
		case r := <-e.reqs:
			r.errc <- r.fn(ctx)
		}
	}
}

func (e *Engine) handle(ctx context.Context, m protocol.Message) {
	switch m.Type {
	case protocol.TypeReady:
		e.ready, e.editing, e.lastFP = true, false, ""
		e.push(ctx)
	case protocol.TypeChange:
		e.commit(ctx, m.ID, m.Content)
	case protocol.TypeSelect:
		if _, ok := e.store.Get(m.SectionID); !ok {
			e.drop("SELECT", m.SectionID)
			return
		}
		e.selected = m.SectionID
		if e.onSelect != nil {
			e.onSelect(m.SectionID)
		}
	case protocol.TypeElementSelect:
		if _, ok := e.store.Get(m.Element.SectionID); !ok {
			e.drop("ELEMENT_SELECT", m.Element.SectionID)
			return
		}
		el := *m.Element
		e.active = &el
		if e.onElement != nil {
			e.onElement(el)
		}
	case protocol.TypeEditing:
		e.editing = m.Editing
		if !e.editing && e.pending {
			e.push(ctx)
		}
	default:
		e.logger.Debug("engine: ignore surface message", "type", m.Type)
	}
}

func (e *Engine) drop(kind, id string) {
	e.dropped.Add(1)
	e.logger.Debug("engine: drop message for unknown section", "type", kind, "section", id)
}

// push sends the store to the surface unless an edit is in flight, in
// which case the SYNC waits for EDITING false.
func (e *Engine) push(ctx context.Context) {
	if !e.ready {
		return
	}
	if e.editing {
		e.pending = true
		return
	}
	e.pending = false
	sections := e.store.Sections()
	if e.selected != "" && section.Index(sections, e.selected) < 0 {
		e.selected = ""
	}
	if e.active != nil && section.Index(sections, e.active.SectionID) < 0 {
		e.active = nil
	}
	fp := protocol.Fingerprint(sections, e.selected)
	if fp == e.lastFP {
		return
	}
	if err := e.conn.Send(ctx, protocol.Sync(sections, e.selected)); err != nil {
		e.logger.Warn("engine: send sync", "error", err)
		return
	}
	e.lastFP = fp
	e.syncs.Add(1)
}

// commit hydrates and stores one section's content. Unknown ids are
// dropped.
func (e *Engine) commit(ctx context.Context, id, content string) {
	s, ok := e.store.Get(id)
	if !ok {
		e.drop("CHANGE", id)
		return
	}
	s.Content = content
	if e.hydrator != nil {
		s = e.hydrator.Section(s, e.records())
	}
	if !e.store.Commit(id, s.Content) {
		e.drop("CHANGE", id)
		return
	}
	e.commits.Add(1)
	if e.persister != nil {
		if err := e.persister.Save(ctx, e.docID, e.store.Position(id), s); err != nil {
			e.logger.Warn("engine: persist section", "section", id, "error", err)
		}
	}
	if e.onCommit != nil {
		e.onCommit(s)
	}
}

// do runs fn inside the loop.
func (e *Engine) do(ctx context.Context, fn func(ctx context.Context) error) error {
	r := request{fn: fn, errc: make(chan error, 1)}
	select {
	case e.reqs <- r:
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-r.errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Command sends an action to the active element. CLEAR_SELECTION is always
// accepted and also forgets the host copy of the active element.
func (e *Engine) Command(ctx context.Context, action protocol.Action, value string) error {
	if !action.Valid() {
		return fmt.Errorf("engine: command: invalid action %q", action)
	}
	return e.do(ctx, func(ctx context.Context) error {
		if action == protocol.ActionClearSelection {
			e.active = nil
		} else if e.active == nil {
			return ErrNoActiveElement
		}
		return e.conn.Send(ctx, protocol.Command(action, value))
	})
}

// Select marks a section as selected and re-syncs.
func (e *Engine) Select(ctx context.Context, id string) error {
	return e.do(ctx, func(ctx context.Context) error {
		if _, ok := e.store.Get(id); !ok {
			return fmt.Errorf("engine: select: unknown section %q", id)
		}
		e.selected = id
		e.push(ctx)
		return nil
	})
}

// Deselect clears the section selection and the active element.
func (e *Engine) Deselect(ctx context.Context) error {
	return e.do(ctx, func(ctx context.Context) error {
		e.selected = ""
		if e.active != nil {
			e.active = nil
			if err := e.conn.Send(ctx, protocol.Command(protocol.ActionClearSelection, "")); err != nil {
				return err
			}
		}
		e.push(ctx)
		return nil
	})
}

// Active returns the element last reported by the surface.
func (e *Engine) Active(ctx context.Context) (section.ActiveElement, bool, error) {
	var (
		el section.ActiveElement
		ok bool
	)
	err := e.do(ctx, func(context.Context) error {
		if e.active != nil {
			el, ok = *e.active, true
		}
		return nil
	})
	return el, ok, err
}

// Selected returns the selected section id, or "".
func (e *Engine) Selected(ctx context.Context) (string, error) {
	var id string
	err := e.do(ctx, func(context.Context) error {
		id = e.selected
		return nil
	})
	return id, err
}
