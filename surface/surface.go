// Package surface is the render-surface actor. It owns an instrumented
// tree with one container per section, coalesces edit events into dirty
// containers and reports them to the host as CHANGE messages. It only ever
// talks to the host through a transport.Conn.
package surface

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hazyhaar/pagesync/protocol"
	"github.com/hazyhaar/pagesync/transport"
)

// ErrStopped is returned by Dispatch once Run has returned.
var ErrStopped = errors.New("surface: stopped")

// Option configures a Surface.
type Option func(*Surface)

// WithClock injects the scheduler. Default: the wall clock.
func WithClock(c clock.Clock) Option { return func(s *Surface) { s.clock = c } }

// WithDebounce sets the debounce window. Default: 700ms.
func WithDebounce(d time.Duration) Option { return func(s *Surface) { s.cfg.Debounce = d } }

// WithFlushInterval sets the staleness bound. Default: 1.2s.
func WithFlushInterval(d time.Duration) Option { return func(s *Surface) { s.cfg.Interval = d } }

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Surface) {
		if l != nil {
			s.logger = l
		}
	}
}

// Stats are cumulative counters, safe to read from any goroutine.
type Stats struct {
	Rebuilds int64 `json:"rebuilds"`
	Changes  int64 `json:"changes"`
	Dropped  int64 `json:"dropped"`
}

type dispatch struct {
	ev   Event
	done chan struct{}
}

// activeRef locates the active element by path so it survives edits to
// sibling nodes.
type activeRef struct {
	sectionID string
	xpath     string
}

// Surface is the render-surface actor. Create with New, then Run.
type Surface struct {
	conn   transport.Conn
	clock  clock.Clock
	cfg    trackerConfig
	logger *slog.Logger

	events  chan dispatch
	stopped chan struct{}

	// Owned by the Run goroutine.
	doc     *document
	tracker *tracker
	lastFP  string
	active  *activeRef
	editing bool

	rebuilds atomic.Int64
	changes  atomic.Int64
	dropped  atomic.Int64
}

// New creates a Surface talking over conn.
func New(conn transport.Conn, opts ...Option) *Surface {
	s := &Surface{
		conn:    conn,
		clock:   clock.New(),
		logger:  slog.Default(),
		events:  make(chan dispatch),
		stopped: make(chan struct{}),
		doc:     newDocument(),
	}
	for _, o := range opts {
		o(s)
	}
	s.cfg.defaults()
	s.tracker = newTracker(s.cfg, s.clock)
	return s
}

// Stats returns the current counters.
func (s *Surface) Stats() Stats {
	return Stats{Rebuilds: s.rebuilds.Load(), Changes: s.changes.Load(), Dropped: s.dropped.Load()}
}

// Dispatch hands a user event to the loop and returns once it has been
// applied, including any synchronous flush it triggers.
func (s *Surface) Dispatch(ctx context.Context, ev Event) error {
	d := dispatch{ev: ev, done: make(chan struct{})}
	select {
	case s.events <- d:
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-d.done:
		return nil
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run announces READY and serves the loop until ctx is done or the
// connection closes. Pending dirty containers are flushed on the way out.
func (s *Surface) Run(ctx context.Context) error {
	defer close(s.stopped)
	defer s.tracker.stop()

	if err := s.conn.Send(ctx, protocol.Ready()); err != nil {
		return err
	}
	s.logger.Debug("surface: ready")

	inbox := s.conn.Inbox()
	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
			s.flush(fctx, s.tracker.takeAll())
			cancel()
			return ctx.Err()

		case m, ok := <-inbox:
			if !ok {
				s.logger.Debug("surface: connection closed")
				return nil
			}
			s.handleMessage(ctx, m)

		case d := <-s.events:
			s.handleEvent(ctx, d.ev)
			close(d.done)

		case <-s.tracker.debounceC():
			s.flush(ctx, s.tracker.takeAll())

		case <-s.tracker.tickC():
			s.flush(ctx, s.tracker.takeStale())
		}
	}
}

func (s *Surface) handleMessage(ctx context.Context, m protocol.Message) {
	switch m.Type {
	case protocol.TypeSync:
		s.applySync(ctx, m)
	case protocol.TypeUpdateActiveElement:
		s.command(ctx, m.Action, m.Value)
	default:
		s.logger.Debug("surface: ignore host message", "type", m.Type)
	}
}

// applySync rebuilds the tree unless the payload equals the last one
// applied. Unflushed edits are reported before the rebuild discards them.
func (s *Surface) applySync(ctx context.Context, m protocol.Message) {
	fp := protocol.Fingerprint(m.Sections, m.SelectedID)
	if fp == s.lastFP {
		return
	}
	if s.tracker.len() > 0 {
		s.flush(ctx, s.tracker.takeAll())
	}
	s.doc = buildDocument(m.Sections, m.SelectedID)
	s.lastFP = fp
	s.rebuilds.Add(1)
	if s.active != nil && s.doc.container(s.active.sectionID) == nil {
		s.active = nil
	}
	s.logger.Debug("surface: rebuilt", "sections", len(m.Sections))
}

// flush serialises each container and emits CHANGE. Containers that no
// longer exist are dropped, not retried.
func (s *Surface) flush(ctx context.Context, ids []string) {
	for _, id := range ids {
		c := s.doc.container(id)
		if c == nil {
			s.dropped.Add(1)
			continue
		}
		if err := s.conn.Send(ctx, protocol.Change(id, serialize(c))); err != nil {
			s.logger.Warn("surface: send change", "section", id, "error", err)
			continue
		}
		s.changes.Add(1)
	}
}

// flushNow emits one section immediately, bypassing debounce and interval.
func (s *Surface) flushNow(ctx context.Context, id string) {
	s.tracker.take(id)
	s.flush(ctx, []string{id})
}

func (s *Surface) send(ctx context.Context, m protocol.Message) {
	if err := s.conn.Send(ctx, m); err != nil {
		s.logger.Warn("surface: send", "type", m.Type, "error", err)
	}
}
