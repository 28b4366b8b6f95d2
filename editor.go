// Package pagesync assembles the visual section editor: a document store
// backed by SQLite, one sync engine per connected surface, an HTTP host
// serving the browser surface and a JSON API, and MCP tools over the same
// operations.
package pagesync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/hazyhaar/pagesync/engine"
	"github.com/hazyhaar/pagesync/hydrate"
	"github.com/hazyhaar/pagesync/idgen"
	"github.com/hazyhaar/pagesync/kit"
	"github.com/hazyhaar/pagesync/internal/dbopen"
	"github.com/hazyhaar/pagesync/internal/dbwatch"
	"github.com/hazyhaar/pagesync/internal/history"
	"github.com/hazyhaar/pagesync/internal/persist"
	"github.com/hazyhaar/pagesync/outline"
	"github.com/hazyhaar/pagesync/protocol"
	"github.com/hazyhaar/pagesync/section"
	"github.com/hazyhaar/pagesync/surface"
	"github.com/hazyhaar/pagesync/transport"
)

var (
	// ErrNoSession is returned by surface-bound operations while no surface
	// is connected.
	ErrNoSession = errors.New("pagesync: no surface connected")
	// ErrNotFound is returned for unknown section ids.
	ErrNotFound = errors.New("pagesync: section not found")
	// ErrInvalid is returned for documents that cannot be stored as given.
	ErrInvalid = errors.New("pagesync: invalid document")
	// ErrExists is returned by Create for an id already in the document.
	ErrExists = errors.New("pagesync: section exists")
)

// Editor owns one document and the sessions editing it.
type Editor struct {
	cfg      Config
	logger   *slog.Logger
	db       *sql.DB
	persist  *persist.Store
	history  *history.Log
	store    *engine.Store
	hydrator *hydrate.Pipeline
	outliner *outline.Outliner
	tap      io.WriteCloser

	mu      sync.Mutex
	records hydrate.Records
	current *engine.Engine
	nextID  uint64
}

// New opens the store, seeds it from cfg when empty and loads the document.
func New(ctx context.Context, cfg Config) (*Editor, error) {
	cfg.defaults()
	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll(), dbopen.WithSchema(persist.Schema), dbopen.WithSchema(history.Schema))
	if err != nil {
		return nil, err
	}
	if cfg.DBPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	ed := &Editor{
		cfg:      cfg,
		logger:   cfg.Logger,
		db:       db,
		persist:  persist.New(db),
		hydrator: cfg.pipeline(),
		outliner: outline.New(),
	}
	if err := ed.load(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if cfg.TapPath != "" {
		f, err := os.OpenFile(cfg.TapPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("pagesync: open tap: %w", err)
		}
		ed.tap = f
	}
	ed.history = history.New(db, history.WithLogger(cfg.Logger), history.WithFlushInterval(cfg.HistoryFlush))
	return ed, nil
}

func (ed *Editor) load(ctx context.Context) error {
	doc := ed.cfg.DocID
	rec, err := ed.persist.LoadRecords(ctx, doc)
	if err != nil {
		return err
	}
	if rec == (hydrate.Records{}) && ed.cfg.Records != (hydrate.Records{}) {
		rec = ed.cfg.Records
		if err := ed.persist.SaveRecords(ctx, doc, rec); err != nil {
			return err
		}
	}
	ed.records = rec

	sections, err := ed.persist.Load(ctx, doc)
	if err != nil {
		return err
	}
	if len(sections) == 0 && len(ed.cfg.Sections) > 0 {
		sections = ed.hydrator.Sections(ed.withIDs(ed.cfg.Sections), rec)
		if err := ed.persist.SaveAll(ctx, doc, sections); err != nil {
			return err
		}
		ed.logger.Info("pagesync: seeded document", "doc", doc, "sections", len(sections))
	}
	ed.store = engine.NewStore(sections)
	return nil
}

func (ed *Editor) withIDs(in []section.Section) []section.Section {
	out := section.Clone(in)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = idgen.Section()
		}
	}
	return out
}

// Close flushes the revision log and releases the database and the tap
// file.
func (ed *Editor) Close() error {
	var errs []error
	errs = append(errs, ed.history.Close())
	if ed.tap != nil {
		errs = append(errs, ed.tap.Close())
	}
	errs = append(errs, ed.db.Close())
	return errors.Join(errs...)
}

// Config returns the effective configuration.
func (ed *Editor) Config() Config { return ed.cfg }

// Store exposes the live section store.
func (ed *Editor) Store() *engine.Store { return ed.store }

// Records returns the current hydration records.
func (ed *Editor) Records() hydrate.Records {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.records
}

// SetRecords persists new records. Stored sections are not re-hydrated;
// the records apply to the next commit of each section.
func (ed *Editor) SetRecords(ctx context.Context, rec hydrate.Records) error {
	if err := ed.persist.SaveRecords(ctx, ed.cfg.DocID, rec); err != nil {
		return err
	}
	ed.mu.Lock()
	ed.records = rec
	ed.mu.Unlock()
	return nil
}

// Sections returns a copy of the document.
func (ed *Editor) Sections() []section.Section { return ed.store.Sections() }

// Section returns one section.
func (ed *Editor) Section(id string) (section.Section, error) {
	s, ok := ed.store.Get(id)
	if !ok {
		return section.Section{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Hydrate runs the pipeline without touching the store.
func (ed *Editor) Hydrate(s section.Section) section.Section {
	return ed.hydrator.Section(s, ed.Records())
}

// Put hydrates s and inserts or replaces it. An empty id gets a generated
// one. Connected surfaces receive the new tree.
func (ed *Editor) Put(ctx context.Context, s section.Section) (section.Section, error) {
	if s.ID == "" {
		s.ID = idgen.Section()
	}
	s = ed.Hydrate(s)
	ed.store.Upsert(s)
	if err := ed.persist.Save(ctx, ed.cfg.DocID, ed.store.Position(s.ID), s); err != nil {
		return s, err
	}
	ed.record(s, kit.GetTransport(ctx))
	return s, nil
}

// Create hydrates s and appends it. Unlike Put it never replaces: an id
// already in the document fails with ErrExists.
func (ed *Editor) Create(ctx context.Context, s section.Section) (section.Section, error) {
	if s.ID == "" {
		s.ID = idgen.Section()
	}
	s = ed.Hydrate(s)
	if err := ed.store.Append(s); err != nil {
		if errors.Is(err, engine.ErrDuplicateID) {
			return section.Section{}, fmt.Errorf("%w: %s", ErrExists, s.ID)
		}
		return section.Section{}, err
	}
	if err := ed.persist.Save(ctx, ed.cfg.DocID, ed.store.Position(s.ID), s); err != nil {
		return s, err
	}
	ed.record(s, kit.GetTransport(ctx))
	return s, nil
}

func (ed *Editor) record(s section.Section, source string) {
	ed.history.Record(history.Revision{
		DocID:     ed.cfg.DocID,
		SectionID: s.ID,
		Type:      s.Type,
		Content:   s.Content,
		Source:    source,
	})
}

// History returns the newest revisions of a section.
func (ed *Editor) History(ctx context.Context, id string, limit int) ([]history.Revision, error) {
	return ed.history.List(ctx, ed.cfg.DocID, id, limit)
}

// Replace hydrates and stores a whole document.
func (ed *Editor) Replace(ctx context.Context, sections []section.Section) ([]section.Section, error) {
	sections = ed.hydrator.Sections(ed.withIDs(sections), ed.Records())
	seen := make(map[string]bool, len(sections))
	for _, s := range sections {
		if seen[s.ID] {
			return nil, fmt.Errorf("%w: duplicate section id %q", ErrInvalid, s.ID)
		}
		seen[s.ID] = true
	}
	if err := ed.persist.SaveAll(ctx, ed.cfg.DocID, sections); err != nil {
		return nil, err
	}
	ed.store.Replace(sections)
	source := kit.GetTransport(ctx)
	for _, s := range sections {
		ed.record(s, source)
	}
	return sections, nil
}

// Delete removes a section.
func (ed *Editor) Delete(ctx context.Context, id string) error {
	if !ed.store.Remove(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ed.persist.Delete(ctx, ed.cfg.DocID, id)
}

// Outline renders the document as Markdown.
func (ed *Editor) Outline() (string, error) {
	return ed.outliner.Document(ed.store.Sections())
}

// Attach serves one surface connection until it closes or ctx ends. The
// most recently attached session receives host commands.
func (ed *Editor) Attach(ctx context.Context, conn transport.Conn) error {
	if ed.tap != nil {
		conn = transport.Tap(conn, ed.tap)
	}
	ed.mu.Lock()
	ed.nextID++
	sid := ed.nextID
	ed.mu.Unlock()
	log := ed.logger.With("session", sid)

	eng := engine.New(ed.store,
		engine.WithHydrator(ed.hydrator),
		engine.WithRecords(ed.Records),
		engine.WithPersister(ed.persist, ed.cfg.DocID),
		engine.WithLogger(log),
		engine.OnSelect(func(id string) { log.Debug("pagesync: section selected", "section", id) }),
		engine.OnElement(func(el section.ActiveElement) {
			log.Debug("pagesync: element selected", "section", el.SectionID, "tag", el.TagName)
		}),
		engine.OnCommit(func(s section.Section) {
			log.Debug("pagesync: committed", "section", s.ID)
			ed.record(s, "surface")
		}),
	)
	ed.mu.Lock()
	ed.current = eng
	ed.mu.Unlock()
	log.Info("pagesync: surface attached")

	err := eng.Run(ctx, conn)
	conn.Close()

	ed.mu.Lock()
	if ed.current == eng {
		ed.current = nil
	}
	ed.mu.Unlock()
	st := eng.Stats()
	log.Info("pagesync: surface detached", "syncs", st.Syncs, "commits", st.Commits, "dropped", st.Dropped)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (ed *Editor) session() (*engine.Engine, error) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	if ed.current == nil {
		return nil, ErrNoSession
	}
	return ed.current, nil
}

// Select selects a section on the current surface. An empty id clears
// the selection.
func (ed *Editor) Select(ctx context.Context, id string) error {
	eng, err := ed.session()
	if err != nil {
		return err
	}
	if id == "" {
		return eng.Deselect(ctx)
	}
	if _, ok := ed.store.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return eng.Select(ctx, id)
}

// Active returns the element inspected on the current surface.
func (ed *Editor) Active(ctx context.Context) (section.ActiveElement, bool, error) {
	eng, err := ed.session()
	if err != nil {
		return section.ActiveElement{}, false, err
	}
	return eng.Active(ctx)
}

// Command applies an action to the active element of the current surface.
func (ed *Editor) Command(ctx context.Context, action protocol.Action, value string) error {
	eng, err := ed.session()
	if err != nil {
		return err
	}
	return eng.Command(ctx, action, value)
}

// StartHeadless attaches an in-process surface over a pipe and returns it
// so callers can drive user events. Both actors stop with ctx; the
// returned channel yields the first error, or nil, once they have.
func (ed *Editor) StartHeadless(ctx context.Context, opts ...surface.Option) (*surface.Surface, <-chan error) {
	hostEnd, surfEnd := transport.Pipe(16, ed.logger)
	opts = append([]surface.Option{
		surface.WithDebounce(ed.cfg.Surface.Debounce),
		surface.WithFlushInterval(ed.cfg.Surface.Interval),
		surface.WithLogger(ed.logger),
	}, opts...)
	surf := surface.New(surfEnd, opts...)

	errc := make(chan error, 1)
	var wg sync.WaitGroup
	var once sync.Once
	report := func(err error) {
		if err != nil && !errors.Is(err, context.Canceled) {
			once.Do(func() { errc <- err })
		}
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		report(ed.Attach(ctx, hostEnd))
	}()
	go func() {
		defer wg.Done()
		report(surf.Run(ctx))
	}()
	go func() {
		wg.Wait()
		once.Do(func() { errc <- nil })
		close(errc)
	}()
	return surf, errc
}

// Watch reloads the document whenever another process writes the store.
// It blocks until ctx ends.
func (ed *Editor) Watch(ctx context.Context) {
	w := dbwatch.New(ed.db, dbwatch.Options{
		Interval: ed.cfg.Watch.Interval,
		Debounce: ed.cfg.Watch.Debounce,
		Logger:   ed.logger,
	})
	w.Run(ctx, func(ctx context.Context) error {
		sections, err := ed.persist.Load(ctx, ed.cfg.DocID)
		if err != nil {
			return err
		}
		if ed.store.Replace(sections) {
			ed.logger.Info("pagesync: reloaded document", "sections", len(sections))
		}
		rec, err := ed.persist.LoadRecords(ctx, ed.cfg.DocID)
		if err != nil {
			return err
		}
		ed.mu.Lock()
		ed.records = rec
		ed.mu.Unlock()
		return nil
	})
}
