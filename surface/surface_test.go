package surface

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"
	"github.com/hazyhaar/pagesync/hydrate"
	"github.com/hazyhaar/pagesync/protocol"
	"github.com/hazyhaar/pagesync/section"
	"github.com/hazyhaar/pagesync/transport"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	t     *testing.T
	host  transport.Conn
	surf  *Surface
	clock *clock.Mock
}

func start(t *testing.T, sections ...section.Section) *harness {
	t.Helper()
	host, conn := transport.Pipe(64, nil)
	mock := clock.NewMock()
	s := New(conn, WithClock(mock))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		host.Close()
	})

	h := &harness{t: t, host: host, surf: s, clock: mock}
	if m := h.next(); m.Type != protocol.TypeReady {
		t.Fatalf("first message = %s, want READY", m.Type)
	}
	if len(sections) > 0 {
		h.sync(sections, "")
	}
	return h
}

func (h *harness) sync(sections []section.Section, selected string) {
	h.t.Helper()
	want := h.surf.Stats().Rebuilds + 1
	if err := h.host.Send(context.Background(), protocol.Sync(sections, selected)); err != nil {
		h.t.Fatal(err)
	}
	h.waitFor(func() bool { return h.surf.Stats().Rebuilds >= want })
}

func (h *harness) waitFor(cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			h.t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) next() protocol.Message {
	h.t.Helper()
	select {
	case m := <-h.host.Inbox():
		return m
	case <-time.After(2 * time.Second):
		h.t.Fatal("timeout waiting for surface message")
	}
	return protocol.Message{}
}

func (h *harness) none() {
	h.t.Helper()
	select {
	case m := <-h.host.Inbox():
		h.t.Fatalf("unexpected %s message: %+v", m.Type, m)
	case <-time.After(50 * time.Millisecond):
	}
}

func (h *harness) dispatch(ev Event) {
	h.t.Helper()
	if err := h.surf.Dispatch(context.Background(), ev); err != nil {
		h.t.Fatal(err)
	}
}

func (h *harness) command(a protocol.Action, v string) {
	h.t.Helper()
	if err := h.host.Send(context.Background(), protocol.Command(a, v)); err != nil {
		h.t.Fatal(err)
	}
}

var doc = []section.Section{
	{ID: "s1", Type: section.RoleHero, Content: `<h1>Hi</h1><p style="color: red">Body</p><img src="/a.png"/>`},
	{ID: "s2", Type: section.RoleFAQ, Content: `<p>Q?</p>`},
}

func TestSync_Idempotent(t *testing.T) {
	h := start(t, doc...)
	if err := h.host.Send(context.Background(), protocol.Sync(doc, "")); err != nil {
		t.Fatal(err)
	}
	h.sync(doc, "s2")
	if got := h.surf.Stats().Rebuilds; got != 2 {
		t.Errorf("rebuilds = %d, want 2 (duplicate payload applied)", got)
	}
}

func TestDirty_DebounceCoalescing(t *testing.T) {
	h := start(t, doc...)
	for i := 0; i < 5; i++ {
		h.dispatch(Event{Kind: EventInput, SectionID: "s1", XPath: "./h1[1]", Text: Payload(fmt.Sprintf("Hello %d", i))})
		if i < 4 {
			h.clock.Add(100 * time.Millisecond)
		}
	}
	h.clock.Add(699 * time.Millisecond)
	h.none()

	h.clock.Add(time.Millisecond)
	m := h.next()
	if m.Type != protocol.TypeChange || m.ID != "s1" {
		t.Fatalf("got %+v, want CHANGE s1", m)
	}
	if !strings.Contains(m.Content, "<h1>Hello 4</h1>") {
		t.Errorf("content = %s", m.Content)
	}
	h.clock.Add(5 * time.Second)
	h.none()
	if got := h.surf.Stats().Changes; got != 1 {
		t.Errorf("changes = %d, want 1", got)
	}
}

func TestDirty_DebounceSpansContainers(t *testing.T) {
	h := start(t, doc...)
	h.dispatch(Event{Kind: EventInput, SectionID: "s1", XPath: "./h1[1]", Text: Payload("First")})
	h.clock.Add(300 * time.Millisecond)
	h.dispatch(Event{Kind: EventInput, SectionID: "s2", XPath: "./p[1]", Text: Payload("Second")})

	// The s2 edit restarted the window, so s1 is not flushed at 700ms.
	h.clock.Add(699 * time.Millisecond)
	h.none()

	h.clock.Add(time.Millisecond)
	first, second := h.next(), h.next()
	if first.Type != protocol.TypeChange || first.ID != "s1" || !strings.Contains(first.Content, "<h1>First</h1>") {
		t.Errorf("first = %+v, want CHANGE s1", first)
	}
	if second.Type != protocol.TypeChange || second.ID != "s2" || second.Content != "<p>Second</p>" {
		t.Errorf("second = %+v, want CHANGE s2", second)
	}
	h.clock.Add(5 * time.Second)
	h.none()
}

func TestEvent_ClearedElementIsReported(t *testing.T) {
	h := start(t, doc...)
	h.dispatch(Event{Kind: EventInput, SectionID: "s2", XPath: "./p[1]", Text: Payload("")})
	h.clock.Add(700 * time.Millisecond)
	if m := h.next(); m.Type != protocol.TypeChange || m.Content != "<p></p>" {
		t.Errorf("got %+v, want CHANGE with the emptied paragraph", m)
	}

	h.dispatch(Event{Kind: EventPaste, SectionID: "s1", XPath: "./h1[1]", HTML: Payload("")})
	h.clock.Add(700 * time.Millisecond)
	if m := h.next(); !strings.HasPrefix(m.Content, "<h1></h1>") {
		t.Errorf("content = %s, want an empty heading", m.Content)
	}
}

func TestEvent_NoPayloadKeepsContent(t *testing.T) {
	h := start(t, doc...)
	h.dispatch(Event{Kind: EventKeyUp, SectionID: "s2", XPath: "./p[1]", Key: "ArrowLeft"})
	h.clock.Add(700 * time.Millisecond)
	if m := h.next(); m.Content != "<p>Q?</p>" {
		t.Errorf("content = %s", m.Content)
	}
}

func TestDirty_FlushBurstLargerThanBuffer(t *testing.T) {
	host, conn := transport.Pipe(2, nil)
	mock := clock.NewMock()
	s := New(conn, WithClock(mock))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	defer func() {
		cancel()
		<-done
		host.Close()
	}()

	if m := <-host.Inbox(); m.Type != protocol.TypeReady {
		t.Fatalf("first message = %s", m.Type)
	}
	const n = 40
	var sections []section.Section
	for i := 0; i < n; i++ {
		sections = append(sections, section.Section{ID: fmt.Sprintf("s%d", i), Type: section.RoleFAQ, Content: "<p>x</p>"})
	}
	if err := host.Send(ctx, protocol.Sync(sections, "")); err != nil {
		t.Fatal(err)
	}
	h := &harness{t: t, host: host, surf: s, clock: mock}
	h.waitFor(func() bool { return s.Stats().Rebuilds == 1 })
	for i := 0; i < n; i++ {
		h.dispatch(Event{Kind: EventInput, SectionID: fmt.Sprintf("s%d", i), XPath: "./p[1]", Text: Payload("y")})
	}
	mock.Add(700 * time.Millisecond)

	// Nobody reads the host inbox while the burst is flushed; the surface
	// must still go back to serving events.
	h.waitFor(func() bool { return s.Stats().Changes == n })
	h.dispatch(Event{Kind: EventFocus, SectionID: "s0"})
	for i := 0; i < n; i++ {
		if m := h.next(); m.Type != protocol.TypeChange || m.ID != fmt.Sprintf("s%d", i) {
			t.Fatalf("message %d = %+v", i, m)
		}
	}
	if m := h.next(); m.Type != protocol.TypeEditing {
		t.Errorf("got %s, want EDITING", m.Type)
	}
}

func TestDirty_IntervalBoundsStaleness(t *testing.T) {
	h := start(t, doc...)
	for i := 0; i < 15; i++ {
		h.dispatch(Event{Kind: EventInput, SectionID: "s1", XPath: "./h1[1]", Text: Payload(fmt.Sprintf("typing %d", i))})
		h.clock.Add(100 * time.Millisecond)
	}
	if m := h.next(); m.Type != protocol.TypeChange {
		t.Fatalf("got %s, want CHANGE from the interval flush", m.Type)
	}
	h.none()

	h.clock.Add(700 * time.Millisecond)
	m := h.next()
	if m.Type != protocol.TypeChange || !strings.Contains(m.Content, "typing 14") {
		t.Errorf("final flush = %+v", m)
	}
}

func TestDirty_BlurFlushesInSameTurn(t *testing.T) {
	h := start(t, doc...)
	h.dispatch(Event{Kind: EventFocus, SectionID: "s1", XPath: "./h1[1]"})
	if m := h.next(); m.Type != protocol.TypeEditing || !m.Editing {
		t.Fatalf("got %+v, want EDITING true", m)
	}
	h.dispatch(Event{Kind: EventInput, SectionID: "s1", XPath: "./h1[1]", Text: Payload("Hello")})
	h.dispatch(Event{Kind: EventBlur, SectionID: "s1", XPath: "./h1[1]"})

	m := h.next()
	if m.Type != protocol.TypeChange {
		t.Fatalf("got %s, want CHANGE before EDITING false", m.Type)
	}
	want := `<h1>Hello</h1><p style="color: red">Body</p><img src="/a.png"/>`
	if m.Content != want {
		t.Errorf("content:\n got %s\nwant %s", m.Content, want)
	}
	if hydrate.Instrumented(m.Content) {
		t.Errorf("instrumentation leaked: %s", m.Content)
	}
	if m := h.next(); m.Type != protocol.TypeEditing || m.Editing {
		t.Fatalf("got %+v, want EDITING false", m)
	}

	h.clock.Add(5 * time.Second)
	h.none()
}

func TestDirty_SyncFlushesPendingEdits(t *testing.T) {
	h := start(t, doc...)
	h.dispatch(Event{Kind: EventInput, SectionID: "s2", XPath: "./p[1]", Text: Payload("Edited")})
	other := []section.Section{{ID: "s2", Type: section.RoleFAQ, Content: "<p>Server</p>"}}
	if err := h.host.Send(context.Background(), protocol.Sync(other, "")); err != nil {
		t.Fatal(err)
	}
	m := h.next()
	if m.Type != protocol.TypeChange || m.Content != "<p>Edited</p>" {
		t.Errorf("got %+v, want the pending edit", m)
	}
}

func TestEvent_UnknownSectionDropped(t *testing.T) {
	h := start(t, doc...)
	h.dispatch(Event{Kind: EventInput, SectionID: "gone", Text: Payload("x")})
	h.clock.Add(5 * time.Second)
	h.none()
}

func TestEvent_PasteSanitised(t *testing.T) {
	h := start(t, doc...)
	h.dispatch(Event{Kind: EventPaste, SectionID: "s2", XPath: "./p[1]", HTML: Payload(`<script>alert(1)</script><b onclick="x()">ok</b>`)})
	h.dispatch(Event{Kind: EventBlur, SectionID: "s2"})
	if m := h.next(); m.Content != "<p><b>ok</b></p>" {
		t.Errorf("content = %s", m.Content)
	}
}

func TestClick_SelectsElement(t *testing.T) {
	h := start(t, doc...)
	rect := section.Rect{Top: 10, Left: 20, Width: 300, Height: 40}
	h.dispatch(Event{Kind: EventClick, SectionID: "s1", XPath: "./p[1]", Rect: rect})

	if m := h.next(); m.Type != protocol.TypeSelect || m.SectionID != "s1" {
		t.Fatalf("got %+v, want SELECT s1", m)
	}
	m := h.next()
	if m.Type != protocol.TypeElementSelect {
		t.Fatalf("got %s, want ELEMENT_SELECT", m.Type)
	}
	want := section.ActiveElement{
		SectionID: "s1", TagName: "P", XPath: "./p[1]", Content: "Body", Color: "red", Rect: rect,
	}
	if diff := cmp.Diff(want, *m.Element); diff != "" {
		t.Errorf("element (-want +got):\n%s", diff)
	}

	// Clicking the container background selects the section only.
	h.dispatch(Event{Kind: EventClick, SectionID: "s2"})
	if m := h.next(); m.Type != protocol.TypeSelect || m.SectionID != "s2" {
		t.Fatalf("got %+v, want SELECT s2", m)
	}
	h.none()
}

func TestCommand_FlushesImmediately(t *testing.T) {
	h := start(t, doc...)
	h.dispatch(Event{Kind: EventClick, SectionID: "s1", XPath: "./img[1]"})
	h.next()
	if m := h.next(); m.Element == nil || m.Element.Src != "/a.png" {
		t.Fatalf("got %+v, want image element", m)
	}

	h.command(protocol.ActionSetWidth, "320")
	m := h.next()
	if m.Type != protocol.TypeChange {
		t.Fatalf("got %s, want CHANGE", m.Type)
	}
	if !strings.Contains(m.Content, `<img src="/a.png" style="width: 320px; max-width: 100%; height: auto"/>`) {
		t.Errorf("content = %s", m.Content)
	}
	if hydrate.Instrumented(m.Content) {
		t.Errorf("active marker leaked: %s", m.Content)
	}

	h.command(protocol.ActionEdit, "")
	if m := h.next(); m.Type != protocol.TypeEditing || !m.Editing {
		t.Errorf("EDIT produced %+v", m)
	}
	h.command(protocol.ActionClearSelection, "")
	h.command(protocol.ActionSetSrc, "/b.png")
	h.none()
}

func TestCommand_SetTextIsPlain(t *testing.T) {
	h := start(t, doc...)
	h.dispatch(Event{Kind: EventClick, SectionID: "s2", XPath: "./p[1]"})
	h.next()
	h.next()
	h.command(protocol.ActionSetText, "<b>bold</b> & co")
	if m := h.next(); m.Content != "<p>bold &amp; co</p>" {
		t.Errorf("content = %s", m.Content)
	}
}

func TestCommand_StyleActions(t *testing.T) {
	cases := []struct {
		action protocol.Action
		value  string
		want   string
	}{
		{protocol.ActionSetColor, "#333", `<p style="color: #333">Q?</p>`},
		{protocol.ActionSetTextAlign, "center", `<p style="text-align: center">Q?</p>`},
		{protocol.ActionSetFontSize, "18", `<p style="font-size: 18px">Q?</p>`},
		{protocol.ActionSetLineHeight, "1.6", `<p style="line-height: 1.6">Q?</p>`},
		{protocol.ActionSetBackground, "#fef3c7", `<p style="background-color: #fef3c7">Q?</p>`},
		{protocol.ActionSetSectionColor, "navy", `<p style="color: navy">Q?</p>`},
	}
	for _, c := range cases {
		t.Run(string(c.action), func(t *testing.T) {
			h := start(t, doc...)
			h.dispatch(Event{Kind: EventClick, SectionID: "s2", XPath: "./p[1]"})
			h.next()
			h.next()
			h.command(c.action, c.value)
			if m := h.next(); m.Content != c.want {
				t.Errorf("content:\n got %s\nwant %s", m.Content, c.want)
			}
		})
	}
}

func TestCommand_WithoutActiveElementDropped(t *testing.T) {
	h := start(t, doc...)
	h.command(protocol.ActionSetText, "x")
	h.none()

	h.dispatch(Event{Kind: EventClick, SectionID: "s2", XPath: "./p[1]"})
	h.next()
	h.next()
	h.dispatch(Event{Kind: EventKeyDown, SectionID: "s2", Key: "Escape"})
	h.command(protocol.ActionSetText, "x")
	h.none()
}

func TestBootstrap(t *testing.T) {
	page, err := Bootstrap(BootstrapConfig{SocketURL: "/surface/ws"})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`<main id="pgs-root">`, `"debounceMs":700`, `"intervalMs":1200`, "window.__pagesync", defaultTailwindURL} {
		if !strings.Contains(page, want) {
			t.Errorf("bootstrap missing %q", want)
		}
	}
	page, _ = Bootstrap(BootstrapConfig{TailwindURL: "-"})
	if strings.Contains(page, defaultTailwindURL) {
		t.Error("tailwind not disabled")
	}
}
