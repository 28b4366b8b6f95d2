package browser

import (
	"context"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/hazyhaar/pagesync/protocol"
	"github.com/hazyhaar/pagesync/section"
	"github.com/hazyhaar/pagesync/surface"
)

func launch(t *testing.T) *Surface {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests need Chrome")
	}
	if _, ok := launcher.LookPath(); !ok {
		t.Skip("no Chrome binary found")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s, err := Launch(ctx, Config{Bootstrap: surface.BootstrapConfig{
		TailwindURL: "-",
		Debounce:    50 * time.Millisecond,
		Interval:    time.Second,
	}})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func next(t *testing.T, s *Surface, want protocol.Type) protocol.Message {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case m, ok := <-s.Inbox():
			if !ok {
				t.Fatalf("inbox closed waiting for %s", want)
			}
			if m.Type == want {
				return m
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestSurface_SyncAndEdit(t *testing.T) {
	s := launch(t)
	next(t, s, protocol.TypeReady)

	ctx := context.Background()
	sections := []section.Section{{ID: "hero", Type: section.RoleHero, Content: "<h1>Hello</h1><p>World</p>"}}
	if err := s.Send(ctx, protocol.Sync(sections, "")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Snapshot(ctx, "hero")
	if err != nil {
		t.Fatal(err)
	}
	if got != sections[0].Content {
		t.Errorf("snapshot = %q, want %q", got, sections[0].Content)
	}

	err = s.Eval(ctx, `() => {
		const h = document.querySelector('[data-section-id="hero"] h1');
		h.textContent = 'Hi there';
		h.dispatchEvent(new Event('input', { bubbles: true }));
	}`)
	if err != nil {
		t.Fatal(err)
	}
	m := next(t, s, protocol.TypeChange)
	if m.ID != "hero" || m.Content != "<h1>Hi there</h1><p>World</p>" {
		t.Errorf("change = %+v", m)
	}

	if _, err := s.Snapshot(ctx, "missing"); err == nil {
		t.Error("expected error for unrendered section")
	}
}

func TestSurface_CloseClosesInbox(t *testing.T) {
	s := launch(t)
	s.Close()
	for range s.Inbox() {
	}
	if err := s.Send(context.Background(), protocol.Ready()); err == nil {
		t.Error("send after close succeeded")
	}
}

func TestSurface_CommandChangesOnce(t *testing.T) {
	s := launch(t)
	next(t, s, protocol.TypeReady)

	ctx := context.Background()
	sections := []section.Section{{ID: "hero", Type: section.RoleHero, Content: "<h1>Hello</h1>"}}
	if err := s.Send(ctx, protocol.Sync(sections, "")); err != nil {
		t.Fatal(err)
	}
	if err := s.Eval(ctx, `() => document.querySelector('[data-section-id="hero"] h1').click()`); err != nil {
		t.Fatal(err)
	}
	next(t, s, protocol.TypeElementSelect)

	if err := s.Send(ctx, protocol.Command(protocol.ActionSetText, "Bonjour")); err != nil {
		t.Fatal(err)
	}
	if m := next(t, s, protocol.TypeChange); m.Content != "<h1>Bonjour</h1>" {
		t.Errorf("change = %+v", m)
	}
	// Debounce is 50ms; a second CHANGE would arrive well inside this.
	quiet := time.After(400 * time.Millisecond)
	for {
		select {
		case m := <-s.Inbox():
			if m.Type == protocol.TypeChange {
				t.Fatalf("duplicate change after command: %+v", m)
			}
		case <-quiet:
			return
		}
	}
}
