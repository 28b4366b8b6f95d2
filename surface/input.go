package surface

import (
	"context"

	"github.com/hazyhaar/pagesync/internal/markup"
	"github.com/hazyhaar/pagesync/protocol"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// pastePolicy keeps inline formatting and simple blocks from clipboard
// markup and drops everything else.
var pastePolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.AllowElements("p", "br", "strong", "b", "em", "i", "u", "s", "a",
		"ul", "ol", "li", "blockquote", "h2", "h3", "h4", "span")
	return p
}()

func (s *Surface) handleEvent(ctx context.Context, ev Event) {
	c := s.doc.container(ev.SectionID)
	if c == nil {
		s.logger.Debug("surface: drop event for unknown section", "kind", ev.Kind, "section", ev.SectionID)
		if ev.Kind == EventBlur && s.editing {
			s.editing = false
			s.send(ctx, protocol.Editing(false))
		}
		return
	}

	switch ev.Kind {
	case EventInput, EventChange, EventKeyUp:
		if target := resolve(c, ev.XPath); target != nil {
			applyPayload(target, ev, nil)
		}
		s.tracker.mark(ev.SectionID)

	case EventPaste:
		target := resolve(c, ev.XPath)
		if target == nil {
			target = c
		}
		applyPayload(target, ev, pastePolicy.Sanitize)
		s.tracker.mark(ev.SectionID)

	case EventMutation:
		if target := resolve(c, ev.XPath); target != nil {
			applyPayload(target, ev, nil)
		}
		s.tracker.mark(ev.SectionID)

	case EventFocus:
		s.editing = true
		s.send(ctx, protocol.Editing(true))

	case EventBlur:
		s.blur(ctx, ev.SectionID)

	case EventClick:
		s.click(ctx, c, ev)

	case EventKeyDown:
		if ev.Key == "Escape" {
			s.clearActive()
		}

	default:
		s.logger.Debug("surface: unknown event kind", "kind", ev.Kind)
	}
}

// blur flushes the section in the same turn, then reports focus loss so
// the host sees the content before it resumes syncing.
func (s *Surface) blur(ctx context.Context, id string) {
	s.flushNow(ctx, id)
	s.editing = false
	s.send(ctx, protocol.Editing(false))
}

// applyPayload replaces the children of target with the event content.
// An empty payload empties the element.
func applyPayload(target *html.Node, ev Event, sanitize func(string) string) {
	switch {
	case ev.HTML != nil:
		content := *ev.HTML
		if sanitize != nil {
			content = sanitize(content)
		}
		setInnerHTML(target, content)
	case ev.Text != nil && *ev.Text == "":
		markup.ReplaceChildren(target)
	case ev.Text != nil:
		markup.ReplaceChildren(target, markup.NewText(*ev.Text))
	}
}

func setInnerHTML(n *html.Node, content string) {
	frag := markup.ParseFragment(content)
	markup.ReplaceChildren(n, childrenOf(frag)...)
}
