package surface

import (
	"context"
	"strings"

	"github.com/hazyhaar/pagesync/hydrate"
	"github.com/hazyhaar/pagesync/internal/markup"
	"github.com/hazyhaar/pagesync/protocol"
	"github.com/hazyhaar/pagesync/section"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// click reports the section hit and, when the target is inspectable, makes
// it the active element.
func (s *Surface) click(ctx context.Context, c *html.Node, ev Event) {
	s.doc.selectSection(ev.SectionID)
	s.send(ctx, protocol.Select(ev.SectionID))

	target := resolve(c, ev.XPath)
	if target == nil || target == c || !inspectable(target) {
		return
	}
	s.setActive(ev.SectionID, ev.XPath, target)
	s.send(ctx, protocol.ElementSelect(describe(ev.SectionID, ev.XPath, target, ev.Rect)))
}

func (s *Surface) setActive(sectionID, xpath string, n *html.Node) {
	s.clearActive()
	markup.AddClass(n, hydrate.ClassActive)
	s.active = &activeRef{sectionID: sectionID, xpath: xpath}
}

func (s *Surface) clearActive() {
	if s.active == nil {
		return
	}
	if n := resolve(s.doc.container(s.active.sectionID), s.active.xpath); n != nil {
		dropClass(n, hydrate.ClassActive)
	}
	s.active = nil
}

// describe reads element metadata from the node and its inline style.
func describe(sectionID, xpath string, n *html.Node, rect section.Rect) section.ActiveElement {
	el := section.ActiveElement{
		SectionID: sectionID,
		TagName:   strings.ToUpper(n.Data),
		XPath:     xpath,
		Rect:      rect,
	}
	switch n.DataAtom {
	case atom.Img:
		el.Src = markup.Attr(n, "src")
	case atom.A:
		el.Href = markup.Attr(n, "href")
		el.Content = markup.Text(n)
	default:
		el.Content = markup.Text(n)
		if a := closest(n, atom.A); a != nil {
			el.Href = markup.Attr(a, "href")
		}
	}
	st := markup.StyleOf(n)
	el.BackgroundColor = st.Get("background-color")
	if el.BackgroundColor == "" {
		el.BackgroundColor = st.Get("background")
	}
	el.Color = st.Get("color")
	el.FontSize = st.Get("font-size")
	el.LineHeight = st.Get("line-height")
	el.TextAlign = st.Get("text-align")
	return el
}

func closest(n *html.Node, tag atom.Atom) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == tag {
			return p
		}
		if p.Type == html.ElementNode && markup.HasAttr(p, AttrSectionID) {
			return nil
		}
	}
	return nil
}
