package surface

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/hazyhaar/pagesync/hydrate"
	"github.com/hazyhaar/pagesync/internal/markup"
	"github.com/hazyhaar/pagesync/section"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	AttrSectionID   = "data-section-id"
	AttrSectionType = "data-section-type"
	badgeTag        = "pgs-badge"
)

// document is the surface's rendered tree: one instrumented container per
// section, in order.
type document struct {
	root       *html.Node
	containers map[string]*html.Node
	selected   string
}

func newDocument() *document {
	return &document{root: markup.NewElement(atom.Main), containers: map[string]*html.Node{}}
}

// buildDocument renders sections into fresh containers.
func buildDocument(sections []section.Section, selectedID string) *document {
	d := newDocument()
	for _, s := range sections {
		if s.ID == "" {
			continue
		}
		c := markup.NewElement(atom.Section,
			html.Attribute{Key: AttrSectionID, Val: s.ID},
			html.Attribute{Key: AttrSectionType, Val: string(s.Type)},
			html.Attribute{Key: "class", Val: "pgs-section"},
		)
		frag := markup.ParseFragment(s.Content)
		markup.ReplaceChildren(c, childrenOf(frag)...)
		instrument(c)
		d.root.AppendChild(c)
		d.containers[s.ID] = c
	}
	d.selectSection(selectedID)
	return d
}

func childrenOf(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

func (d *document) container(id string) *html.Node { return d.containers[id] }

func (d *document) selectSection(id string) {
	if prev := d.containers[d.selected]; prev != nil {
		dropClass(prev, hydrate.ClassSelected)
	}
	d.selected = ""
	if c := d.containers[id]; c != nil {
		markup.AddClass(c, hydrate.ClassSelected)
		d.selected = id
	}
}

func dropClass(n *html.Node, class string) {
	markup.MapClasses(n, func(c string) string {
		if c == class {
			return ""
		}
		return c
	})
}

// resolve finds the element at a container-relative XPath. An empty path
// or "." is the container; an invalid or dangling path is nil.
func resolve(c *html.Node, xpath string) *html.Node {
	xpath = strings.TrimSpace(xpath)
	if c == nil {
		return nil
	}
	if xpath == "" || xpath == "." {
		return c
	}
	n, err := htmlquery.Query(c, xpath)
	if err != nil || n == nil || n.Type != html.ElementNode {
		return nil
	}
	return n
}

var editableTags = map[atom.Atom]bool{
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.P: true, atom.Li: true, atom.Blockquote: true, atom.Figcaption: true, atom.Td: true,
	atom.Th: true, atom.Button: true, atom.A: true, atom.Span: true, atom.Label: true,
	atom.Dt: true, atom.Dd: true,
}

// instrument flags the top-most text owners editable and badges images.
// The markers are exactly those hydrate.StripTree removes.
func instrument(c *html.Node) {
	var editables, images []*html.Node
	markup.Walk(c, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n == c {
			return true
		}
		if n.DataAtom == atom.Img {
			images = append(images, n)
			return false
		}
		if editableTags[n.DataAtom] && markup.Text(n) != "" {
			editables = append(editables, n)
			return false
		}
		return true
	})
	for _, n := range editables {
		markup.SetAttr(n, "contenteditable", "true")
		markup.SetAttr(n, hydrate.AttrEditable, "true")
		markup.SetAttr(n, "spellcheck", "false")
	}
	for _, img := range images {
		if img.Parent == nil {
			continue
		}
		badge := &html.Node{Type: html.ElementNode, Data: badgeTag, Attr: []html.Attribute{
			{Key: hydrate.AttrBadge, Val: "image"},
			{Key: "class", Val: "pgs-badge"},
		}}
		badge.AppendChild(markup.NewText("Image"))
		img.Parent.InsertBefore(badge, img.NextSibling)
	}
}

// serialize clones a container, strips instrumentation and returns its
// inner markup only.
func serialize(c *html.Node) string {
	k := markup.Clone(c)
	hydrate.StripTree(k)
	return markup.RenderChildren(k)
}

// inspectable reports whether a click on n selects it as the active
// element: images, links and text owners.
func inspectable(n *html.Node) bool {
	if !markup.IsElement(n) {
		return false
	}
	switch n.DataAtom {
	case atom.Img, atom.A:
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return true
		}
	}
	return false
}
