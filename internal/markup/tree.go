// Package markup holds the x/net/html tree helpers shared by the hydration
// pipeline and the render surface: fragment parse/render, attribute and
// class manipulation, text collection.
package markup

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var bodyContext = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

// ParseFragment parses a markup fragment and returns a detached synthetic
// root element whose children are the fragment's top-level nodes. It never
// fails: unparseable input becomes a single text node.
func ParseFragment(s string) *html.Node {
	root := NewElement(atom.Div)
	nodes, err := html.ParseFragment(strings.NewReader(s), bodyContext)
	if err != nil {
		root.AppendChild(NewText(s))
		return root
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root
}

// RenderChildren serialises the children of n, not n itself.
func RenderChildren(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&b, c)
	}
	return b.String()
}

// RenderNode serialises n including its own tag.
func RenderNode(n *html.Node) string {
	var b strings.Builder
	_ = html.Render(&b, n)
	return b.String()
}

// NewElement creates a detached element.
func NewElement(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a, Attr: attrs}
}

// NewText creates a detached text node.
func NewText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Clone deep-copies n. The copy is detached.
func Clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]html.Attribute, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	for k := n.FirstChild; k != nil; k = k.NextSibling {
		c.AppendChild(Clone(k))
	}
	return c
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// ReplaceChildren drops every child of n and appends kids.
func ReplaceChildren(n *html.Node, kids ...*html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	for _, k := range kids {
		Detach(k)
		n.AppendChild(k)
	}
}

// Unwrap replaces n by its children in n's parent.
func Unwrap(n *html.Node) {
	p := n.Parent
	if p == nil {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		p.InsertBefore(c, n)
		c = next
	}
	p.RemoveChild(n)
}

// Walk visits n and its descendants in document order. fn returns false to
// skip the children of the visited node. The next sibling is captured before
// visiting, so fn may detach the node it is given.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		Walk(c, fn)
		c = next
	}
}

// FindAll returns every descendant element of root with the given tag.
func FindAll(root *html.Node, tag atom.Atom) []*html.Node {
	var out []*html.Node
	Walk(root, func(n *html.Node) bool {
		if n != root && n.Type == html.ElementNode && n.DataAtom == tag {
			out = append(out, n)
		}
		return true
	})
	return out
}

// ElementChildren returns the element children of n.
func ElementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// LoneElementChild returns n's only element child when n has exactly one
// and no non-whitespace text beside it.
func LoneElementChild(n *html.Node) *html.Node {
	var lone *html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			if lone != nil {
				return nil
			}
			lone = c
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return nil
			}
		}
	}
	return lone
}

// HasAncestor reports whether any ancestor of n (excluding n) has one of
// the given tags.
func HasAncestor(n *html.Node, tags ...atom.Atom) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		for _, t := range tags {
			if p.DataAtom == t {
				return true
			}
		}
	}
	return false
}

var spaceRe = regexp.MustCompile(`\s+`)

// CollapseSpace collapses runs of whitespace and trims.
func CollapseSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// Text returns the whitespace-collapsed text content of n, skipping
// script and style elements.
func Text(n *html.Node) string {
	var b strings.Builder
	Walk(n, func(c *html.Node) bool {
		switch c.Type {
		case html.ElementNode:
			if c.DataAtom == atom.Script || c.DataAtom == atom.Style {
				return false
			}
			if c.DataAtom == atom.Br {
				b.WriteByte(' ')
			}
		case html.TextNode:
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
		return true
	})
	return CollapseSpace(b.String())
}

// IsElement reports whether n is an element with one of the given tags.
// With no tags it only checks the node type.
func IsElement(n *html.Node, tags ...atom.Atom) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		if n.DataAtom == t {
			return true
		}
	}
	return false
}
