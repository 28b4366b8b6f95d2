package hydrate

import (
	"strings"

	"github.com/hazyhaar/pagesync/internal/markup"
	"golang.org/x/net/html"
)

// Editor-only markers the render surface adds to the live tree. None of
// them may survive into committed content.
const (
	InstrumentClassPrefix = "pgs-"
	InstrumentAttrPrefix  = "data-pgs-"

	AttrBadge       = "data-pgs-badge"
	AttrPath        = "data-pgs-path"
	AttrEditable    = "data-editable"
	ClassSelected   = "pgs-selected"
	ClassEditable   = "pgs-editable"
	ClassActive     = "pgs-active"
	attrContentEdit = "contenteditable"
	attrSpellcheck  = "spellcheck"
)

func isInstrumentAttr(key string) bool {
	switch key {
	case attrContentEdit, attrSpellcheck, AttrEditable:
		return true
	}
	return strings.HasPrefix(key, InstrumentAttrPrefix)
}

// StripTree removes instrumentation from root and its descendants in place.
// Badge elements are removed together with their subtree.
func StripTree(root *html.Node) {
	markup.Walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		if n != root && markup.HasAttr(n, AttrBadge) {
			markup.Detach(n)
			return false
		}
		markup.RemoveAttr(n, isInstrumentAttr)
		markup.MapClasses(n, func(c string) string {
			if strings.HasPrefix(c, InstrumentClassPrefix) {
				return ""
			}
			return c
		})
		return true
	})
}

// Strip removes editor instrumentation from a markup fragment and nothing
// else.
func Strip(content string) string {
	root := markup.ParseFragment(content)
	StripTree(root)
	return markup.RenderChildren(root)
}

// Instrumented reports whether content still carries any editor marker.
func Instrumented(content string) bool {
	found := false
	markup.Walk(markup.ParseFragment(content), func(n *html.Node) bool {
		if found {
			return false
		}
		if n.Type != html.ElementNode {
			return true
		}
		for _, a := range n.Attr {
			if isInstrumentAttr(a.Key) {
				found = true
			}
		}
		for _, c := range markup.Classes(n) {
			if strings.HasPrefix(c, InstrumentClassPrefix) {
				found = true
			}
		}
		return true
	})
	return found
}
