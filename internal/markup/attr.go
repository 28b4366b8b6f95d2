package markup

import (
	"strings"

	"golang.org/x/net/html"
)

// Attr returns the value of an attribute on a node.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr checks if a node has a specific attribute.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets or replaces an attribute.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes every attribute matching pred.
func RemoveAttr(n *html.Node, pred func(key string) bool) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if !pred(a.Key) {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

// DelAttr deletes one attribute by name.
func DelAttr(n *html.Node, key string) {
	RemoveAttr(n, func(k string) bool { return k == key })
}

// Classes returns the class list of n.
func Classes(n *html.Node) []string {
	return strings.Fields(Attr(n, "class"))
}

// HasClass reports whether n carries class c.
func HasClass(n *html.Node, c string) bool {
	for _, k := range Classes(n) {
		if k == c {
			return true
		}
	}
	return false
}

// SetClasses writes the class list, dropping the attribute when empty.
func SetClasses(n *html.Node, classes []string) {
	if len(classes) == 0 {
		DelAttr(n, "class")
		return
	}
	SetAttr(n, "class", strings.Join(classes, " "))
}

// AddClass appends c unless already present.
func AddClass(n *html.Node, c string) {
	if HasClass(n, c) {
		return
	}
	SetClasses(n, append(Classes(n), c))
}

// MapClasses rewrites every class through fn; an empty result drops the
// class. Returns true when the list changed.
func MapClasses(n *html.Node, fn func(string) string) bool {
	classes := Classes(n)
	if len(classes) == 0 {
		return false
	}
	changed := false
	out := classes[:0:0]
	for _, c := range classes {
		m := fn(c)
		if m != c {
			changed = true
		}
		if m != "" {
			out = append(out, m)
		}
	}
	if changed {
		SetClasses(n, out)
	}
	return changed
}

// BaseClass strips Tailwind variant prefixes ("md:", "hover:") from c and
// reports whether any were present.
func BaseClass(c string) (base string, variant bool) {
	if i := strings.LastIndexByte(c, ':'); i >= 0 {
		return c[i+1:], true
	}
	return c, false
}
