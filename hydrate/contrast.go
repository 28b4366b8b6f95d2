package hydrate

import (
	"regexp"
	"strings"

	"github.com/hazyhaar/pagesync/internal/markup"
	"golang.org/x/net/html"
)

type tone int

const (
	toneInherit tone = iota
	toneLight
	toneDark
)

var (
	lightBgRe = regexp.MustCompile(`^bg-(?:white|(?:gray|slate|zinc|neutral|stone)-(?:50|100|200)|[a-z]+-(?:50|100))(?:/\d+)?$`)
	darkBgRe  = regexp.MustCompile(`^bg-(?:black|gradient-to-[a-z]+|[a-z]+-(?:[3-9]00|950))(?:/\d+)?$`)
	lightTxRe = regexp.MustCompile(`^text-([a-z]+)-(50|100|200|300)$`)
	arbBgRe   = regexp.MustCompile(`^bg-\[(#[0-9a-fA-F]{3,8})\]$`)
)

var darkShade = map[string]string{"50": "900", "100": "800", "200": "700", "300": "700"}

const darkText = "#111827"

// normalizeContrast darkens light text inside light-background subtrees.
// A non-light background resets the subtree to untouched.
func normalizeContrast(root *html.Node) {
	var visit func(n *html.Node, light bool)
	visit = func(n *html.Node, light bool) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			l := light
			switch background(c) {
			case toneLight:
				l = true
			case toneDark:
				l = false
			}
			if l {
				darkenText(c)
			}
			visit(c, l)
		}
	}
	visit(root, false)
}

func background(n *html.Node) tone {
	t := toneInherit
	for _, c := range markup.Classes(n) {
		if _, variant := markup.BaseClass(c); variant {
			continue
		}
		switch {
		case lightBgRe.MatchString(c):
			t = toneLight
		case darkBgRe.MatchString(c):
			t = toneDark
		default:
			if m := arbBgRe.FindStringSubmatch(c); m != nil {
				t = colorTone(m[1])
			}
		}
	}
	if !markup.HasAttr(n, "style") {
		return t
	}
	style := markup.StyleOf(n)
	for _, prop := range []string{"background", "background-color"} {
		v := strings.ToLower(style.Get(prop))
		switch {
		case v == "":
		case strings.Contains(v, "gradient") || strings.Contains(v, "url("):
			t = toneDark
		default:
			if ct := colorTone(v); ct != toneInherit {
				t = ct
			}
		}
	}
	return t
}

func colorTone(v string) tone {
	r, g, b, ok := markup.ParseColor(v)
	if !ok {
		return toneInherit
	}
	if markup.Luminance(r, g, b) > 0.8 {
		return toneLight
	}
	return toneDark
}

func darkenText(n *html.Node) {
	markup.MapClasses(n, func(c string) string {
		switch {
		case c == "text-white":
			return "text-gray-900"
		case strings.HasPrefix(c, "text-white/"):
			return "text-gray-700"
		}
		if m := lightTxRe.FindStringSubmatch(c); m != nil && m[1] != "white" {
			return "text-" + m[1] + "-" + darkShade[m[2]]
		}
		return c
	})
	if !markup.HasAttr(n, "style") {
		return
	}
	style := markup.StyleOf(n)
	if colorTone(style.Get("color")) == toneLight {
		style.Set("color", darkText)
		style.Apply(n)
	}
}
