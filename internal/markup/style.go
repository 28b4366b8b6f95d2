package markup

import (
	"strconv"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

// Style is an editable inline style declaration list.
type Style struct {
	decls []*css.Declaration
}

// ParseStyle parses an inline style attribute value. Invalid input yields
// an empty Style.
func ParseStyle(s string) Style {
	if strings.TrimSpace(s) == "" {
		return Style{}
	}
	decls, err := parser.ParseDeclarations(s)
	if err != nil {
		return Style{}
	}
	return Style{decls: decls}
}

// StyleOf parses n's style attribute.
func StyleOf(n *html.Node) Style {
	return ParseStyle(Attr(n, "style"))
}

// Get returns the last value declared for prop.
func (s Style) Get(prop string) string {
	v := ""
	for _, d := range s.decls {
		if strings.EqualFold(d.Property, prop) {
			v = d.Value
		}
	}
	return v
}

// Set replaces every declaration of prop with a single one.
func (s *Style) Set(prop, val string) {
	s.Del(prop)
	s.decls = append(s.decls, &css.Declaration{Property: prop, Value: val})
}

// Del removes the given properties.
func (s *Style) Del(props ...string) {
	kept := s.decls[:0]
	for _, d := range s.decls {
		drop := false
		for _, p := range props {
			if strings.EqualFold(d.Property, p) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, d)
		}
	}
	s.decls = kept
}

// Len is the number of declarations.
func (s Style) Len() int { return len(s.decls) }

func (s Style) String() string {
	parts := make([]string, 0, len(s.decls))
	for _, d := range s.decls {
		v := d.Property + ": " + d.Value
		if d.Important {
			v += " !important"
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, "; ")
}

// Apply writes s back to n, dropping the attribute when empty.
func (s Style) Apply(n *html.Node) {
	if len(s.decls) == 0 {
		DelAttr(n, "style")
		return
	}
	SetAttr(n, "style", s.String())
}

var namedColors = map[string][3]int{
	"white": {255, 255, 255}, "black": {0, 0, 0}, "ivory": {255, 255, 240},
	"snow": {255, 250, 250}, "whitesmoke": {245, 245, 245}, "gainsboro": {220, 220, 220},
	"beige": {245, 245, 220}, "linen": {250, 240, 230}, "lightgray": {211, 211, 211},
	"lightgrey": {211, 211, 211}, "silver": {192, 192, 192}, "gray": {128, 128, 128},
	"grey": {128, 128, 128}, "red": {255, 0, 0}, "blue": {0, 0, 255}, "navy": {0, 0, 128},
	"green": {0, 128, 0}, "yellow": {255, 255, 0},
}

// ParseColor understands #rgb, #rrggbb, rgb()/rgba() and a few named colors.
func ParseColor(v string) (r, g, b int, ok bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if c, found := namedColors[v]; found {
		return c[0], c[1], c[2], true
	}
	if strings.HasPrefix(v, "#") {
		hex := v[1:]
		if len(hex) == 3 || len(hex) == 4 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 && len(hex) != 8 {
			return 0, 0, 0, false
		}
		n, err := strconv.ParseUint(hex[:6], 16, 32)
		if err != nil {
			return 0, 0, 0, false
		}
		return int(n >> 16 & 0xff), int(n >> 8 & 0xff), int(n & 0xff), true
	}
	if strings.HasPrefix(v, "rgb") {
		open, closing := strings.IndexByte(v, '('), strings.IndexByte(v, ')')
		if open < 0 || closing < open {
			return 0, 0, 0, false
		}
		parts := strings.FieldsFunc(v[open+1:closing], func(r rune) bool { return r == ',' || r == ' ' || r == '/' })
		if len(parts) < 3 {
			return 0, 0, 0, false
		}
		var c [3]int
		for i := 0; i < 3; i++ {
			f, err := strconv.ParseFloat(strings.TrimSuffix(parts[i], "%"), 64)
			if err != nil {
				return 0, 0, 0, false
			}
			if strings.HasSuffix(parts[i], "%") {
				f = f * 255 / 100
			}
			c[i] = int(f)
		}
		return c[0], c[1], c[2], true
	}
	return 0, 0, 0, false
}

// Luminance returns the relative brightness of a color in [0,1].
func Luminance(r, g, b int) float64 {
	return (0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)) / 255
}
