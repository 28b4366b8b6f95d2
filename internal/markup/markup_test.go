package markup

import (
	"testing"

	"golang.org/x/net/html/atom"
)

func TestParseRenderRoundTrip(t *testing.T) {
	in := `<section class="py-8"><h1>Hello &amp; welcome</h1><img src="a.png"/></section>`
	root := ParseFragment(in)
	if got := RenderChildren(root); got != in {
		t.Errorf("RenderChildren:\n got %s\nwant %s", got, in)
	}
}

func TestLoneElementChild(t *testing.T) {
	root := ParseFragment(`  <div><p>a</p></div>  `)
	if LoneElementChild(root) == nil {
		t.Fatal("expected lone div")
	}
	root = ParseFragment(`<div></div> text`)
	if LoneElementChild(root) != nil {
		t.Error("text sibling must disqualify")
	}
}

func TestUnwrap(t *testing.T) {
	root := ParseFragment(`<section><div class="card"><p>a</p><p>b</p></div></section>`)
	div := FindAll(root, atom.Div)[0]
	Unwrap(div)
	if got := RenderChildren(root); got != `<section><p>a</p><p>b</p></section>` {
		t.Errorf("Unwrap: %s", got)
	}
}

func TestMapClasses(t *testing.T) {
	root := ParseFragment(`<p class="text-white md:text-white font-bold">x</p>`)
	p := FindAll(root, atom.P)[0]
	MapClasses(p, func(c string) string {
		if c == "text-white" {
			return "text-gray-900"
		}
		return c
	})
	if got := Attr(p, "class"); got != "text-gray-900 md:text-white font-bold" {
		t.Errorf("class = %q", got)
	}
}

func TestStyleEdit(t *testing.T) {
	s := ParseStyle("color: red; font-size: 12px")
	s.Set("color", "#111")
	s.Del("font-size")
	s.Set("text-align", "center")
	if got := s.String(); got != "color: #111; text-align: center" {
		t.Errorf("style = %q", got)
	}
	if ParseStyle("").Len() != 0 {
		t.Error("empty style should have no declarations")
	}
}

func TestParseColor(t *testing.T) {
	cases := []struct {
		in    string
		light bool
	}{
		{"#fff", true},
		{"#FFFFFF", true},
		{"rgb(250, 250, 250)", true},
		{"white", true},
		{"#111827", false},
		{"rgba(0,0,0,0.5)", false},
	}
	for _, c := range cases {
		r, g, b, ok := ParseColor(c.in)
		if !ok {
			t.Errorf("ParseColor(%q) failed", c.in)
			continue
		}
		if got := Luminance(r, g, b) > 0.8; got != c.light {
			t.Errorf("%q light = %v, want %v", c.in, got, c.light)
		}
	}
	if _, _, _, ok := ParseColor("var(--x)"); ok {
		t.Error("css variables are not parseable colors")
	}
}

func TestText(t *testing.T) {
	root := ParseFragment("<p>Hello <b>big</b>\n world<script>x()</script></p>")
	if got := Text(root); got != "Hello big world" {
		t.Errorf("Text = %q", got)
	}
}
