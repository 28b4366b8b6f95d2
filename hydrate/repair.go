package hydrate

import (
	"regexp"
	"strings"

	"github.com/hazyhaar/pagesync/internal/markup"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// img tag text whose opening bracket was lost.
	bareImgRe = regexp.MustCompile(`(?i)<?\bimg\s+src\s*=\s*(?:"([^"]*)"|'([^']*)')([^>]*)>`)
	// attribute text left behind without an owning tag.
	orphanAttrRe = regexp.MustCompile(`^\s*"?\s*(?:(?:alt|style|class|width|height|loading|title)\s*=\s*(?:"[^"]*"|'[^']*')\s*)+/?>?`)
	attrPairRe   = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9-]*)\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	urlInJunkRe  = regexp.MustCompile(`(?:https?://|data:image/|/)[^\s"'<>]+`)
	attrNameRe   = regexp.MustCompile(`^[a-zA-Z_:][-a-zA-Z0-9_:.]*$`)
	doubledSrcRe = regexp.MustCompile(`(?i)src\s*=\s*(["'])\s*<?img\s+src\s*=\s*["']`)
)

// collapseDoubledSrc rewrites `src="<img src="url"` to `src="url"` before
// parsing; the tokenizer would otherwise scatter the URL across junk
// attribute names.
func collapseDoubledSrc(s string) string {
	for doubledSrcRe.MatchString(s) {
		s = doubledSrcRe.ReplaceAllString(s, "src=$1")
	}
	return s
}

// repairStructure fixes the malformed image patterns generated markup
// tends to contain.
func repairStructure(root *html.Node) {
	var texts []*html.Node
	markup.Walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return false
		}
		if n.Type == html.TextNode {
			texts = append(texts, n)
		}
		return true
	})
	for _, t := range texts {
		rebuildBareImages(t)
	}

	markup.Walk(root, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			n.Data = stripOrphanAttrs(n.Data)
		}
		return true
	})

	for _, img := range markup.FindAll(root, atom.Img) {
		repairImage(img)
	}
}

// rebuildBareImages splits a text node around `img src="…" …>` fragments
// and turns each into a real img element.
func rebuildBareImages(t *html.Node) {
	if t.Parent == nil {
		return
	}
	locs := bareImgRe.FindAllStringSubmatchIndex(t.Data, -1)
	if len(locs) == 0 {
		return
	}
	parent, data, last := t.Parent, t.Data, 0
	for _, loc := range locs {
		if loc[0] > last {
			parent.InsertBefore(markup.NewText(data[last:loc[0]]), t)
		}
		src := submatch(data, loc, 1)
		if src == "" {
			src = submatch(data, loc, 2)
		}
		img := markup.NewElement(atom.Img, html.Attribute{Key: "src", Val: src})
		for _, m := range attrPairRe.FindAllStringSubmatch(submatch(data, loc, 3), -1) {
			key := strings.ToLower(m[1])
			if key == "src" || markup.HasAttr(img, key) {
				continue
			}
			val := m[2]
			if val == "" {
				val = m[3]
			}
			markup.SetAttr(img, key, val)
		}
		parent.InsertBefore(img, t)
		last = loc[1]
	}
	if last < len(data) {
		parent.InsertBefore(markup.NewText(data[last:]), t)
	}
	parent.RemoveChild(t)
}

func submatch(s string, loc []int, i int) string {
	if loc[2*i] < 0 {
		return ""
	}
	return s[loc[2*i]:loc[2*i+1]]
}

func stripOrphanAttrs(s string) string {
	for {
		loc := orphanAttrRe.FindStringIndex(s)
		if loc == nil || loc[1] == 0 {
			return s
		}
		s = s[loc[1]:]
	}
}

// repairImage recovers a usable src from junk attributes left by a doubled
// `img src=` and drops attributes that are not valid names.
func repairImage(img *html.Node) {
	src := strings.TrimSpace(markup.Attr(img, "src"))
	if malformedSrc(src) {
		src = ""
		for _, a := range img.Attr {
			if m := urlInJunkRe.FindString(a.Key + " " + a.Val); m != "" && a.Key != "src" {
				src = strings.TrimRight(m, `"'>/`)
				break
			}
		}
		if src == "" {
			if m := urlInJunkRe.FindString(markup.Attr(img, "src")); m != "" && !strings.Contains(m, "<") {
				src = m
			}
		}
	}
	markup.RemoveAttr(img, func(k string) bool { return !attrNameRe.MatchString(k) })
	if src == "" {
		src = ProductPlaceholder()
	}
	markup.SetAttr(img, "src", src)
}

func malformedSrc(src string) bool {
	if src == "" {
		return true
	}
	return strings.ContainsAny(src, `<>"`) || strings.Contains(strings.ToLower(src), "src=")
}
