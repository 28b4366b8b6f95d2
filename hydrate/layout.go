package hydrate

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hazyhaar/pagesync/internal/markup"
	"github.com/hazyhaar/pagesync/section"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	AuthorPortraitClass  = "author-portrait"
	AuthorPortraitWidth  = "256"
	AuthorPortraitHeight = "320"
	HeroImageClass       = "hero-product-image"

	maxAuthorParagraphs = 2
	maxAuthorBullets    = 3

	fallbackAuthorHeading = "About the author"
	fallbackAuthorBody    = "Years of hands-on practice, distilled into a method you can apply today."
)

func (p *Pipeline) enforceLayout(root *html.Node, role section.Role, rec Records) {
	if role == section.RoleAuthor && !p.freeformAuthor {
		enforceAuthor(root, rec)
	}
	switch role {
	case section.RoleAuthor, section.RoleProof, section.RoleOffer:
	default:
		if n := unwrapDecorative(root); n > 0 {
			p.logger.Debug("hydrate: unwrapped decorative wrappers", "role", role, "count", n)
		}
	}
	if role == section.RoleHero {
		ensureHeroImage(root, rec)
	}
}

// enforceAuthor rebuilds the fragment as the canonical two-column author
// block: one fixed-size portrait, a heading, up to two paragraphs and up to
// three credentials, all taken from whatever the fragment carried.
func enforceAuthor(root *html.Node, rec Records) {
	doc := goquery.NewDocumentFromNode(root)

	var src, alt string
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ = s.Attr("src")
		alt, _ = s.Attr("alt")
		return false
	})
	if src == "" {
		src = rec.Producer.BrandPhotoURL
	}
	if src == "" {
		src = PortraitPlaceholder()
	}

	heading := firstText(doc.Find("h1, h2, h3, h4"))
	if heading == "" {
		heading = firstText(doc.Find("strong, b"))
	}
	if heading == "" {
		heading = strings.TrimSpace(rec.Producer.Name)
	}
	if heading == "" {
		heading = fallbackAuthorHeading
	}
	if alt == "" {
		alt = rec.Producer.Name
	}
	if alt == "" {
		alt = heading
	}

	authority := strings.TrimSpace(rec.Producer.Authority)
	authorityUsed := false
	var paragraphs, surplus []*html.Node
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		n := s.Nodes[0]
		if markup.HasAncestor(n, atom.Li) {
			return
		}
		para := authorParagraph(cleanInline(n, rec)...)
		t := markup.Text(para)
		if t == "" || t == heading {
			return
		}
		if len(paragraphs) >= maxAuthorParagraphs {
			surplus = append(surplus, para)
			return
		}
		paragraphs = append(paragraphs, para)
		if t == authority {
			authorityUsed = true
		}
	})
	if len(paragraphs) == 0 {
		text := leftoverText(root, heading)
		switch {
		case text != "":
		case authority != "":
			text, authorityUsed = authority, true
		default:
			text = fallbackAuthorBody
		}
		paragraphs = append(paragraphs, authorParagraph(markup.NewText(text)))
	}

	var bullets []*html.Node
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		n := s.Nodes[0]
		if len(bullets) >= maxAuthorBullets || markup.HasAncestor(n, atom.Li) {
			return
		}
		if li := authorBullet(cleanInline(n, rec)...); markup.Text(li) != "" {
			bullets = append(bullets, li)
		}
	})
	if len(bullets) == 0 {
		for _, para := range surplus {
			if len(bullets) >= maxAuthorBullets {
				break
			}
			li := authorBullet()
			for c := para.FirstChild; c != nil; {
				next := c.NextSibling
				para.RemoveChild(c)
				li.AppendChild(c)
				c = next
			}
			bullets = append(bullets, li)
		}
	}
	if len(bullets) == 0 && authority != "" && !authorityUsed {
		bullets = append(bullets, authorBullet(markup.NewText(authority)))
	}

	img := markup.NewElement(atom.Img,
		html.Attribute{Key: "src", Val: src},
		html.Attribute{Key: "alt", Val: alt},
		html.Attribute{Key: "class", Val: AuthorPortraitClass + " w-64 h-80 object-cover rounded-2xl shadow-lg"},
		html.Attribute{Key: "width", Val: AuthorPortraitWidth},
		html.Attribute{Key: "height", Val: AuthorPortraitHeight},
	)
	media := markup.NewElement(atom.Div, html.Attribute{Key: "class", Val: "author-media flex justify-center"})
	media.AppendChild(img)

	h2 := markup.NewElement(atom.H2, html.Attribute{Key: "class", Val: "text-3xl font-bold mb-4"})
	h2.AppendChild(markup.NewText(heading))
	text := markup.NewElement(atom.Div, html.Attribute{Key: "class", Val: "author-body"})
	text.AppendChild(h2)
	for _, para := range paragraphs {
		text.AppendChild(para)
	}
	if len(bullets) > 0 {
		ul := markup.NewElement(atom.Ul, html.Attribute{Key: "class", Val: "mt-6 space-y-2 list-disc pl-5"})
		for _, li := range bullets {
			ul.AppendChild(li)
		}
		text.AppendChild(ul)
	}

	grid := markup.NewElement(atom.Div,
		html.Attribute{Key: "data-layout", Val: "author"},
		html.Attribute{Key: "class", Val: "max-w-5xl mx-auto grid md:grid-cols-2 gap-12 items-center"},
	)
	grid.AppendChild(media)
	grid.AppendChild(text)

	wrapper := markup.LoneElementChild(root)
	if !markup.IsElement(wrapper, atom.Section, atom.Div) || markup.Attr(wrapper, "data-layout") == "author" {
		wrapper = markup.NewElement(atom.Section, html.Attribute{Key: "class", Val: "py-16 px-6"})
	}
	markup.ReplaceChildren(root, wrapper)
	markup.ReplaceChildren(wrapper, grid)
}

func firstText(s *goquery.Selection) string {
	out := ""
	s.EachWithBreak(func(_ int, e *goquery.Selection) bool {
		out = markup.Text(e.Nodes[0])
		return out == ""
	})
	return out
}

func authorParagraph(kids ...*html.Node) *html.Node {
	p := markup.NewElement(atom.P, html.Attribute{Key: "class", Val: "text-lg leading-relaxed mb-4"})
	for _, k := range kids {
		p.AppendChild(k)
	}
	return p
}

func authorBullet(kids ...*html.Node) *html.Node {
	li := markup.NewElement(atom.Li)
	for _, k := range kids {
		li.AppendChild(k)
	}
	return li
}

// cleanInline clones the children of n without images, commerce links or
// nested block lists.
func cleanInline(n *html.Node, rec Records) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		k := markup.Clone(c)
		if dropFromAuthor(k, rec) {
			continue
		}
		markup.Walk(k, func(d *html.Node) bool {
			if d != k && dropFromAuthor(d, rec) {
				markup.Detach(d)
				return false
			}
			return true
		})
		out = append(out, k)
	}
	return out
}

func dropFromAuthor(n *html.Node, rec Records) bool {
	switch {
	case markup.IsElement(n, atom.Img, atom.Picture, atom.Ul, atom.Ol):
		return true
	case markup.IsElement(n, atom.A):
		return isCommerceLink(markup.Attr(n, "href"), rec)
	}
	return false
}

func isCommerceLink(href string, rec Records) bool {
	if href == "" {
		return false
	}
	return href == checkoutHref(rec) || href == unresolvedCheckout ||
		(rec.Product.ExternalURL != "" && href == rec.Product.ExternalURL)
}

// leftoverText collects prose sitting outside headings, lists and links.
func leftoverText(root *html.Node, heading string) string {
	var parts []string
	markup.Walk(root, func(n *html.Node) bool {
		switch n.Type {
		case html.ElementNode:
			if markup.IsElement(n, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
				atom.Li, atom.A, atom.Button, atom.Script, atom.Style) {
				return false
			}
			if markup.IsElement(n, atom.Strong, atom.B) && markup.Text(n) == heading {
				return false
			}
		case html.TextNode:
			parts = append(parts, n.Data)
		}
		return true
	})
	text := markup.CollapseSpace(strings.Join(parts, " "))
	if text == heading {
		return ""
	}
	return text
}

// ensureHeroImage injects the product image when the hero has none.
func ensureHeroImage(root *html.Node, rec Records) {
	if len(markup.FindAll(root, atom.Img)) > 0 {
		return
	}
	src := rec.Product.ImageURL
	if src == "" {
		src = ProductPlaceholder()
	}
	img := markup.NewElement(atom.Img,
		html.Attribute{Key: "src", Val: src},
		html.Attribute{Key: "alt", Val: rec.Product.Name},
		html.Attribute{Key: "class", Val: HeroImageClass + " w-full max-w-md rounded-2xl shadow-xl"},
	)
	media := markup.NewElement(atom.Div, html.Attribute{Key: "class", Val: "hero-media mt-8 flex justify-center"})
	media.AppendChild(img)

	target := root
	if c := markup.LoneElementChild(root); markup.IsElement(c, atom.Section, atom.Div, atom.Header, atom.Main, atom.Article) {
		target = c
	}
	target.AppendChild(media)
}

// unwrapDecorative removes card/page boxes that are the lone child of the
// fragment's outer wrapper, repeatedly. Returns how many were removed.
func unwrapDecorative(root *html.Node) int {
	outer := markup.LoneElementChild(root)
	if outer == nil {
		return 0
	}
	count := 0
	for {
		inner := markup.LoneElementChild(outer)
		if !markup.IsElement(inner, atom.Div, atom.Article, atom.Section) || !decorative(inner) {
			return count
		}
		markup.Unwrap(inner)
		count++
	}
}

// decorative reports whether n's classes make it a visual box: background,
// rounding, padding and a shadow or a narrow width.
func decorative(n *html.Node) bool {
	var bg, rounded, padded, boxed bool
	for _, c := range markup.Classes(n) {
		base, _ := markup.BaseClass(c)
		switch {
		case strings.HasPrefix(base, "bg-"):
			bg = true
		case base == "rounded" || strings.HasPrefix(base, "rounded-"):
			rounded = true
		case base == "shadow" || strings.HasPrefix(base, "shadow-") || strings.HasPrefix(base, "max-w-"):
			boxed = true
		case isPadding(base):
			padded = true
		}
	}
	return bg && rounded && padded && boxed
}

func isPadding(c string) bool {
	for _, p := range []string{"p-", "px-", "py-", "pt-", "pb-", "pl-", "pr-", "ps-", "pe-"} {
		if strings.HasPrefix(c, p) {
			return true
		}
	}
	return false
}
