package hydrate

import (
	"regexp"
	"strings"

	"github.com/hazyhaar/pagesync/internal/markup"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Placeholder tokens embedded in generated markup.
const (
	TokenExpertPhoto  = "__EXPERT_PHOTO__"
	TokenExpertLogo   = "__EXPERT_LOGO__"
	TokenExpertName   = "__EXPERT_NAME__"
	TokenProductImage = "__PRODUCT_IMAGE__"
	TokenProductName  = "__PRODUCT_NAME__"
	TokenProductPrice = "__PRODUCT_PRICE__"
	TokenCheckoutURL  = "__CHECKOUT_URL__"
)

// unresolvedCheckout replaces __CHECKOUT_URL__ when the product has no
// external checkout.
const unresolvedCheckout = "#checkout"

var tokenRe = regexp.MustCompile(`__(?:EXPERT_PHOTO|EXPERT_LOGO|EXPERT_NAME|PRODUCT_IMAGE|PRODUCT_NAME|PRODUCT_PRICE|CHECKOUT_URL)__`)

// HasTokens reports whether s still contains a placeholder token.
func HasTokens(s string) bool { return tokenRe.MatchString(s) }

// resolver maps tokens to their values for one Records pair. Text and
// attribute contexts differ for unresolved images: a data URI makes sense
// as a src, not as prose.
type resolver struct {
	attr        map[string]string
	text        map[string]string
	logoMissing bool
}

func (p *Pipeline) newResolver(rec Records) resolver {
	photo, photoText := rec.Producer.BrandPhotoURL, rec.Producer.BrandPhotoURL
	if photo == "" {
		photo = PortraitPlaceholder()
	}
	product, productText := rec.Product.ImageURL, rec.Product.ImageURL
	if product == "" {
		product = ProductPlaceholder()
	}
	price := ""
	if rec.Product.Price > 0 {
		price = p.formatPrice(rec.Product.Price)
	}
	checkout := checkoutHref(rec)

	attr := map[string]string{
		TokenExpertPhoto:  photo,
		TokenExpertLogo:   rec.Producer.BrandLogoURL,
		TokenExpertName:   rec.Producer.Name,
		TokenProductImage: product,
		TokenProductName:  rec.Product.Name,
		TokenProductPrice: price,
		TokenCheckoutURL:  checkout,
	}
	text := make(map[string]string, len(attr))
	for k, v := range attr {
		text[k] = v
	}
	text[TokenExpertPhoto] = photoText
	text[TokenProductImage] = productText
	return resolver{attr: attr, text: text, logoMissing: rec.Producer.BrandLogoURL == ""}
}

func checkoutHref(rec Records) string {
	if u := rec.Product.CheckoutURL(); u != "" {
		return u
	}
	return unresolvedCheckout
}

// substitute replaces every token in text nodes and attribute values. An
// img whose src names a missing logo is dropped instead of rendered empty.
func (r resolver) substitute(root *html.Node) {
	markup.Walk(root, func(n *html.Node) bool {
		switch n.Type {
		case html.TextNode:
			if strings.Contains(n.Data, "__") {
				n.Data = tokenRe.ReplaceAllStringFunc(n.Data, func(tok string) string { return r.text[tok] })
			}
		case html.ElementNode:
			if r.logoMissing && n.DataAtom == atom.Img && strings.Contains(markup.Attr(n, "src"), TokenExpertLogo) {
				markup.Detach(n)
				return false
			}
			for i, a := range n.Attr {
				if strings.Contains(a.Val, "__") {
					n.Attr[i].Val = tokenRe.ReplaceAllStringFunc(a.Val, func(tok string) string { return r.attr[tok] })
				}
			}
		}
		return true
	})
}
