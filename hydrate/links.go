package hydrate

import (
	"github.com/hazyhaar/pagesync/internal/markup"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// secureCheckoutLinks makes links to the external checkout open in a new
// browsing context without an opener.
func secureCheckoutLinks(root *html.Node, rec Records) {
	checkout := rec.Product.CheckoutURL()
	if checkout == "" {
		return
	}
	for _, a := range markup.FindAll(root, atom.A) {
		if markup.Attr(a, "href") != checkout {
			continue
		}
		markup.SetAttr(a, "target", "_blank")
		markup.SetAttr(a, "rel", "noopener noreferrer")
	}
}
