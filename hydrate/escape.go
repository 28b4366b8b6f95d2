package hydrate

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var escapedTagRe = regexp.MustCompile(`&(?:amp;)?lt;/?[a-zA-Z]`)

// unescapeMarkup turns markup that arrived as literal entities back into
// markup. Fragments that already contain a real tag are left alone.
func unescapeMarkup(s string) string {
	if strings.Contains(s, "<") || !escapedTagRe.MatchString(s) {
		return s
	}
	s = strings.NewReplacer("&amp;lt;", "&lt;", "&amp;gt;", "&gt;", "&amp;quot;", "&quot;").Replace(s)
	return html.UnescapeString(s)
}
