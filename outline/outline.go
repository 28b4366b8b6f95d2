// Package outline renders the document as Markdown for collaborators who
// review copy outside the editor.
package outline

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/hazyhaar/pagesync/hydrate"
	"github.com/hazyhaar/pagesync/internal/markup"
	"github.com/hazyhaar/pagesync/section"
	"golang.org/x/net/html/atom"
)

// inlineImage stands in for data: URIs, which are unreadable in Markdown.
const inlineImage = "#inline-image"

// Outliner converts section markup to Markdown.
type Outliner struct {
	conv *converter.Converter
}

// New creates an Outliner.
func New() *Outliner {
	return &Outliner{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Section converts one section's content.
func (o *Outliner) Section(s section.Section) (string, error) {
	root := markup.ParseFragment(s.Content)
	hydrate.StripTree(root)
	for _, img := range markup.FindAll(root, atom.Img) {
		if strings.HasPrefix(markup.Attr(img, "src"), "data:") {
			markup.SetAttr(img, "src", inlineImage)
		}
	}
	md, err := o.conv.ConvertString(markup.RenderChildren(root))
	if err != nil {
		return "", fmt.Errorf("outline: section %s: %w", s.ID, err)
	}
	return strings.TrimSpace(md), nil
}

// Document converts every section, each introduced by a marker comment
// carrying its id and role.
func (o *Outliner) Document(sections []section.Section) (string, error) {
	var b strings.Builder
	for i, s := range sections {
		md, err := o.Section(s)
		if err != nil {
			return "", err
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "<!-- section id=%s type=%s -->\n\n%s", s.ID, s.Type, md)
	}
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	return b.String(), nil
}
