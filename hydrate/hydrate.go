// Package hydrate turns raw generated or edited section markup into markup
// that is safe to render and to store: escaped-markup repair, placeholder
// substitution, structural repair, role layout, contrast and link safety.
//
// Every stage is a tree transform over golang.org/x/net/html nodes. The
// pipeline is total and idempotent: Content(r, Content(r, x)) equals
// Content(r, x).
package hydrate

import (
	"fmt"
	"log/slog"

	"github.com/hazyhaar/pagesync/internal/markup"
	"github.com/hazyhaar/pagesync/section"
)

// Records are the collaborator values placeholders resolve against. They
// are passed per call, never held as ambient state.
type Records struct {
	Producer section.Producer `json:"producer" yaml:"producer"`
	Product  section.Product  `json:"product" yaml:"product"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFreeformAuthor disables the canonical author layout.
func WithFreeformAuthor(on bool) Option {
	return func(p *Pipeline) { p.freeformAuthor = on }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithPriceFormat overrides how __PRODUCT_PRICE__ renders. Default: "%.2f".
func WithPriceFormat(fn func(float64) string) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.formatPrice = fn
		}
	}
}

// Pipeline is safe for concurrent use; it holds configuration only.
type Pipeline struct {
	freeformAuthor bool
	logger         *slog.Logger
	formatPrice    func(float64) string
}

// New creates a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		logger:      slog.Default(),
		formatPrice: func(v float64) string { return fmt.Sprintf("%.2f", v) },
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Section hydrates s.Content for role s.Type.
func (p *Pipeline) Section(s section.Section, rec Records) section.Section {
	s.Content = p.Content(s.Type, s.Content, rec)
	return s
}

// Content runs every stage on one fragment. A panic inside a stage is
// logged and the input is returned unchanged.
func (p *Pipeline) Content(role section.Role, content string, rec Records) (out string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("hydrate: stage panic", "role", role, "panic", r)
			out = content
		}
	}()

	root := markup.ParseFragment(collapseDoubledSrc(unescapeMarkup(content)))
	StripTree(root)
	p.newResolver(rec).substitute(root)
	repairStructure(root)
	p.enforceLayout(root, role, rec)
	normalizeContrast(root)
	secureCheckoutLinks(root, rec)
	return markup.RenderChildren(root)
}

// Sections hydrates a whole document.
func (p *Pipeline) Sections(in []section.Section, rec Records) []section.Section {
	out := make([]section.Section, len(in))
	for i, s := range in {
		out[i] = p.Section(s, rec)
	}
	return out
}
