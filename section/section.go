// Package section defines the document model shared by the host and the
// render surface. These types are the public contract: the generation
// collaborator hands the core a slice of Section values and persistence
// receives Section values back.
package section

// Role is the semantic role of a section.
type Role string

const (
	RoleHero     Role = "hero"
	RoleProblem  Role = "problem"
	RoleBenefits Role = "benefits"
	RoleMethod   Role = "method"
	RoleProof    Role = "proof"
	RoleAuthor   Role = "author"
	RoleOffer    Role = "offer"
	RoleFAQ      Role = "faq"
	RoleCTA      Role = "cta"
	RoleCustom   Role = "custom"
)

var knownRoles = map[Role]bool{
	RoleHero: true, RoleProblem: true, RoleBenefits: true, RoleMethod: true,
	RoleProof: true, RoleAuthor: true, RoleOffer: true, RoleFAQ: true,
	RoleCTA: true, RoleCustom: true,
}

// Known reports whether r is one of the recognised roles. Unknown roles are
// legal and are handled as generic content.
func (r Role) Known() bool { return knownRoles[r] }

// Section is one ordered, independently addressable content block.
// Content is a self-contained markup fragment without a document wrapper and,
// once committed, without editor instrumentation.
type Section struct {
	ID      string `json:"id"`
	Type    Role   `json:"type"`
	Content string `json:"content"`
}

// Rect is an on-screen rectangle reported by the surface, in CSS pixels.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ActiveElement describes the element currently inspected in the surface.
// It is ephemeral: owned by the host for one command session, never persisted.
type ActiveElement struct {
	SectionID       string `json:"sectionId"`
	TagName         string `json:"tagName"`
	XPath           string `json:"xpath,omitempty"` // container-relative
	Content         string `json:"content,omitempty"`
	Src             string `json:"src,omitempty"`
	Href            string `json:"href,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	Color           string `json:"color,omitempty"`
	FontSize        string `json:"fontSize,omitempty"`
	LineHeight      string `json:"lineHeight,omitempty"`
	TextAlign       string `json:"textAlign,omitempty"`
	Rect            Rect   `json:"rect"`
}

// Clone returns a deep copy of sections.
func Clone(sections []Section) []Section {
	if sections == nil {
		return nil
	}
	out := make([]Section, len(sections))
	copy(out, sections)
	return out
}

// Index returns the position of the section with the given ID, or -1.
func Index(sections []Section, id string) int {
	for i, s := range sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}
