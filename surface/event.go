package surface

import "github.com/hazyhaar/pagesync/section"

// EventKind names a low-level interaction reported by the rendered page.
type EventKind string

const (
	EventInput    EventKind = "input"
	EventChange   EventKind = "change"
	EventKeyUp    EventKind = "keyup"
	EventPaste    EventKind = "paste"
	EventBlur     EventKind = "blur"
	EventFocus    EventKind = "focus"
	EventMutation EventKind = "mutation"
	EventClick    EventKind = "click"
	EventKeyDown  EventKind = "keydown"
)

// Event is one interaction inside a section container. XPath is relative
// to the container ("./div[1]/p[2]"); empty means the container itself.
//
// HTML and Text carry the new content of the target for input, change,
// keyup, paste and mutation events. HTML wins when both are set. A nil
// payload leaves the target untouched; a pointer to "" clears it.
type Event struct {
	Kind      EventKind    `json:"kind"`
	SectionID string       `json:"sectionId"`
	XPath     string       `json:"xpath,omitempty"`
	Text      *string      `json:"text,omitempty"`
	HTML      *string      `json:"html,omitempty"`
	Key       string       `json:"key,omitempty"`
	Rect      section.Rect `json:"rect"`
}

// Payload returns a pointer to v, for Event.Text and Event.HTML.
func Payload(v string) *string { return &v }
