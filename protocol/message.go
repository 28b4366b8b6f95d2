// Package protocol defines the messages exchanged between the host and the
// render surface. Both sides only ever talk through these values: there is no
// shared state and no synchronous call across the boundary.
package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hazyhaar/pagesync/section"
)

// Type discriminates the Message union.
type Type string

const (
	TypeReady               Type = "READY"                 // surface→host
	TypeSync                Type = "SYNC"                  // host→surface
	TypeChange              Type = "CHANGE"                // surface→host
	TypeSelect              Type = "SELECT"                // surface→host
	TypeElementSelect       Type = "ELEMENT_SELECT"        // surface→host
	TypeEditing             Type = "EDITING"               // surface→host
	TypeUpdateActiveElement Type = "UPDATE_ACTIVE_ELEMENT" // host→surface
)

var knownTypes = map[Type]bool{
	TypeReady: true, TypeSync: true, TypeChange: true, TypeSelect: true,
	TypeElementSelect: true, TypeEditing: true, TypeUpdateActiveElement: true,
}

// ErrUnknownType is returned by Decode for a message type outside the table.
var ErrUnknownType = errors.New("protocol: unknown message type")

// Message is the tagged union carried by a transport. Only the fields
// relevant to Type are set.
type Message struct {
	Type Type `json:"type"`

	// SYNC
	Sections   []section.Section `json:"sections,omitempty"`
	SelectedID string            `json:"selectedId,omitempty"`

	// CHANGE
	ID      string `json:"id,omitempty"`
	Content string `json:"content,omitempty"`

	// SELECT
	SectionID string `json:"sectionId,omitempty"`

	// ELEMENT_SELECT
	Element *section.ActiveElement `json:"element,omitempty"`

	// EDITING
	Editing bool `json:"editing,omitempty"`

	// UPDATE_ACTIVE_ELEMENT
	Action Action `json:"action,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Ready announces that the surface finished bootstrapping.
func Ready() Message { return Message{Type: TypeReady} }

// Sync replaces the rendered tree. selectedID may be empty (no selection).
func Sync(sections []section.Section, selectedID string) Message {
	if sections == nil {
		sections = []section.Section{}
	}
	return Message{Type: TypeSync, Sections: sections, SelectedID: selectedID}
}

// Change commits the serialized content of one section.
func Change(id, content string) Message {
	return Message{Type: TypeChange, ID: id, Content: content}
}

// Select reports the section hit by a click.
func Select(sectionID string) Message {
	return Message{Type: TypeSelect, SectionID: sectionID}
}

// ElementSelect reports inspectable element metadata.
func ElementSelect(el section.ActiveElement) Message {
	return Message{Type: TypeElementSelect, Element: &el}
}

// Editing reports that an editable region gained or lost focus.
func Editing(on bool) Message {
	return Message{Type: TypeEditing, Editing: on}
}

// Command applies an action to the active element.
func Command(a Action, value string) Message {
	return Message{Type: TypeUpdateActiveElement, Action: a, Value: value}
}

// Validate checks that the fields required by Type are present.
func (m Message) Validate() error {
	switch m.Type {
	case TypeReady, TypeSync, TypeEditing:
		return nil
	case TypeChange:
		if m.ID == "" {
			return fmt.Errorf("protocol: CHANGE without id")
		}
	case TypeSelect:
		if m.SectionID == "" {
			return fmt.Errorf("protocol: SELECT without sectionId")
		}
	case TypeElementSelect:
		if m.Element == nil || m.Element.SectionID == "" {
			return fmt.Errorf("protocol: ELEMENT_SELECT without element")
		}
	case TypeUpdateActiveElement:
		if !m.Action.Valid() {
			return fmt.Errorf("protocol: invalid action %q", m.Action)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	return nil
}

// Encode serialises a Message to JSON.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode deserialises and validates a Message.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("protocol: decode: %w", err)
	}
	if !knownTypes[m.Type] {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Fingerprint is the SHA-256 hex digest of the canonical serialization of a
// SYNC payload. Equal fingerprints mean applying the payload is a no-op.
func Fingerprint(sections []section.Section, selectedID string) string {
	if sections == nil {
		sections = []section.Section{}
	}
	data, _ := json.Marshal(struct {
		Sections   []section.Section `json:"sections"`
		SelectedID string            `json:"selectedId"`
	}{sections, selectedID})
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
