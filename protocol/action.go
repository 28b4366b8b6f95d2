package protocol

// Action is the closed set of commands the host may apply to the active
// element through UPDATE_ACTIVE_ELEMENT.
type Action string

const (
	ActionSetText         Action = "SET_TEXT"
	ActionSetSrc          Action = "SET_SRC"
	ActionSetHref         Action = "SET_HREF"
	ActionSetWidth        Action = "SET_WIDTH"   // "320px", "320" or "50%"
	ActionResetWidth      Action = "RESET_WIDTH" // drop explicit width
	ActionSetImageAlign   Action = "SET_IMAGE_ALIGN"
	ActionSetBackground   Action = "SET_BACKGROUND" // color or image URL
	ActionSetColor        Action = "SET_COLOR"
	ActionSetSectionColor Action = "SET_SECTION_COLOR"
	ActionSetTextAlign    Action = "SET_TEXT_ALIGN"
	ActionSetFontSize     Action = "SET_FONT_SIZE"
	ActionSetLineHeight   Action = "SET_LINE_HEIGHT"
	ActionEdit            Action = "EDIT"      // focus
	ActionExitEdit        Action = "EXIT_EDIT" // blur + flush
	ActionClearSelection  Action = "CLEAR_SELECTION"
)

var validActions = map[Action]bool{
	ActionSetText: true, ActionSetSrc: true, ActionSetHref: true,
	ActionSetWidth: true, ActionResetWidth: true, ActionSetImageAlign: true,
	ActionSetBackground: true, ActionSetColor: true, ActionSetSectionColor: true,
	ActionSetTextAlign: true, ActionSetFontSize: true, ActionSetLineHeight: true,
	ActionEdit: true, ActionExitEdit: true, ActionClearSelection: true,
}

// Valid reports whether a belongs to the closed action set.
func (a Action) Valid() bool { return validActions[a] }

// Flushes reports whether applying a must immediately emit a CHANGE for the
// owning section. Everything except focus and clear-selection does.
func (a Action) Flushes() bool {
	return a != ActionEdit && a != ActionClearSelection
}
