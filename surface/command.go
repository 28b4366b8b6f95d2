package surface

import (
	"context"
	"strconv"
	"strings"

	"github.com/hazyhaar/pagesync/internal/markup"
	"github.com/hazyhaar/pagesync/protocol"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var strictPolicy = bluemonday.StrictPolicy()

// command applies a host action to the active element. Every action except
// EDIT and CLEAR_SELECTION flushes the owning section at once.
func (s *Surface) command(ctx context.Context, action protocol.Action, value string) {
	if action == protocol.ActionClearSelection {
		s.clearActive()
		return
	}
	if s.active == nil {
		s.logger.Debug("surface: command without active element", "action", action)
		return
	}
	id := s.active.sectionID
	c := s.doc.container(id)
	n := resolve(c, s.active.xpath)
	if n == nil {
		s.logger.Debug("surface: active element vanished", "action", action, "section", id)
		s.active = nil
		return
	}

	switch action {
	case protocol.ActionEdit:
		s.editing = true
		s.send(ctx, protocol.Editing(true))
		return
	case protocol.ActionExitEdit:
		s.blur(ctx, id)
		return
	case protocol.ActionSetText:
		markup.ReplaceChildren(n, markup.NewText(plainText(value)))
	case protocol.ActionSetSrc:
		if n.DataAtom == atom.Img {
			markup.SetAttr(n, "src", value)
		}
	case protocol.ActionSetHref:
		if a := closest(n, atom.A); a != nil {
			markup.SetAttr(a, "href", value)
		}
	case protocol.ActionSetWidth:
		editStyle(n, func(st *markup.Style) {
			if value == "" {
				st.Del("width", "max-width")
				return
			}
			st.Set("width", cssLength(value))
			st.Set("max-width", "100%")
			st.Set("height", "auto")
		})
	case protocol.ActionResetWidth:
		editStyle(n, func(st *markup.Style) { st.Del("width", "max-width", "height") })
	case protocol.ActionSetImageAlign:
		editStyle(n, func(st *markup.Style) { alignBlock(st, value) })
	case protocol.ActionSetBackground:
		editStyle(n, func(st *markup.Style) { background(st, value) })
	case protocol.ActionSetColor:
		setStyle(n, "color", value)
	case protocol.ActionSetSectionColor:
		for _, k := range markup.ElementChildren(c) {
			setStyle(k, "color", value)
		}
	case protocol.ActionSetTextAlign:
		setStyle(n, "text-align", value)
	case protocol.ActionSetFontSize:
		setStyle(n, "font-size", cssLength(value))
	case protocol.ActionSetLineHeight:
		setStyle(n, "line-height", value)
	default:
		s.logger.Debug("surface: unknown action", "action", action)
		return
	}
	s.flushNow(ctx, id)
}

// plainText reduces a value to text; markup in SET_TEXT is not honoured.
func plainText(v string) string {
	return html.UnescapeString(strictPolicy.Sanitize(v))
}

func editStyle(n *html.Node, fn func(*markup.Style)) {
	st := markup.StyleOf(n)
	fn(&st)
	st.Apply(n)
}

func setStyle(n *html.Node, prop, value string) {
	editStyle(n, func(st *markup.Style) {
		if strings.TrimSpace(value) == "" {
			st.Del(prop)
			return
		}
		st.Set(prop, value)
	})
}

// cssLength adds px to bare numbers.
func cssLength(v string) string {
	v = strings.TrimSpace(v)
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v + "px"
	}
	return v
}

func alignBlock(st *markup.Style, align string) {
	left, right := "auto", "auto"
	switch align {
	case "left":
		left, right = "0", "auto"
	case "right":
		left, right = "auto", "0"
	case "center":
	default:
		st.Del("display", "margin-left", "margin-right")
		return
	}
	st.Set("display", "block")
	st.Set("margin-left", left)
	st.Set("margin-right", right)
}

func background(st *markup.Style, v string) {
	v = strings.TrimSpace(v)
	st.Del("background", "background-color", "background-image", "background-size", "background-position")
	switch {
	case v == "":
	case isImageRef(v):
		if !strings.HasPrefix(v, "url(") {
			v = `url("` + v + `")`
		}
		st.Set("background-image", v)
		st.Set("background-size", "cover")
		st.Set("background-position", "center")
	default:
		st.Set("background-color", v)
	}
}

func isImageRef(v string) bool {
	for _, p := range []string{"url(", "http://", "https://", "data:image/", "/"} {
		if strings.HasPrefix(v, p) {
			return true
		}
	}
	return false
}
