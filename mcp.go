package pagesync

import (
	"context"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/pagesync/kit"
	"github.com/hazyhaar/pagesync/section"
)

// RegisterMCP registers the editor tools on srv.
func (ed *Editor) RegisterMCP(srv *mcp.Server) {
	ed.registerListTool(srv)
	ed.registerGetTool(srv)
	ed.registerPutTool(srv)
	ed.registerHydrateTool(srv)
	ed.registerOutlineTool(srv)
}

// MCPServer returns a server carrying the editor tools.
func (ed *Editor) MCPServer(version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "pagesync", Version: version}, nil)
	ed.RegisterMCP(srv)
	return srv
}

func (ed *Editor) mcpHandler() http.Handler {
	srv := ed.MCPServer("1.0.0")
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var sectionProps = map[string]any{
	"id":      map[string]any{"type": "string", "description": "Section id; empty creates a new section"},
	"type":    map[string]any{"type": "string", "description": "Section role: hero, problem, benefits, method, proof, author, offer, faq, cta or custom"},
	"content": map[string]any{"type": "string", "description": "HTML fragment"},
}

type idReq struct {
	ID string `json:"id"`
}

func (ed *Editor) registerListTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagesync_list_sections",
		Description: "List the sections of the edited document in order, without their content.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(context.Context, any) (any, error) {
		type entry struct {
			ID   string       `json:"id"`
			Type section.Role `json:"type"`
			Size int          `json:"size"`
		}
		secs := ed.Sections()
		out := make([]entry, len(secs))
		for i, s := range secs {
			out[i] = entry{ID: s.ID, Type: s.Type, Size: len(s.Content)}
		}
		return map[string]any{"sections": out}, nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeJSON[struct{}]())
}

func (ed *Editor) registerGetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagesync_get_section",
		Description: "Return one section with its HTML content.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Section id"},
		}, []string{"id"}),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		return ed.Section(req.(idReq).ID)
	}
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeJSON[idReq]())
}

func (ed *Editor) registerPutTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagesync_put_section",
		Description: "Create or replace a section. The content is hydrated before it is stored and pushed to connected surfaces.",
		InputSchema: inputSchema(sectionProps, []string{"content"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		s := req.(section.Section)
		if s.Type == "" {
			if cur, ok := ed.store.Get(s.ID); ok {
				s.Type = cur.Type
			} else {
				return nil, fmt.Errorf("type is required for a new section")
			}
		}
		return ed.Put(ctx, s)
	}
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeJSON[section.Section]())
}

func (ed *Editor) registerHydrateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagesync_hydrate",
		Description: "Run the hydration pipeline on a fragment without storing it.",
		InputSchema: inputSchema(sectionProps, []string{"type", "content"}),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		return ed.Hydrate(req.(section.Section)), nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeJSON[section.Section]())
}

func (ed *Editor) registerOutlineTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagesync_outline",
		Description: "Render the document as Markdown.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(context.Context, any) (any, error) {
		md, err := ed.Outline()
		if err != nil {
			return nil, err
		}
		return map[string]string{"markdown": md}, nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeJSON[struct{}]())
}
