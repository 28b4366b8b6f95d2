package pagesync

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/pagesync/section"
)

var testMCPImpl = &mcp.Implementation{Name: "pagesync-test", Version: "0.1.0"}

func mcpSession(t *testing.T, ed *Editor) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	ed.RegisterMCP(srv)
	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()
	session, err := mcp.NewClient(testMCPImpl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text, result.IsError
}

func TestMCP_Tools(t *testing.T) {
	ed := newEditor(t, Config{Sections: faqDoc})
	s := mcpSession(t, ed)

	text, isErr := callTool(t, s, "pagesync_list_sections", map[string]any{})
	if isErr || !strings.Contains(text, `"id":"faq"`) {
		t.Errorf("list: %s", text)
	}

	text, isErr = callTool(t, s, "pagesync_get_section", map[string]any{"id": "faq"})
	var got section.Section
	json.Unmarshal([]byte(text), &got)
	if isErr || got.Content != "<p>Question</p>" {
		t.Errorf("get: %s", text)
	}
	if _, isErr = callTool(t, s, "pagesync_get_section", map[string]any{"id": "nope"}); !isErr {
		t.Error("get unknown: expected tool error")
	}

	text, isErr = callTool(t, s, "pagesync_put_section", map[string]any{"id": "faq", "content": "<p>Via MCP</p>"})
	if isErr {
		t.Fatalf("put: %s", text)
	}
	if cur, _ := ed.Section("faq"); cur.Content != "<p>Via MCP</p>" || cur.Type != section.RoleFAQ {
		t.Errorf("after put %+v", cur)
	}
	if _, isErr = callTool(t, s, "pagesync_put_section", map[string]any{"content": "<p>typeless</p>"}); !isErr {
		t.Error("put new section without type: expected tool error")
	}

	text, _ = callTool(t, s, "pagesync_hydrate", map[string]any{"type": "faq", "content": `<p class="pgs-active">x</p>`})
	json.Unmarshal([]byte(text), &got)
	if got.Content != "<p>x</p>" {
		t.Errorf("hydrate: %s", text)
	}

	text, _ = callTool(t, s, "pagesync_outline", map[string]any{})
	if !strings.Contains(text, "Via MCP") {
		t.Errorf("outline: %s", text)
	}
}
