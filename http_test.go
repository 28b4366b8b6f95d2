package pagesync

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/pagesync/protocol"
	"github.com/hazyhaar/pagesync/section"
	"github.com/hazyhaar/pagesync/transport"
)

func serve(t *testing.T, ed *Editor) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(ed.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func TestHTTP_Sections(t *testing.T) {
	srv := serve(t, newEditor(t, Config{Sections: faqDoc}))

	resp, body := do(t, http.MethodGet, srv.URL+"/api/sections", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %s", resp.StatusCode, body)
	}
	var list []section.Section
	json.Unmarshal(body, &list)
	if len(list) != 1 || list[0].ID != "faq" {
		t.Fatalf("list = %+v", list)
	}

	resp, body = do(t, http.MethodPost, srv.URL+"/api/sections", section.Section{ID: "faq", Type: section.RoleFAQ})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate create: %d %s", resp.StatusCode, body)
	}
	resp, body = do(t, http.MethodPost, srv.URL+"/api/sections", section.Section{Type: section.RoleCTA, Content: "<p>Buy</p>"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", resp.StatusCode, body)
	}
	var created section.Section
	json.Unmarshal(body, &created)

	resp, body = do(t, http.MethodPut, srv.URL+"/api/sections/faq", map[string]string{"content": "<p>Edited</p>"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put: %d %s", resp.StatusCode, body)
	}
	resp, body = do(t, http.MethodGet, srv.URL+"/api/sections/faq", nil)
	var got section.Section
	json.Unmarshal(body, &got)
	if got.Type != section.RoleFAQ || got.Content != "<p>Edited</p>" {
		t.Errorf("get after put = %+v", got)
	}

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/sections/"+created.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete: %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/api/sections/"+created.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get deleted: %d", resp.StatusCode)
	}

	resp, body = do(t, http.MethodPut, srv.URL+"/api/sections", []section.Section{{ID: "x", Type: section.RoleHero}, {ID: "x", Type: section.RoleHero}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("duplicate replace: %d %s", resp.StatusCode, body)
	}
}

func TestHTTP_Misc(t *testing.T) {
	srv := serve(t, newEditor(t, Config{Sections: faqDoc}))

	resp, body := do(t, http.MethodGet, srv.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"sections":1`) {
		t.Errorf("healthz: %d %s", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Trace-ID") == "" {
		t.Error("no trace header")
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/surface", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), SocketPath) {
		t.Errorf("surface: %d", resp.StatusCode)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/api/outline", nil)
	if !strings.Contains(string(body), "Question") {
		t.Errorf("outline: %s", body)
	}

	resp, body = do(t, http.MethodPost, srv.URL+"/api/hydrate", section.Section{Type: section.RoleFAQ, Content: `<p contenteditable="true">x</p>`})
	var h section.Section
	json.Unmarshal(body, &h)
	if h.Content != "<p>x</p>" {
		t.Errorf("hydrate preview: %s", body)
	}

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/select", map[string]string{"id": "faq"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("select without session: %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/active", map[string]string{"action": "EXPLODE"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad action: %d", resp.StatusCode)
	}

	rec := map[string]any{"product": map[string]any{"name": "Bread", "price": 12}}
	resp, _ = do(t, http.MethodPut, srv.URL+"/api/records", rec)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("put records: %d", resp.StatusCode)
	}
	_, body = do(t, http.MethodGet, srv.URL+"/api/records", nil)
	if !strings.Contains(string(body), `"name":"Bread"`) {
		t.Errorf("records: %s", body)
	}
}

func TestHTTP_WebSocketSession(t *testing.T) {
	ed := newEditor(t, Config{Sections: faqDoc})
	srv := serve(t, ed)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := transport.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+SocketPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if err := conn.Send(ctx, protocol.Ready()); err != nil {
		t.Fatal(err)
	}
	select {
	case m := <-conn.Inbox():
		if m.Type != protocol.TypeSync || len(m.Sections) != 1 {
			t.Fatalf("first message %+v", m)
		}
	case <-ctx.Done():
		t.Fatal("no SYNC")
	}

	if err := conn.Send(ctx, protocol.Change("faq", `<p data-editable="true">From socket</p>`)); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "socket commit", func() bool {
		s, _ := ed.Store().Get("faq")
		return s.Content == "<p>From socket</p>"
	})

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/select", map[string]string{"id": "faq"})
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("select with session: %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/active", map[string]string{"action": "SET_COLOR", "value": "red"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("command without active element: %d", resp.StatusCode)
	}
}
