package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// fakeDevTools emulates the Chrome remote-debugging HTTP and websocket
// surface close enough for the client to attach.
type fakeDevTools struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	closedTargets []string
}

func newFakeDevTools(t *testing.T) *fakeDevTools {
	t.Helper()
	f := &fakeDevTools{}

	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"Browser":              "Chrome/128.0.0.0",
			"webSocketDebuggerUrl": "ws://ignored-host/devtools/browser/abc",
		})
	})
	mux.HandleFunc("/json/new", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"id":                   "page-1",
			"webSocketDebuggerUrl": "ws://ignored-host/devtools/page/page-1",
		})
	})
	mux.HandleFunc("/json/close/", func(w http.ResponseWriter, r *http.Request) {
		f.closedTargets = append(f.closedTargets, strings.TrimPrefix(r.URL.Path, "/json/close/"))
		fmt.Fprint(w, "Target is closing")
	})
	mux.HandleFunc("/devtools/", f.serveWS)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeDevTools) address() string {
	return strings.TrimPrefix(f.server.URL, "http://")
}

func (f *fakeDevTools) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var req struct {
			ID     int            `json:"id"`
			Method string         `json:"method"`
			Params map[string]any `json:"params"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		// interleave a protocol event before every response; the client
		// must skip it while waiting for its command result
		conn.WriteJSON(map[string]any{"method": "Page.frameNavigated", "params": map[string]any{}})

		resp := map[string]any{"id": req.ID, "result": map[string]any{}}
		switch req.Method {
		case "Page.navigate":
			if req.Params["url"] == "https://broken.invalid" {
				resp["result"] = map[string]any{"errorText": "net::ERR_NAME_NOT_RESOLVED"}
			} else {
				resp["result"] = map[string]any{"frameId": "f1"}
			}
		case "Runtime.evaluate":
			expr, _ := req.Params["expression"].(string)
			if expr == "navigator.userAgent" {
				resp["result"] = map[string]any{"result": map[string]any{"value": "Mozilla/5.0 Test"}}
			} else if expr == "boom" {
				resp["result"] = map[string]any{"exceptionDetails": map[string]any{"text": "ReferenceError"}}
			} else {
				resp["result"] = map[string]any{"result": map[string]any{"value": 42}}
			}
		case "Storage.getCookies":
			resp["result"] = map[string]any{"cookies": []map[string]any{
				{"name": "SESSDATA", "value": "tok", "domain": ".bilibili.com"},
				{"name": "buvid3", "value": "xyz"},
			}}
		}
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

func TestCDP_LaunchAndPage(t *testing.T) {
	fake := newFakeDevTools(t)
	cdp := NewCDP(fake.address(), nil)
	ctx := context.Background()

	handle, err := cdp.Launch(ctx)
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	defer handle.Close(ctx)

	page, err := handle.NewPage(ctx)
	if err != nil {
		t.Fatalf("NewPage failed: %v", err)
	}

	if err := page.Navigate(ctx, "https://www.bilibili.com"); err != nil {
		t.Errorf("Navigate failed: %v", err)
	}
	if err := page.Navigate(ctx, "https://broken.invalid"); err == nil {
		t.Error("expected navigation error for broken url")
	}

	ua, err := page.UserAgent(ctx)
	if err != nil {
		t.Fatalf("UserAgent failed: %v", err)
	}
	if ua != "Mozilla/5.0 Test" {
		t.Errorf("unexpected user agent: %q", ua)
	}

	if _, err := page.Evaluate(ctx, "boom"); err == nil {
		t.Error("expected evaluate exception to surface as error")
	}
	// non-string values come back JSON-encoded
	if v, err := page.Evaluate(ctx, "6*7"); err != nil || v != "42" {
		t.Errorf("expected \"42\", got %q err=%v", v, err)
	}

	if err := page.Close(ctx); err != nil {
		t.Errorf("page Close failed: %v", err)
	}
	if err := page.Close(ctx); err != nil {
		t.Errorf("second page Close should be a no-op, got %v", err)
	}
	if len(fake.closedTargets) != 1 || fake.closedTargets[0] != "page-1" {
		t.Errorf("expected one close for page-1, got %v", fake.closedTargets)
	}
}

func TestCDP_Cookies(t *testing.T) {
	fake := newFakeDevTools(t)
	cdp := NewCDP(fake.address(), nil)
	ctx := context.Background()

	handle, err := cdp.Launch(ctx)
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	defer handle.Close(ctx)

	cookies, err := handle.Cookies(ctx)
	if err != nil {
		t.Fatalf("Cookies failed: %v", err)
	}
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}
	if cookies[0].Name != "SESSDATA" || cookies[0].Value != "tok" {
		t.Errorf("unexpected first cookie: %+v", cookies[0])
	}

	if err := handle.Close(ctx); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := handle.Close(ctx); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestCDP_LaunchUnreachable(t *testing.T) {
	cdp := NewCDP("127.0.0.1:1", nil)
	if _, err := cdp.Launch(context.Background()); err == nil {
		t.Fatal("expected error attaching to unreachable endpoint")
	}
}

func TestCookieHelpers(t *testing.T) {
	cookies := []Cookie{
		{Name: "a", Value: "1"},
		{Name: "b", Value: "2"},
		{Name: "a", Value: "3"},
	}
	if got := CookieHeader(cookies); got != "a=1; b=2; a=3" {
		t.Errorf("unexpected header: %q", got)
	}
	m := CookieMap(cookies)
	if m["a"] != "3" || m["b"] != "2" {
		t.Errorf("unexpected map: %v", m)
	}
	if got := CookieHeader(nil); got != "" {
		t.Errorf("expected empty header, got %q", got)
	}
}
