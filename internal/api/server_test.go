package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/magpie/internal/config"
	"github.com/FranksOps/magpie/internal/model"
)

type fakeSearcher struct {
	result    *model.SearchResult
	err       error
	keyword   string
	platforms []string
}

func (f *fakeSearcher) SearchAllPlatforms(_ context.Context, keyword string, platforms []string) (*model.SearchResult, error) {
	f.keyword = keyword
	f.platforms = platforms
	return f.result, f.err
}

func resultWithStatus(status model.Status) *model.SearchResult {
	r := model.NewSearchResult("run-1", "golang")
	switch status {
	case model.StatusFailed:
		r.AddError("bilibili", "down")
	case model.StatusPartial:
		r.AddResult("bilibili", []model.ContentItem{{Platform: "bilibili", Title: "t"}})
		r.AddError("zhihu", "down")
	default:
		r.AddResult("bilibili", []model.ContentItem{{Platform: "bilibili", Title: "t"}})
	}
	r.Finalize(time.Now())
	return r
}

func newTestServer(f *fakeSearcher) *Server {
	return NewServer(config.Default(), f, nil)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := doRequest(t, newTestServer(&fakeSearcher{}), http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestPlatforms(t *testing.T) {
	w := doRequest(t, newTestServer(&fakeSearcher{}), http.MethodGet, "/api/platforms", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Platforms []string          `json:"platforms"`
		Aliases   map[string]string `json:"aliases"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(resp.Platforms) != 7 {
		t.Errorf("expected 7 platforms, got %v", resp.Platforms)
	}
	if resp.Aliases["bili"] != "bilibili" {
		t.Errorf("expected alias table, got %v", resp.Aliases)
	}
}

func TestSearchPost_Success(t *testing.T) {
	f := &fakeSearcher{result: resultWithStatus(model.StatusSuccess)}
	w := doRequest(t, newTestServer(f), http.MethodPost, "/api/search",
		`{"keyword":"golang","platforms":["bili","zhihu"]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Success bool           `json:"success"`
		Result  map[string]any `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if !resp.Success {
		t.Error("expected success true")
	}
	if resp.Result["keyword"] != "golang" {
		t.Errorf("unexpected result payload: %v", resp.Result)
	}
	if f.keyword != "golang" || len(f.platforms) != 2 {
		t.Errorf("searcher called with %q %v", f.keyword, f.platforms)
	}
}

func TestSearchPost_FailedRunIsStill200(t *testing.T) {
	f := &fakeSearcher{result: resultWithStatus(model.StatusFailed)}
	w := doRequest(t, newTestServer(f), http.MethodPost, "/api/search", `{"keyword":"golang"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for failed run, got %d", w.Code)
	}
	var resp struct {
		Success bool `json:"success"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Success {
		t.Error("expected success false for failed run")
	}
}

func TestSearchPost_MissingKeyword(t *testing.T) {
	w := doRequest(t, newTestServer(&fakeSearcher{}), http.MethodPost, "/api/search", `{"keyword":"  "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSearchPost_InternalFault(t *testing.T) {
	f := &fakeSearcher{err: errors.New("no browser available")}
	w := doRequest(t, newTestServer(f), http.MethodPost, "/api/search", `{"keyword":"golang"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestSearchGet_SplitsPlatforms(t *testing.T) {
	f := &fakeSearcher{result: resultWithStatus(model.StatusSuccess)}
	w := doRequest(t, newTestServer(f), http.MethodGet, "/api/search?keyword=golang&platforms=bili,wb", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(f.platforms) != 2 || f.platforms[0] != "bili" || f.platforms[1] != "wb" {
		t.Errorf("unexpected platforms %v", f.platforms)
	}
}

func TestSearchMarkdown(t *testing.T) {
	f := &fakeSearcher{result: resultWithStatus(model.StatusPartial)}
	w := doRequest(t, newTestServer(f), http.MethodGet, "/api/search/markdown?keyword=golang", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("expected markdown content type, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), "# 搜索结果: golang") {
		t.Errorf("expected markdown body, got %q", w.Body.String())
	}
}

func TestConfigRoundTrip(t *testing.T) {
	s := newTestServer(&fakeSearcher{})

	w := doRequest(t, s, http.MethodGet, "/api/config", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var view map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("bad config view: %v", err)
	}
	if view["max_contents"].(float64) != 8 {
		t.Errorf("unexpected max_contents %v", view["max_contents"])
	}

	w = doRequest(t, s, http.MethodPost, "/api/config", `{"max_contents":5,"no_such_field":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Updated []string `json:"updated"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Updated) != 1 || resp.Updated[0] != "max_contents" {
		t.Errorf("expected only max_contents applied, got %v", resp.Updated)
	}
	if s.cfg.MaxContents() != 5 {
		t.Errorf("expected live config updated, got %d", s.cfg.MaxContents())
	}
}
