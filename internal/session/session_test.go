package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/FranksOps/magpie/internal/browser"
	"github.com/FranksOps/magpie/internal/config"
	"github.com/FranksOps/magpie/internal/model"
	"github.com/FranksOps/magpie/pkg/ratelimit"
)

type fakePage struct {
	navigated []string
	closed    int
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.navigated = append(p.navigated, url)
	return nil
}
func (p *fakePage) Evaluate(context.Context, string) (string, error) { return "", nil }
func (p *fakePage) UserAgent(context.Context) (string, error)        { return "test-ua", nil }
func (p *fakePage) Close(context.Context) error {
	p.closed++
	return nil
}

type fakeHandle struct {
	page    *fakePage
	cookies []browser.Cookie
	pageErr error
}

func (h *fakeHandle) NewPage(context.Context) (browser.Page, error) {
	if h.pageErr != nil {
		return nil, h.pageErr
	}
	if h.page == nil {
		h.page = &fakePage{}
	}
	return h.page, nil
}
func (h *fakeHandle) Cookies(context.Context) ([]browser.Cookie, error) { return h.cookies, nil }
func (h *fakeHandle) Close(context.Context) error                      { return nil }

type fakeHooks struct {
	platform   string
	loggedIn   bool
	loginErr   error
	checkErr   error
	loginCalls int
	initCalls  int
	lastLimit  int

	searchFn   func(ctx context.Context, keyword string, limit int) ([]model.ContentItem, error)
	commentsFn func(ctx context.Context, item model.ContentItem, limit int) ([]model.CommentItem, error)
}

func (h *fakeHooks) Platform() string { return h.platform }
func (h *fakeHooks) IndexURL() string { return "https://example.com/" }
func (h *fakeHooks) InitClient(context.Context, browser.Page, []browser.Cookie) error {
	h.initCalls++
	return nil
}
func (h *fakeHooks) CheckLogin(context.Context) (bool, error) {
	return h.loggedIn, h.checkErr
}
func (h *fakeHooks) Login(context.Context, browser.Page) error {
	h.loginCalls++
	if h.loginErr == nil {
		h.loggedIn = true
	}
	return h.loginErr
}
func (h *fakeHooks) Search(ctx context.Context, keyword string, limit int) ([]model.ContentItem, error) {
	h.lastLimit = limit
	if h.searchFn != nil {
		return h.searchFn(ctx, keyword, limit)
	}
	return nil, nil
}
func (h *fakeHooks) Comments(ctx context.Context, item model.ContentItem, limit int) ([]model.CommentItem, error) {
	if h.commentsFn != nil {
		return h.commentsFn(ctx, item, limit)
	}
	return nil, nil
}

type memStore struct {
	saved map[string][]browser.Cookie
}

func (m *memStore) Load(platform string) ([]browser.Cookie, error) { return m.saved[platform], nil }
func (m *memStore) Save(platform string, cookies []browser.Cookie) error {
	if m.saved == nil {
		m.saved = map[string][]browser.Cookie{}
	}
	m.saved[platform] = cookies
	return nil
}

func rawItems(platform string, n int) []model.ContentItem {
	items := make([]model.ContentItem, n)
	for i := range items {
		items[i] = model.ContentItem{
			Platform: platform,
			Title:    fmt.Sprintf("item %d", i),
			Extra:    map[string]string{model.ExtraContentID: fmt.Sprintf("id-%d", i)},
		}
	}
	return items
}

func newTestSession(hooks *fakeHooks) *Session {
	return New(hooks, config.Default(), ratelimit.NewInterval(0, 0), nil, nil)
}

func TestSession_SearchCapsResults(t *testing.T) {
	hooks := &fakeHooks{
		platform: "bilibili",
		loggedIn: true,
		searchFn: func(_ context.Context, _ string, _ int) ([]model.ContentItem, error) {
			return rawItems("bilibili", 15), nil
		},
	}
	sess := newTestSession(hooks)
	ctx := context.Background()

	if err := sess.Initialize(ctx, &fakeHandle{}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if got := sess.State(); got != StateReady {
		t.Fatalf("expected ready state, got %s", got)
	}

	items, err := sess.SearchWithComments(ctx, "golang")
	if err != nil {
		t.Fatalf("SearchWithComments failed: %v", err)
	}
	if len(items) != 8 {
		t.Errorf("expected 8 items after cap, got %d", len(items))
	}
	if hooks.lastLimit != 8 {
		t.Errorf("expected search limit 8, got %d", hooks.lastLimit)
	}
	if got := sess.State(); got != StateReady {
		t.Errorf("expected session back to ready, got %s", got)
	}
}

func TestSession_CommentsCappedPerPlatform(t *testing.T) {
	tests := []struct {
		platform string
		want     int
	}{
		{"bilibili", 10},
		{"zhihu", 20},
		{"tieba", 100},
	}
	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			hooks := &fakeHooks{
				platform: tt.platform,
				loggedIn: true,
				searchFn: func(_ context.Context, _ string, _ int) ([]model.ContentItem, error) {
					return rawItems(tt.platform, 1), nil
				},
				commentsFn: func(_ context.Context, _ model.ContentItem, limit int) ([]model.CommentItem, error) {
					comments := make([]model.CommentItem, limit+5)
					for i := range comments {
						comments[i] = model.CommentItem{Content: fmt.Sprintf("c%d", i)}
					}
					return comments, nil
				},
			}
			sess := newTestSession(hooks)
			ctx := context.Background()
			if err := sess.Initialize(ctx, &fakeHandle{}); err != nil {
				t.Fatalf("Initialize failed: %v", err)
			}
			items, err := sess.SearchWithComments(ctx, "kw")
			if err != nil {
				t.Fatalf("SearchWithComments failed: %v", err)
			}
			if len(items[0].Comments) != tt.want {
				t.Errorf("expected %d comments, got %d", tt.want, len(items[0].Comments))
			}
		})
	}
}

func TestSession_CommentFailureIsolated(t *testing.T) {
	hooks := &fakeHooks{
		platform: "bilibili",
		loggedIn: true,
		searchFn: func(_ context.Context, _ string, _ int) ([]model.ContentItem, error) {
			return rawItems("bilibili", 3), nil
		},
		commentsFn: func(_ context.Context, item model.ContentItem, _ int) ([]model.CommentItem, error) {
			if item.ContentID() == "id-1" {
				return nil, errors.New("comment api exploded")
			}
			return []model.CommentItem{{Content: "ok"}}, nil
		},
	}
	sess := newTestSession(hooks)
	ctx := context.Background()
	if err := sess.Initialize(ctx, &fakeHandle{}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	items, err := sess.SearchWithComments(ctx, "kw")
	if err != nil {
		t.Fatalf("one comment failure must not fail the search: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if len(items[0].Comments) != 1 || len(items[2].Comments) != 1 {
		t.Errorf("neighbouring items should keep their comments")
	}
	if len(items[1].Comments) != 0 {
		t.Errorf("failed item should have no comments, got %d", len(items[1].Comments))
	}
}

func TestSession_SkipsItemsWithoutContentID(t *testing.T) {
	commentCalls := 0
	hooks := &fakeHooks{
		platform: "weibo",
		loggedIn: true,
		searchFn: func(_ context.Context, _ string, _ int) ([]model.ContentItem, error) {
			return []model.ContentItem{
				{Platform: "weibo", Title: "no id"},
				{Platform: "weibo", Title: "with id", Extra: map[string]string{model.ExtraContentID: "w1"}},
			}, nil
		},
		commentsFn: func(_ context.Context, _ model.ContentItem, _ int) ([]model.CommentItem, error) {
			commentCalls++
			return []model.CommentItem{{Content: "c"}}, nil
		},
	}
	sess := newTestSession(hooks)
	ctx := context.Background()
	if err := sess.Initialize(ctx, &fakeHandle{}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if _, err := sess.SearchWithComments(ctx, "kw"); err != nil {
		t.Fatalf("SearchWithComments failed: %v", err)
	}
	if commentCalls != 1 {
		t.Errorf("expected a single comment fetch, got %d", commentCalls)
	}
}

func TestSession_InitFailureMakesSessionIneligible(t *testing.T) {
	handle := &fakeHandle{}
	hooks := &fakeHooks{
		platform: "douyin",
		checkErr: errors.New("risk control page"),
	}
	sess := newTestSession(hooks)
	ctx := context.Background()

	if err := sess.Initialize(ctx, handle); err == nil {
		t.Fatal("expected Initialize to fail")
	}
	if got := sess.State(); got != StateFailed {
		t.Fatalf("expected failed state, got %s", got)
	}
	if handle.page == nil || handle.page.closed == 0 {
		t.Error("page must be released on init failure")
	}

	if _, err := sess.SearchWithComments(ctx, "kw"); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
	if err := sess.Initialize(ctx, handle); !errors.Is(err, ErrNotReady) {
		t.Errorf("re-initializing a failed session should return ErrNotReady, got %v", err)
	}
}

func TestSession_LoginFlowPersistsCookies(t *testing.T) {
	store := &memStore{}
	handle := &fakeHandle{cookies: []browser.Cookie{{Name: "sid", Value: "v"}}}
	hooks := &fakeHooks{platform: "xiaohongshu", loggedIn: false}
	sess := New(hooks, config.Default(), ratelimit.NewInterval(0, 0), store, nil)
	ctx := context.Background()

	if err := sess.Initialize(ctx, handle); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if hooks.loginCalls != 1 {
		t.Errorf("expected one login call, got %d", hooks.loginCalls)
	}
	if hooks.initCalls != 2 {
		t.Errorf("client should be rebound after login, got %d init calls", hooks.initCalls)
	}
	if len(store.saved["xiaohongshu"]) != 1 {
		t.Errorf("expected login state persisted, got %v", store.saved)
	}
}

func TestSession_CleanupIdempotent(t *testing.T) {
	handle := &fakeHandle{}
	hooks := &fakeHooks{platform: "zhihu", loggedIn: true}
	sess := newTestSession(hooks)
	ctx := context.Background()

	if err := sess.Initialize(ctx, handle); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	sess.Cleanup(ctx)
	if got := sess.State(); got != StateClosed {
		t.Fatalf("expected closed state, got %s", got)
	}
	sess.Cleanup(ctx)
	if handle.page.closed != 1 {
		t.Errorf("page must be closed exactly once, got %d", handle.page.closed)
	}

	// cleanup on a never-opened session is also a no-op
	fresh := newTestSession(&fakeHooks{platform: "tieba"})
	fresh.Cleanup(ctx)
	fresh.Cleanup(ctx)
	if got := fresh.State(); got != StateClosed {
		t.Errorf("expected closed state, got %s", got)
	}
}

func TestSession_SearchBeforeInitialize(t *testing.T) {
	sess := newTestSession(&fakeHooks{platform: "kuaishou"})
	if _, err := sess.SearchWithComments(context.Background(), "kw"); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
}
