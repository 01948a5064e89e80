// Package session implements the per-platform scraping session lifecycle.
// A Session owns one browser page, drives login, and runs the capped
// search-then-enrich flow; platform specifics are supplied through Hooks.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/FranksOps/magpie/internal/browser"
	"github.com/FranksOps/magpie/internal/config"
	"github.com/FranksOps/magpie/internal/model"
	"github.com/FranksOps/magpie/pkg/ratelimit"
)

// State is the lifecycle position of a Session.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateSearching
	StateEnrichingComments
	StateClosing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateSearching:
		return "searching"
	case StateEnrichingComments:
		return "enriching_comments"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrNotReady is returned when search is attempted on a session that is
// not in the ready state (never initialized, failed, or already closed).
var ErrNotReady = errors.New("session is not ready")

// Hooks supplies the platform-specific behaviour a Session drives. One
// implementation per platform lives in internal/platform.
type Hooks interface {
	// Platform returns the canonical platform name.
	Platform() string
	// IndexURL is the page navigated to during initialization so the
	// browser accumulates the platform's baseline cookies.
	IndexURL() string
	// InitClient binds the platform API client to the page's identity
	// (cookies, user agent).
	InitClient(ctx context.Context, page browser.Page, cookies []browser.Cookie) error
	// CheckLogin reports whether the bound identity is authenticated.
	CheckLogin(ctx context.Context) (bool, error)
	// Login performs the interactive login flow on the page.
	Login(ctx context.Context, page browser.Page) error
	// Search returns up to limit raw-mapped items for the keyword.
	Search(ctx context.Context, keyword string, limit int) ([]model.ContentItem, error)
	// Comments returns up to limit top comments for one item.
	Comments(ctx context.Context, item model.ContentItem, limit int) ([]model.CommentItem, error)
}

// CookieStore persists login cookies between runs. Implemented by
// loginstate.Store; nil disables persistence.
type CookieStore interface {
	Load(platform string) ([]browser.Cookie, error)
	Save(platform string, cookies []browser.Cookie) error
}

// Searcher is the narrow surface the orchestrator drives.
type Searcher interface {
	Platform() string
	Initialize(ctx context.Context, handle browser.Handle) error
	SearchWithComments(ctx context.Context, keyword string) ([]model.ContentItem, error)
	Cleanup(ctx context.Context)
}

// Session runs the lifecycle state machine for one platform.
type Session struct {
	hooks   Hooks
	cfg     *config.Config
	limiter *ratelimit.Limiter
	store   CookieStore
	logger  *slog.Logger

	mu    sync.Mutex
	state State
	page  browser.Page
}

// New creates an uninitialized session. limiter paces every externally
// bound call; each session gets its own so platforms throttle independently.
func New(hooks Hooks, cfg *config.Config, limiter *ratelimit.Limiter, store CookieStore, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		hooks:   hooks,
		cfg:     cfg,
		limiter: limiter,
		store:   store,
		logger:  logger.With("component", "session", "platform", hooks.Platform()),
		state:   StateUninitialized,
	}
}

// Platform returns the canonical platform name.
func (s *Session) Platform() string {
	return s.hooks.Platform()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Initialize acquires a page from the shared browser handle, binds the
// platform client to its identity and ensures authentication. On any
// failure the session enters the failed state, releases the page, and
// becomes ineligible for search.
func (s *Session) Initialize(ctx context.Context, handle browser.Handle) error {
	s.mu.Lock()
	switch s.state {
	case StateUninitialized:
		s.state = StateInitializing
	case StateReady:
		s.mu.Unlock()
		return nil
	default:
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("initialize from state %s: %w", st, ErrNotReady)
	}
	s.mu.Unlock()

	if err := s.initialize(ctx, handle); err != nil {
		s.fail(ctx)
		return fmt.Errorf("initialize %s session: %w", s.hooks.Platform(), err)
	}

	s.mu.Lock()
	s.state = StateReady
	s.mu.Unlock()
	s.logger.Debug("session ready")
	return nil
}

func (s *Session) initialize(ctx context.Context, handle browser.Handle) error {
	page, err := handle.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	s.mu.Lock()
	s.page = page
	s.mu.Unlock()

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := page.Navigate(ctx, s.hooks.IndexURL()); err != nil {
		return fmt.Errorf("navigate to index: %w", err)
	}

	cookies := s.restoreCookies()
	if len(cookies) == 0 {
		if cookies, err = handle.Cookies(ctx); err != nil {
			return fmt.Errorf("capture cookies: %w", err)
		}
	}
	if err := s.hooks.InitClient(ctx, page, cookies); err != nil {
		return fmt.Errorf("bind client: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	loggedIn, err := s.hooks.CheckLogin(ctx)
	if err != nil {
		return fmt.Errorf("check login: %w", err)
	}
	if loggedIn {
		return nil
	}

	s.logger.Info("not authenticated, starting login flow", "login_type", s.cfg.LoginType())
	if err := s.hooks.Login(ctx, page); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	// rebind with the post-login identity and persist it
	fresh, err := handle.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("capture cookies after login: %w", err)
	}
	if err := s.hooks.InitClient(ctx, page, fresh); err != nil {
		return fmt.Errorf("rebind client: %w", err)
	}
	s.persistCookies(fresh)
	return nil
}

func (s *Session) restoreCookies() []browser.Cookie {
	if s.store == nil {
		return nil
	}
	cookies, err := s.store.Load(s.hooks.Platform())
	if err != nil {
		s.logger.Warn("failed to load saved login state", "error", err)
		return nil
	}
	if len(cookies) > 0 {
		s.logger.Debug("restored saved login state", "cookies", len(cookies))
	}
	return cookies
}

func (s *Session) persistCookies(cookies []browser.Cookie) {
	if s.store == nil || len(cookies) == 0 {
		return
	}
	if err := s.store.Save(s.hooks.Platform(), cookies); err != nil {
		s.logger.Warn("failed to save login state", "error", err)
	}
}

// SearchWithComments runs the keyword search and enriches each returned
// item with capped top comments, pacing between externally bound calls.
// A comment failure for one item leaves that item with no comments and
// never aborts enrichment of the rest.
func (s *Session) SearchWithComments(ctx context.Context, keyword string) ([]model.ContentItem, error) {
	s.mu.Lock()
	if s.state != StateReady {
		st := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("search from state %s: %w", st, ErrNotReady)
	}
	s.state = StateSearching
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.state == StateSearching || s.state == StateEnrichingComments {
			s.state = StateReady
		}
		s.mu.Unlock()
	}()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	maxContents := s.cfg.MaxContents()
	items, err := s.hooks.Search(ctx, keyword, maxContents)
	if err != nil {
		return nil, fmt.Errorf("search %q on %s: %w", keyword, s.hooks.Platform(), err)
	}
	if len(items) > maxContents {
		items = items[:maxContents]
	}
	s.logger.Debug("search returned items", "keyword", keyword, "count", len(items))

	s.mu.Lock()
	s.state = StateEnrichingComments
	s.mu.Unlock()

	commentCap := s.cfg.CommentCapFor(s.hooks.Platform())
	for i := range items {
		if items[i].ContentID() == "" {
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		comments, err := s.hooks.Comments(ctx, items[i], commentCap)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("comment fetch failed, continuing",
				"content_id", items[i].ContentID(), "error", err)
			continue
		}
		if len(comments) > commentCap {
			comments = comments[:commentCap]
		}
		items[i].Comments = comments
	}

	return items, nil
}

// fail releases the page and parks the session in the failed state.
func (s *Session) fail(ctx context.Context) {
	s.mu.Lock()
	page := s.page
	s.page = nil
	s.state = StateFailed
	s.mu.Unlock()

	if page != nil {
		if err := page.Close(ctx); err != nil {
			s.logger.Warn("failed to close page", "error", err)
		}
	}
}

// Cleanup releases the session's page. Safe to call in any state and any
// number of times.
func (s *Session) Cleanup(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	page := s.page
	s.page = nil
	s.state = StateClosing
	s.mu.Unlock()

	if page != nil {
		if err := page.Close(ctx); err != nil {
			s.logger.Warn("failed to close page", "error", err)
		}
	}

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	s.logger.Debug("session closed")
}
