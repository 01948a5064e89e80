// Package registry creates, memoizes and disposes platform sessions. It is
// the only place the closed set of platform constructors is spelled out.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/FranksOps/magpie/internal/config"
	"github.com/FranksOps/magpie/internal/platform"
	"github.com/FranksOps/magpie/internal/session"
	"github.com/FranksOps/magpie/pkg/ratelimit"
)

// ErrUnsupportedPlatform is returned when a requested name does not resolve
// to any known platform.
var ErrUnsupportedPlatform = fmt.Errorf("unsupported platform")

// Registry hands out at most one live session per platform. A registry
// instance covers one orchestration run; DisposeAll ends it.
type Registry struct {
	cfg    *config.Config
	store  session.CookieStore
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]session.Searcher
}

// New creates an empty registry. store may be nil to disable login-state
// persistence.
func New(cfg *config.Config, store session.CookieStore, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:      cfg,
		store:    store,
		logger:   logger.With("component", "registry"),
		sessions: make(map[string]session.Searcher),
	}
}

// Resolve returns the live session for a platform, creating it on first
// request. name must already be canonical; callers normalize via
// config.NormalizePlatform.
func (r *Registry) Resolve(name string) (session.Searcher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[name]; ok {
		return s, nil
	}

	hooks, err := r.newHooks(name)
	if err != nil {
		return nil, err
	}
	limiter := ratelimit.NewInterval(r.cfg.CrawlInterval(), 0)
	s := session.New(hooks, r.cfg, limiter, r.store, r.logger)
	r.sessions[name] = s
	return s, nil
}

func (r *Registry) newHooks(name string) (session.Hooks, error) {
	switch name {
	case config.PlatformBilibili:
		return platform.NewBilibili(r.cfg, r.logger), nil
	case config.PlatformDouyin:
		return platform.NewDouyin(r.cfg, r.logger), nil
	case config.PlatformXiaohongshu:
		return platform.NewXiaohongshu(r.cfg, r.logger), nil
	case config.PlatformWeibo:
		return platform.NewWeibo(r.cfg, r.logger), nil
	case config.PlatformZhihu:
		return platform.NewZhihu(r.cfg, r.logger), nil
	case config.PlatformTieba:
		return platform.NewTieba(r.cfg, r.logger), nil
	case config.PlatformKuaishou:
		return platform.NewKuaishou(r.cfg, r.logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPlatform, name)
	}
}

// Active returns the number of cached sessions.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// DisposeAll cleans up every cached session and clears the cache. Called
// exactly once at the end of a run, on every exit path.
func (r *Registry) DisposeAll(ctx context.Context) {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]session.Searcher)
	r.mu.Unlock()

	for name, s := range sessions {
		s.Cleanup(ctx)
		r.logger.Debug("disposed session", "platform", name)
	}
}
