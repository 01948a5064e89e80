// Package orchestrator drives one keyword search across every requested
// platform and merges the per-platform outcomes, including failures, into a
// single result.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/magpie/internal/browser"
	"github.com/FranksOps/magpie/internal/config"
	"github.com/FranksOps/magpie/internal/metrics"
	"github.com/FranksOps/magpie/internal/model"
	"github.com/FranksOps/magpie/internal/session"
)

// Sessions is the registry surface the orchestrator needs.
type Sessions interface {
	Resolve(name string) (session.Searcher, error)
	DisposeAll(ctx context.Context)
}

// Orchestrator owns the shared browser acquisition and the per-platform
// work loop for a run.
type Orchestrator struct {
	cfg      *config.Config
	sessions Sessions
	launcher browser.Launcher
	logger   *slog.Logger

	// runMu serializes runs: the cached sessions and the browser handle
	// belong to exactly one run at a time.
	runMu sync.Mutex
}

// New wires an orchestrator. The launcher is acquired once per run and its
// handle shared by every session.
func New(cfg *config.Config, sessions Sessions, launcher browser.Launcher, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:      cfg,
		sessions: sessions,
		launcher: launcher,
		logger:   logger.With("component", "orchestrator"),
	}
}

// SearchAllPlatforms searches the keyword on the requested platforms, or on
// every supported platform when the list is empty. One platform failing
// never aborts the others; failures land in the result's error map keyed by
// the normalized requested name. Sessions are always disposed before
// returning, on every exit path. Concurrent calls are serialized; a run
// never observes sessions or pages opened by another run.
func (o *Orchestrator) SearchAllPlatforms(ctx context.Context, keyword string, platforms []string) (*model.SearchResult, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	start := time.Now()
	targets := o.resolveTargets(platforms)
	result := model.NewSearchResult(uuid.New().String(), keyword)

	if deadline := o.cfg.RunDeadline(); deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	o.logger.Info("starting search run", "run_id", result.ID, "keyword", keyword, "platforms", targets)

	handle, err := o.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire browser: %w", err)
	}
	// cleanup must run even when the run context is already cancelled
	cleanupCtx := context.WithoutCancel(ctx)
	defer func() {
		o.sessions.DisposeAll(cleanupCtx)
		if o.cfg.Browser.AutoClose {
			if err := handle.Close(cleanupCtx); err != nil {
				o.logger.Warn("failed to close browser handle", "error", err)
			}
		}
	}()

	var mu sync.Mutex
	g, runCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.WorkerLimit())

	for _, name := range targets {
		g.Go(func() error {
			items, err := o.searchOne(runCtx, name, keyword, handle)
			metrics.RecordSearch(name, err)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.logger.Error("platform search failed", "run_id", result.ID, "platform", name, "error", err)
				result.AddError(name, err.Error())
				return nil
			}
			o.logger.Info("platform search finished", "run_id", result.ID, "platform", name, "items", len(items))
			result.AddResult(name, items)
			return nil
		})
	}
	_ = g.Wait() // workers record their own failures, never return them

	result.Finalize(start)
	metrics.RecordRun(string(result.Status), time.Since(start))
	o.logger.Info("search run finished",
		"run_id", result.ID, "status", string(result.Status),
		"items", result.TotalCount(), "errors", len(result.Errors),
		"duration", result.Duration)
	return result, nil
}

// resolveTargets normalizes the requested platforms, preserving request
// order and dropping duplicates. Unknown names stay in the list so the run
// reports them in the error map instead of silently skipping them.
func (o *Orchestrator) resolveTargets(platforms []string) []string {
	if len(platforms) == 0 {
		return o.cfg.Supported()
	}
	seen := make(map[string]bool, len(platforms))
	targets := make([]string, 0, len(platforms))
	for _, p := range platforms {
		name := o.cfg.NormalizePlatform(p)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		targets = append(targets, name)
	}
	return targets
}

func (o *Orchestrator) searchOne(ctx context.Context, name, keyword string, handle browser.Handle) ([]model.ContentItem, error) {
	sess, err := o.sessions.Resolve(name)
	if err != nil {
		return nil, err
	}
	if err := sess.Initialize(ctx, handle); err != nil {
		return nil, err
	}
	items, err := sess.SearchWithComments(ctx, keyword)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		metrics.CommentsFetched.WithLabelValues(name).Add(float64(len(item.Comments)))
	}
	return items, nil
}
