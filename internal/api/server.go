// Package api exposes the orchestrator over HTTP for agent integration.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/FranksOps/magpie/internal/config"
	"github.com/FranksOps/magpie/internal/model"
	"github.com/FranksOps/magpie/internal/report"
)

// Searcher runs one keyword search across platforms. Implemented by
// orchestrator.Orchestrator.
type Searcher interface {
	SearchAllPlatforms(ctx context.Context, keyword string, platforms []string) (*model.SearchResult, error)
}

// Server is the REST façade.
type Server struct {
	cfg      *config.Config
	searcher Searcher
	logger   *slog.Logger
	engine   *gin.Engine
}

// NewServer builds the façade with all routes registered.
func NewServer(cfg *config.Config, searcher Searcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		searcher: searcher,
		logger:   logger.With("component", "api"),
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLog())

	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/platforms", s.handlePlatforms)
	api.POST("/search", s.handleSearchPost)
	api.GET("/search", s.handleSearchGet)
	api.GET("/search/markdown", s.handleSearchMarkdown)
	api.GET("/config", s.handleConfigGet)
	api.POST("/config", s.handleConfigPost)
	return s
}

// Handler returns the underlying http handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on the configured host and port until the listener fails.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.API.Host, s.cfg.API.Port)
	s.logger.Info("api listening", "addr", addr)
	return s.engine.Run(addr)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method, "path", c.Request.URL.Path,
			"status", c.Writer.Status(), "duration", time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handlePlatforms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"platforms": s.cfg.Supported(),
		"aliases":   s.cfg.AliasTable(),
	})
}

type searchRequest struct {
	Keyword   string   `json:"keyword"`
	Platforms []string `json:"platforms"`
}

func (s *Server) handleSearchPost(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	s.runSearch(c, req.Keyword, req.Platforms)
}

func (s *Server) handleSearchGet(c *gin.Context) {
	keyword := c.Query("keyword")
	var platforms []string
	if raw := c.Query("platforms"); raw != "" {
		platforms = strings.Split(raw, ",")
	}
	s.runSearch(c, keyword, platforms)
}

func (s *Server) runSearch(c *gin.Context, keyword string, platforms []string) {
	result, ok := s.search(c, keyword, platforms)
	if !ok {
		return
	}
	// a fully failed run is still a well-formed answer, not a server fault
	c.JSON(http.StatusOK, gin.H{
		"success": result.Status != model.StatusFailed,
		"result":  result.ToMap(),
	})
}

func (s *Server) handleSearchMarkdown(c *gin.Context) {
	keyword := c.Query("keyword")
	var platforms []string
	if raw := c.Query("platforms"); raw != "" {
		platforms = strings.Split(raw, ",")
	}
	result, ok := s.search(c, keyword, platforms)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/markdown; charset=utf-8")
	c.Status(http.StatusOK)
	if err := report.WriteMarkdown(c.Writer, result); err != nil {
		s.logger.Error("markdown render failed", "error", err)
	}
}

// search validates the keyword and runs the orchestrator, writing the
// error response itself when something is wrong.
func (s *Server) search(c *gin.Context, keyword string, platforms []string) (*model.SearchResult, bool) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "keyword is required"})
		return nil, false
	}
	result, err := s.searcher.SearchAllPlatforms(c.Request.Context(), keyword, platforms)
	if err != nil {
		s.logger.Error("search run failed", "keyword", keyword, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return nil, false
	}
	return result, true
}

func (s *Server) handleConfigGet(c *gin.Context) {
	c.JSON(http.StatusOK, s.cfg.View())
}

func (s *Server) handleConfigPost(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	applied := s.cfg.Update(fields)
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": applied})
}
