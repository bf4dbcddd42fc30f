// Package server exposes a triage session over HTTP for the browser
// frontend. The API is JSON only; all mutations route through store
// commands so the server shares undo/redo semantics with the TUI.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vanderheijden86/triagemap/internal/datasource"
	"github.com/vanderheijden86/triagemap/pkg/classify"
	"github.com/vanderheijden86/triagemap/pkg/debug"
	"github.com/vanderheijden86/triagemap/pkg/model"
	"github.com/vanderheijden86/triagemap/pkg/store"
	"github.com/vanderheijden86/triagemap/pkg/version"
)

// Options configures the HTTP server.
type Options struct {
	// Addr is the listen address, e.g. ":8719".
	Addr string
	// Sessions is optional; without it the session save/load endpoints
	// report 503.
	Sessions *datasource.SessionStore
	// Margins feed the auto-label endpoint.
	Margins []model.Margin
}

// DefaultAddr is the default listen address.
const DefaultAddr = ":8719"

// Server wires a store to HTTP handlers.
type Server struct {
	store    *store.Store
	sessions *datasource.SessionStore
	margins  []model.Margin
	engine   *gin.Engine
	addr     string
}

// New builds a server around a store.
func New(st *store.Store, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if !debug.Enabled() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		store:    st,
		sessions: opts.Sessions,
		margins:  opts.Margins,
		addr:     opts.Addr,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLog())

	api := engine.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/state", s.handleState)
		api.GET("/grid", s.handleGrid)
		api.POST("/grid/threshold", s.handleSetThreshold)
		api.GET("/cells", s.handleCells)
		api.GET("/labels", s.handleLabels)
		api.POST("/labels", s.handleTag)
		api.POST("/labels/auto", s.handleAutoLabel)
		api.POST("/stage", s.handleSetStage)
		api.GET("/commits", s.handleCommits)
		api.POST("/commits/restore", s.handleRestore)
		api.POST("/undo", s.handleUndo)
		api.POST("/redo", s.handleRedo)
		api.POST("/session/save", s.handleSessionSave)
		api.POST("/session/load", s.handleSessionLoad)
		api.GET("/sessions", s.handleSessionList)
	}
	registerExportRoutes(engine, s)

	s.engine = engine
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Run blocks serving HTTP until the listener fails.
func (s *Server) Run() error {
	debug.Log("server: listening on %s", s.addr)
	return s.engine.Run(s.addr)
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		debug.Log("server: %s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Version})
}

func (s *Server) handleState(c *gin.Context) {
	var resp gin.H
	s.store.View(func(sess *store.Session) {
		resp = gin.H{
			"session_id": sess.ID.String(),
			"stage":      sess.Stage,
			"features":   len(sess.Features),
			"points":     len(sess.Points),
			"selection":  sess.Selection,
			"progress":   store.Progress(sess),
		}
	})
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGrid(c *gin.Context) {
	var resp gin.H
	s.store.View(func(sess *store.Session) {
		leaves := make([]gin.H, 0, len(sess.Grid.LeafKeys))
		for _, key := range sess.Grid.LeafKeys {
			leaf := sess.Grid.Leaf(key)
			leaves = append(leaves, gin.H{
				"key":       leaf.Key,
				"depth":     leaf.Depth,
				"triangle":  leaf.Tri,
				"point_ids": leaf.PointIDs,
			})
		}
		resp = gin.H{
			"threshold": sess.Grid.Threshold,
			"total":     sess.Grid.TotalPoints(),
			"leaves":    leaves,
			"warnings":  sess.Grid.Warnings,
		}
	})
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSetThreshold(c *gin.Context) {
	var req struct {
		Threshold int `json:"threshold"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.apply(c, store.SetThreshold{Threshold: req.Threshold})
}

func (s *Server) handleCells(c *gin.Context) {
	var cells []store.CellSummary
	s.store.View(func(sess *store.Session) {
		cells = store.CellSummaries(sess)
	})
	c.JSON(http.StatusOK, gin.H{"cells": cells, "count": len(cells)})
}

func (s *Server) handleLabels(c *gin.Context) {
	var resp gin.H
	s.store.View(func(sess *store.Session) {
		resp = gin.H{"stage": sess.Stage, "labels": store.ActiveLabels(sess)}
	})
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTag(c *gin.Context) {
	var req struct {
		IDs      []int          `json:"ids" binding:"required"`
		Category model.Category `json:"category" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := s.store.Apply(store.SelectPoints{IDs: req.IDs}); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.apply(c, store.TagSelection{Category: req.Category})
}

func (s *Server) handleAutoLabel(c *gin.Context) {
	var stage model.Stage
	var readiness classify.Readiness
	s.store.View(func(sess *store.Session) {
		stage = sess.Stage
		if h, ok := sess.Histories[stage]; ok {
			readiness = classify.CheckReadiness(h.State())
		} else {
			missing := make(map[model.Category]int)
			for _, cat := range model.CategoryKeys(stage) {
				missing[cat] = classify.MinManualPerCategory
			}
			readiness = classify.Readiness{Missing: missing}
		}
	})
	if !readiness.Ready {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "not enough manual labels for auto-labeling",
			"missing": readiness.Missing,
		})
		return
	}
	labels := classify.AutoLabel(s.margins, stage)
	if len(labels) == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("no margins available for stage %s", stage)})
		return
	}
	s.apply(c, store.ApplyAutoLabels{Labels: labels})
}

func (s *Server) handleSetStage(c *gin.Context) {
	var req struct {
		Stage model.Stage `json:"stage" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.apply(c, store.SetStage{Stage: req.Stage})
}

func (s *Server) handleCommits(c *gin.Context) {
	var resp gin.H
	s.store.View(func(sess *store.Session) {
		h, ok := sess.Histories[sess.Stage]
		if !ok {
			resp = gin.H{"stage": sess.Stage, "commits": []gin.H{}, "cursor": 0}
			return
		}
		commits := h.Commits()
		out := make([]gin.H, 0, len(commits))
		for i, commit := range commits {
			out = append(out, gin.H{
				"index":      i,
				"seq":        commit.Seq,
				"kind":       commit.Kind,
				"counts":     commit.Counts,
				"created_at": commit.CreatedAt,
			})
		}
		resp = gin.H{"stage": sess.Stage, "commits": out, "cursor": h.Cursor()}
	})
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRestore(c *gin.Context) {
	var req struct {
		Index *int `json:"index" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.apply(c, store.RestoreCommit{Index: *req.Index})
}

func (s *Server) handleUndo(c *gin.Context) {
	s.apply(c, store.Undo{})
}

func (s *Server) handleRedo(c *gin.Context) {
	s.apply(c, store.Redo{})
}

func (s *Server) handleSessionSave(c *gin.Context) {
	if s.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session persistence is not configured"})
		return
	}
	// Saving inside View keeps the write consistent with the session; no
	// command can truncate a ledger mid-serialization.
	var id string
	var saveErr error
	s.store.View(func(sess *store.Session) {
		id = sess.ID.String()
		saveErr = s.sessions.Save(datasource.SavedSession{
			ID:      id,
			Stage:   sess.Stage,
			Ledgers: sess.Histories,
		})
	})
	if saveErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": saveErr.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (s *Server) handleSessionLoad(c *gin.Context) {
	if s.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session persistence is not configured"})
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var saved *datasource.SavedSession
	var err error
	if req.ID == "" {
		saved, err = s.sessions.LoadLatest()
	} else {
		saved, err = s.sessions.Load(req.ID)
	}
	if errors.Is(err, datasource.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if saved == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no saved session"})
		return
	}

	for _, h := range saved.Ledgers {
		if err := s.store.AttachHistory(h); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
	}
	s.apply(c, store.SetStage{Stage: saved.Stage})
}

func (s *Server) handleSessionList(c *gin.Context) {
	if s.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session persistence is not configured"})
		return
	}
	sessions, err := s.sessions.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]gin.H, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, gin.H{"id": sess.ID, "stage": sess.Stage, "saved_at": sess.SavedAt})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// apply runs a command and maps its outcome to a JSON response. Command
// failures are client errors: they mean the request named something the
// session does not have.
func (s *Server) apply(c *gin.Context, cmd store.Command) {
	cs, err := s.store.Apply(cmd)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": cmd.Name(), "changed": cs})
}
