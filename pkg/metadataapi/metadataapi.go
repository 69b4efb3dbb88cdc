// Package metadataapi is the external HTTP surface for document
// lifecycle and fleet introspection, kept separate from the WebSocket
// transport the way the example corpus separates its REST handlers
// package from its realtime transport (gin.Context carries no OT
// semantics; it only ever reads/creates document metadata).
package metadataapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kolabo/syncpad/pkg/audit"
	"github.com/kolabo/syncpad/pkg/document"
	"github.com/kolabo/syncpad/pkg/engine"
)

// Server exposes document CRUD-metadata and fleet statistics over HTTP.
type Server struct {
	store   document.Store
	manager *engine.Manager
	audit   *audit.Log
	log     *zap.Logger
	engine  *gin.Engine
}

// New builds the gin engine and registers routes. audit may be nil, in
// which case the history endpoint reports it as unavailable.
func New(store document.Store, manager *engine.Manager, auditLog *audit.Log, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{store: store, manager: manager, audit: auditLog, log: log, engine: r}

	api := r.Group("/api/documents")
	api.POST("", s.createDocument)
	api.GET("/:id", s.getDocument)
	api.GET("/:id/stats", s.getDocumentStats)
	api.GET("/:id/history", s.getDocumentHistory)

	r.GET("/api/stats", s.fleetStats)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	return s
}

// Handler returns the underlying http.Handler for embedding in a
// *http.Server alongside the WebSocket transport.
func (s *Server) Handler() http.Handler { return s.engine }

type createDocumentRequest struct {
	Title      string `json:"title"`
	CreatedBy  string `json:"createdBy" binding:"required"`
	GenerateOTP bool  `json:"generateOtp"`
}

type createDocumentResponse struct {
	ID  string  `json:"id"`
	OTP *string `json:"otp,omitempty"`
}

func (s *Server) createDocument(c *gin.Context) {
	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := uuid.NewString()
	doc := document.New(id, req.Title, req.CreatedBy)

	var otp *string
	if req.GenerateOTP {
		secret := document.GenerateOTP()
		otp = &secret
		doc.OTP = otp
	}

	if err := s.store.Save(c.Request.Context(), doc); err != nil {
		s.log.Warn("create document failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create document"})
		return
	}

	c.JSON(http.StatusCreated, createDocumentResponse{ID: id, OTP: otp})
}

func (s *Server) getDocument(c *gin.Context) {
	id := c.Param("id")
	doc, ok, err := s.store.Load(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load document"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	doc.OTP = nil // never leak the access secret over the metadata API
	c.JSON(http.StatusOK, doc)
}

func (s *Server) getDocumentStats(c *gin.Context) {
	id := c.Param("id")
	if s.manager.Has(id) {
		stats, err := s.manager.Get(id).Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
			return
		}
		c.JSON(http.StatusOK, stats)
		return
	}

	doc, ok, err := s.store.Load(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load document"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	c.JSON(http.StatusOK, engine.Stats{
		Version:         doc.Version,
		ActiveUserCount: 0,
		Metadata:        doc.Metadata,
		UpdatedAt:       doc.Metadata.UpdatedAt,
	})
}

// getDocumentHistory returns the full applied-operation history for a
// document, a debug/offline-tooling view distinct from the bounded tail
// the engine keeps for live transforms.
func (s *Server) getDocumentHistory(c *gin.Context) {
	if s.audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit log not configured"})
		return
	}
	entries, err := s.audit.History(c.Param("id"))
	if err != nil {
		s.log.Warn("history query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	data, err := audit.MarshalEntries(entries)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode history"})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func (s *Server) fleetStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	ids, err := s.store.IDs(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enumerate documents"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"documentCount": len(ids),
		"activeEngines": s.manager.Count(),
	})
}
