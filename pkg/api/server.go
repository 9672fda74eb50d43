// Package api provides the thin HTTP/SSE front door over pkg/engine. It
// owns no research state of its own: every handler either calls straight
// into an *engine.Engine method or drains a store.Subscription onto an SSE
// stream.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tarsy-labs/deepresearch/pkg/engine"
)

// Server is the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	engine     *engine.Engine
}

// NewServer creates a new API server wired to eng. mode is a gin.Mode
// constant ("debug", "release", "test").
func NewServer(eng *engine.Engine, mode string) *Server {
	gin.SetMode(mode)
	r := gin.New()
	r.Use(gin.Recovery(), securityHeaders(), corsMiddleware())

	s := &Server{router: r, engine: eng}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)

	v1 := s.router.Group("/api/v1")
	v1.POST("/sessions", s.createSessionHandler)
	v1.GET("/sessions/:id", s.getSessionHandler)
	v1.GET("/sessions/:id/events", s.subscribeHandler)
	v1.GET("/sessions/:id/report", s.getReportHandler)
	v1.GET("/sessions/:id/flow", s.getFlowHandler)
	v1.GET("/sessions/:id/files/*path", s.getFileHandler)
	v1.POST("/sessions/:id/cancel", s.cancelSessionHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().UTC().Format(time.RFC3339)})
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
