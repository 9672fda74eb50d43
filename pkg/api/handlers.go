package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tarsy-labs/deepresearch/pkg/model"
)

type createSessionRequest struct {
	Query         string `json:"query" binding:"required"`
	Clarification string `json:"clarification"`
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// createSessionHandler handles POST /api/v1/sessions.
func (s *Server) createSessionHandler(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID, err := s.engine.CreateSession(req.Query, req.Clarification)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, createSessionResponse{SessionID: sessionID})
}

// getSessionHandler handles GET /api/v1/sessions/:id.
func (s *Server) getSessionHandler(c *gin.Context) {
	sess, err := s.engine.Status(c.Param("id"))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// getReportHandler handles GET /api/v1/sessions/:id/report.
func (s *Server) getReportHandler(c *gin.Context) {
	report, err := s.engine.Report(c.Param("id"))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(report))
}

// getFlowHandler handles GET /api/v1/sessions/:id/flow.
func (s *Server) getFlowHandler(c *gin.Context) {
	flow, err := s.engine.Flow(c.Param("id"))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, flow)
}

// getFileHandler handles GET /api/v1/sessions/:id/files/*path, serving an
// artifact or agent file by path relative to the session workspace.
func (s *Server) getFileHandler(c *gin.Context) {
	relPath := c.Param("path")
	path, err := s.engine.FilePath(c.Param("id"), relPath)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	c.File(path)
}

// cancelSessionHandler handles POST /api/v1/sessions/:id/cancel.
func (s *Server) cancelSessionHandler(c *gin.Context) {
	if err := s.engine.Cancel(c.Param("id")); err != nil {
		writeEngineError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// subscribeHandler handles GET /api/v1/sessions/:id/events, streaming the
// session's event log as Server-Sent Events: backlog first, then live
// events, until the stream closes or the client disconnects.
func (s *Server) subscribeHandler(c *gin.Context) {
	sub, err := s.engine.Subscribe(c.Param("id"))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	defer sub.Unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if !writeSSEEvent(c, ev) {
				return
			}
			if ev.Type == model.EventSessionStatusChange {
				if p, ok := ev.Data.(model.PayloadSessionStatusChange); ok && p.Status.Terminal() {
					return
				}
			}
		}
	}
}

func writeSSEEvent(c *gin.Context, ev model.Event) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		return true
	}
	_, werr := c.Writer.Write([]byte("event: " + string(ev.Type) + "\ndata: " + string(data) + "\n\n"))
	if werr != nil {
		return false
	}
	c.Writer.Flush()
	return true
}
