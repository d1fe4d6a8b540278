// Package server exposes the pipeline over HTTP: query submission plus the
// A2A audit read API for dashboards.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ravivarmakumar/prism/a2a"
	"github.com/ravivarmakumar/prism/eval"
	"github.com/ravivarmakumar/prism/pipeline"
	"github.com/ravivarmakumar/prism/pkg/logging"
)

// Server routes HTTP requests to the pipeline.
type Server struct {
	pipeline *pipeline.Pipeline
	bus      *a2a.Bus
	logger   *slog.Logger
}

// New creates a server around a constructed pipeline.
func New(p *pipeline.Pipeline, bus *a2a.Bus) *Server {
	return &Server{
		pipeline: p,
		bus:      bus,
		logger:   logging.WithComponent("server"),
	}
}

// SetupRouter builds the gin router.
func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/health", s.Health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/query", s.Query)
		v1.GET("/a2a", s.A2ALog)
	}

	return r
}

// QueryRequest is the query submission payload.
type QueryRequest struct {
	Query       string `json:"query" binding:"required"`
	SessionID   string `json:"session_id"`
	DegreeLevel string `json:"degree_level"`
	Major       string `json:"major"`
	Course      string `json:"course"`
}

// Query runs one query through the pipeline and returns the final answer
// with its verdict history.
func (s *Server) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: query is required"})
		return
	}

	query := &eval.Query{
		Text:        req.Query,
		DegreeLevel: eval.DegreeLevel(req.DegreeLevel),
		Major:       req.Major,
		Course:      req.Course,
	}

	result, err := s.pipeline.Run(c.Request.Context(), query, req.SessionID)
	if err != nil {
		s.logger.Error("pipeline run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process query"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// A2ALog serves the audit trail, filterable by sender, receiver, and type.
func (s *Server) A2ALog(c *gin.Context) {
	filter := a2a.Filter{
		Sender:   c.Query("sender"),
		Receiver: c.Query("receiver"),
		Type:     a2a.MessageType(c.Query("type")),
	}
	c.JSON(http.StatusOK, gin.H{"messages": s.bus.Query(filter)})
}

// Health reports liveness.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
