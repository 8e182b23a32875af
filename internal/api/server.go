// Package api serves constraint parsing and algorithm runs over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"goseldon/internal/errors"
	"goseldon/ports"
)

// Server wires the HTTP routes
type Server struct {
	router    *gin.Engine
	optimizer ports.Optimizer
	runs      ports.RunRepository
	log       *zap.Logger
}

// NewServer creates the router. runs may be nil, in which case runs are not
// recorded and the run lookup routes answer 404.
func NewServer(optimizer ports.Optimizer, runs ports.RunRepository, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:    gin.New(),
		optimizer: optimizer,
		runs:      runs,
		log:       logger.With(zap.String("component", "api")),
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

// Handler exposes the router for http.Server and tests
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.router.Group("/v1")
	v1.POST("/constraints/parse", s.handleParse)
	v1.POST("/runs", s.handleRun)
	v1.GET("/runs", s.handleListRuns)
	v1.GET("/runs/:id", s.handleGetRun)
	v1.GET("/runs/:id/report", s.handleRunReport)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// fail writes an error response with a status derived from the error
func (s *Server) fail(c *gin.Context, err error) {
	code := errors.CodeFor(err)
	status := errors.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
