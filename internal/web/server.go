// Package web exposes read-only projections of the device registry and
// state cache, plus a conduct request endpoint.
package web

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"homehub/internal/conducts"
	"homehub/internal/models"
	"homehub/internal/processor"
	"homehub/internal/state"
)

// Registry is the device registry slice the API needs.
type Registry interface {
	GetAll(ctx context.Context) ([]models.DeviceConfiguration, error)
}

// Server serves the HTTP API.
type Server struct {
	router    *gin.Engine
	states    *state.Manager
	registry  Registry
	processes processor.ProcessRepository
	conducts  *conducts.Manager
	logger    zerolog.Logger

	jwtSecret         string
	adminPasswordHash string
}

// NewServer builds the router.
func NewServer(
	states *state.Manager,
	registry Registry,
	processes processor.ProcessRepository,
	conductManager *conducts.Manager,
	jwtSecret, adminPasswordHash string,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		router:            gin.New(),
		states:            states,
		registry:          registry,
		processes:         processes,
		conducts:          conductManager,
		logger:            logger,
		jwtSecret:         jwtSecret,
		adminPasswordHash: adminPasswordHash,
	}

	s.router.Use(gin.Recovery())

	s.router.POST("/auth/login", s.loginHandler)

	authed := s.router.Group("/", s.requireAuth())
	{
		authed.GET("/devices", s.listDevicesHandler)
		// Device identifiers contain slashes, so state and history take
		// the target in the query string.
		authed.GET("/state", s.getStateHandler)
		authed.GET("/history", s.getHistoryHandler)
		authed.GET("/processes", s.listProcessesHandler)
		authed.POST("/conducts", s.publishConductsHandler)
	}

	return s
}

// Run serves the API on addr, blocking until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("web server listening")
	return s.router.Run(addr)
}

// Handler returns the underlying HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
