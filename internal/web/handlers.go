package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"homehub/internal/models"
)

func (s *Server) listDevicesHandler(c *gin.Context) {
	devices, err := s.registry.GetAll(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list devices")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch devices"})
		return
	}
	c.JSON(http.StatusOK, devices)
}

func (s *Server) getStateHandler(c *gin.Context) {
	target := models.ContactTarget{
		Identifier: c.Query("identifier"),
		Contact:    c.Query("contact"),
	}
	if target.Identifier == "" || target.Contact == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identifier and contact are required"})
		return
	}

	value := s.states.GetState(target)
	c.JSON(http.StatusOK, gin.H{
		"identifier": target.Identifier,
		"contact":    target.Contact,
		"value":      value,
	})
}

func (s *Server) getHistoryHandler(c *gin.Context) {
	target := models.ContactTarget{
		Identifier: c.Query("identifier"),
		Contact:    c.Query("contact"),
	}
	if target.Identifier == "" || target.Contact == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identifier and contact are required"})
		return
	}

	start, end := time.Time{}, time.Now().UTC()
	if raw := c.Query("start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start time"})
			return
		}
		start = parsed
	}
	if raw := c.Query("end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end time"})
			return
		}
		end = parsed
	}

	history := s.states.GetStateHistory(target, start, end)
	if history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no history for target"})
		return
	}
	c.JSON(http.StatusOK, history)
}

func (s *Server) listProcessesHandler(c *gin.Context) {
	processes, err := s.processes.GetAllProcesses(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list processes")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch processes"})
		return
	}
	c.JSON(http.StatusOK, processes)
}

// publishConductsHandler lets API clients issue conducts directly, the
// same path a fired process takes.
func (s *Server) publishConductsHandler(c *gin.Context) {
	var req []models.Conduct
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	for _, conduct := range req {
		if !conduct.Target.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conduct target"})
			return
		}
	}

	s.conducts.Publish(c.Request.Context(), req)
	c.JSON(http.StatusAccepted, gin.H{"published": len(req)})
}
