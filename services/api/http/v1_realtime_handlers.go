package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// handleV1RealtimeNow reports the latest import and today's fact counts
// GET /api/v1/realtime/now
func (s *Server) handleV1RealtimeNow(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	now := time.Now().UTC()
	status, err := s.store.ImportStatus(ctx, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if status.LastImport == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no import recorded"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": status,
		"meta": gin.H{
			"day":          now.Format(time.DateOnly),
			"generated_at": now.Format(time.RFC3339),
		},
	})
}
