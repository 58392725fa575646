package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/prix-carburants/services/api/db"
)

// handleV1ListStations returns a page of stations
// GET /api/v1/core/stations?cp=75&limit=50&offset=0
func (s *Server) handleV1ListStations(c *gin.Context) {
	limit, offset, ok := s.parsePaging(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	page, err := s.store.ListStations(ctx, db.StationQuery{
		PostalPrefix: c.Query("cp"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": page.Stations,
		"meta": gin.H{
			"count":       len(page.Stations),
			"total_count": page.TotalCount,
			"limit":       limit,
			"offset":      offset,
			"has_more":    offset+len(page.Stations) < page.TotalCount,
		},
	})
}

// handleV1GetStation returns a station with its latest prices and services
// GET /api/v1/core/stations/:id
func (s *Server) handleV1GetStation(c *gin.Context) {
	id, ok := parseStationID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	station, err := s.store.GetStation(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if station == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "station not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": station,
	})
}
