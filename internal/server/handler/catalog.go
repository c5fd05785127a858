// Package handler holds the gin route handlers for the relay's HTTP
// surface. Handlers parse/validate input, delegate to a service, and
// serialize the result — no business logic lives here.
package handler

import (
	"errors"
	"net/http"

	"github.com/arung-agamani/denpa-radio/internal/broadcastclock"
	"github.com/arung-agamani/denpa-radio/internal/relayerr"
	"github.com/arung-agamani/denpa-radio/internal/server/service"
	"github.com/gin-gonic/gin"
)

// CatalogHandlers serves the station/program directory endpoints.
type CatalogHandlers struct {
	svc *service.CatalogService
}

func NewCatalogHandlers(svc *service.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{svc: svc}
}

// Health handles GET /health.
func (h *CatalogHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stations handles GET /api/radiko/stations.
func (h *CatalogHandlers) Stations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stations": h.svc.Stations()})
}

// StationsWithProgram handles GET /api/radiko/stations/with-program.
func (h *CatalogHandlers) StationsWithProgram(c *gin.Context) {
	now := broadcastclock.Now()
	c.JSON(http.StatusOK, gin.H{"stations": h.svc.StationsWithProgram(now)})
}

// ProgramsForDay handles GET /api/radiko/stations/{stationId}/programs?date=yyyymmdd.
func (h *CatalogHandlers) ProgramsForDay(c *gin.Context) {
	stationID := c.Param("stationId")
	dateStr := c.Query("date")
	if len(dateStr) != 8 {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "date must be an 8-digit yyyymmdd"})
		return
	}

	date, err := broadcastclock.Parse(dateStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}

	programs, err := h.svc.ProgramsForDay(stationID, date)
	if err != nil {
		if errors.Is(err, relayerr.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "unknown station"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stationId": stationID,
		"date":      dateStr,
		"programs":  programs,
	})
}
