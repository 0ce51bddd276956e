package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"researchhub/hub"
)

// GetSummaryHandler returns catalog totals and the most viewed papers.
// @Summary      Catalog Summary
// @Tags         Stats
// @Produce      json
// @Success      200  {object}  catalog.Summary
// @Router       /stats/summary [get]
func GetSummaryHandler(c *gin.Context, h *hub.Hub) {
	c.JSON(http.StatusOK, h.Catalog.Summary())
}

// GetFacetsHandler returns the filter values present in the catalog.
// @Summary      Filter Options
// @Tags         Stats
// @Produce      json
// @Success      200  {object}  catalog.Facets
// @Router       /facets [get]
func GetFacetsHandler(c *gin.Context, h *hub.Hub) {
	c.JSON(http.StatusOK, h.Catalog.Facets())
}

// StatusResponse describes the running service.
type StatusResponse struct {
	Online           bool  `json:"online"` // An object store is configured
	Papers           int   `json:"papers"`
	Sessions         int   `json:"sessions"`
	StatSyncPushed   int64 `json:"statSyncPushed"`
	StatSyncFailures int64 `json:"statSyncFailures"`
}

// GetStatusHandler reports store connectivity and background sync health.
// @Summary      Service Status
// @Tags         Stats
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /status [get]
func GetStatusHandler(c *gin.Context, h *hub.Hub) {
	c.JSON(http.StatusOK, StatusResponse{
		Online:           h.Online(),
		Papers:           h.Catalog.Len(),
		Sessions:         h.Sessions.Len(),
		StatSyncPushed:   h.Stats.Pushed(),
		StatSyncFailures: h.Stats.Failures(),
	})
}
