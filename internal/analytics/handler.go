package analytics

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Handler exposes the dashboard metrics over HTTP.
type Handler struct {
	dashboard *Dashboard
}

func NewHandler(dashboard *Dashboard) *Handler {
	return &Handler{dashboard: dashboard}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/dashboard/metrics", h.GetMetrics)
	api.GET("/dashboard/version", h.GetVersion)
}

// GetMetrics returns the current dashboard aggregate.
func (h *Handler) GetMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, h.dashboard.Metrics(time.Now()))
}

// GetVersion returns the change counter so clients can poll cheaply.
func (h *Handler) GetVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]uint64{"version": h.dashboard.Version()})
}
