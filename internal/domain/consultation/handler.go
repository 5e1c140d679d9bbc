package consultation

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/ai"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/supabase"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("/consultations", auth.RequireRole("admin", "doctor", "secretary"))
	staff.POST("/tele", h.CreateTeleconsultation)
	staff.GET("/tele/:id", h.GetTeleconsultation)
	staff.GET("/tele", h.ListTeleconsultations)
	staff.PATCH("/tele/:id/status", h.UpdateStatus)

	clinical := api.Group("/consultations", auth.RequireRole("admin", "doctor"))
	clinical.POST("/agent", h.SaveAnalysis)
	clinical.GET("/agent", h.ListAnalyses)
}

func httpError(err error) error {
	var apiErr *supabase.APIError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "consultation not found")
	case errors.As(err, &apiErr):
		return echo.NewHTTPError(http.StatusBadGateway, apiErr.Message)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) CreateTeleconsultation(c echo.Context) error {
	var t Teleconsultation
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateTeleconsultation(c.Request().Context(), &t); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTeleconsultation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.GetTeleconsultation(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTeleconsultations(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
	}
	items, err := h.svc.ListByDoctor(c.Request().Context(), doctorID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.UpdateStatus(c.Request().Context(), id, body.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) SaveAnalysis(c echo.Context) error {
	var body struct {
		SessionID string                   `json:"session_id"`
		PatientID *uuid.UUID               `json:"patient_id,omitempty"`
		Analysis  *ai.ConversationAnalysis `json:"analysis"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.SaveAnalysis(c.Request().Context(), body.SessionID, body.PatientID, body.Analysis)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) ListAnalyses(c echo.Context) error {
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}
	items, err := h.svc.ListAnalyses(c.Request().Context(), sessionID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}
