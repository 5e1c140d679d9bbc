package agenda

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	staff := api.Group("/agenda", auth.RequireRole("admin", "doctor", "secretary"))
	staff.GET("/appointments", h.ListAppointments)
	staff.POST("/appointments", h.CreateAppointment)
	staff.GET("/appointments/:id", h.GetAppointment)
	staff.PATCH("/appointments/:id/status", h.UpdateStatus)
	staff.PATCH("/appointments/:id/reschedule", h.Reschedule)
	staff.DELETE("/appointments/:id", h.CancelAppointment)
	staff.GET("/doctors/:doctorId/schedules", h.ListSchedules)
	staff.POST("/doctors/:doctorId/schedules", h.CreateSchedule)
	staff.DELETE("/schedules/:id", h.DeleteSchedule)
	staff.GET("/doctors/:doctorId/free-slots", h.FreeSlots)
	staff.GET("/doctors/:doctorId/occupancy", h.Occupancy)
}

func httpError(err error) error {
	var apiErr *supabase.APIError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.As(err, &apiErr):
		return echo.NewHTTPError(http.StatusBadGateway, apiErr.Message)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

// ListAppointments serves day and range views. Query params: date=YYYY-MM-DD
// for one day, or from/to as RFC3339; doctor_id narrows to one doctor.
func (h *Handler) ListAppointments(c echo.Context) error {
	var doctorID *uuid.UUID
	if raw := c.QueryParam("doctor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		doctorID = &id
	}

	ctx := c.Request().Context()
	if date := c.QueryParam("date"); date != "" {
		day, err := time.ParseInLocation("2006-01-02", date, time.Local)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		}
		items, err := h.svc.ListDay(ctx, doctorID, day)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, items)
	}

	from, err := time.Parse(time.RFC3339, c.QueryParam("from"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "from and to are required as RFC3339 when date is absent")
	}
	to, err := time.Parse(time.RFC3339, c.QueryParam("to"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "from and to are required as RFC3339 when date is absent")
	}
	items, err := h.svc.ListRange(ctx, doctorID, from, to)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateAppointment(c.Request().Context(), &a); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
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
	a, err := h.svc.UpdateStatus(c.Request().Context(), id, body.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Reschedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Reschedule(c.Request().Context(), id, body.ScheduledAt)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListSchedules(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	items, err := h.svc.ListSchedules(c.Request().Context(), doctorID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateSchedule(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	var s Schedule
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.DoctorID = doctorID
	if err := h.svc.CreateSchedule(c.Request().Context(), &s); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) DeleteSchedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteSchedule(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) FreeSlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	day, err := time.ParseInLocation("2006-01-02", c.QueryParam("date"), time.Local)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required as YYYY-MM-DD")
	}
	slots, err := h.svc.FreeSlots(c.Request().Context(), doctorID, day)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, slots)
}

func (h *Handler) Occupancy(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	day, err := time.ParseInLocation("2006-01-02", c.QueryParam("date"), time.Local)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required as YYYY-MM-DD")
	}
	pct, err := h.svc.Occupancy(c.Request().Context(), doctorID, day)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]float64{"occupancy": pct})
}
