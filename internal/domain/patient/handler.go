package patient

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/supabase"
	"github.com/clinicore/clinicore/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole("admin", "doctor", "secretary"))
	staff.GET("/patients", h.ListPatients)
	staff.POST("/patients", h.CreatePatient)
	staff.GET("/patients/:id", h.GetPatient)
	staff.PATCH("/patients/:id", h.UpdatePatient)
	staff.DELETE("/patients/:id", h.DeletePatient)
	staff.GET("/patients/:id/bundle", h.GetBundle)
	staff.POST("/patients/:id/attachments", h.AddAttachment)
	staff.POST("/patients/:id/follow-ups", h.AddFollowUp)
	staff.PATCH("/patients/:id/follow-ups/:fid", h.SetFollowUpDone)

	clinical := api.Group("", auth.RequireRole("admin", "doctor"))
	clinical.POST("/patients/:id/records", h.AddMedicalRecord)
	clinical.POST("/patients/:id/anamnesis", h.AddAnamnesis)
	clinical.POST("/patients/:id/clinical-data", h.AddClinicalEntry)
}

func httpError(err error) error {
	var apiErr *supabase.APIError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.As(err, &apiErr):
		return echo.NewHTTPError(http.StatusBadGateway, apiErr.Message)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) ListPatients(c echo.Context) error {
	items, err := h.svc.ListPatients(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return httpError(err)
	}
	pg := pagination.FromContext(c)
	page, total := pagination.Page(items, pg)
	return c.JSON(http.StatusOK, pagination.NewResponse(page, total, pg.Limit, pg.Offset))
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePatient(c.Request().Context(), &p); err != nil {
		var apiErr *supabase.APIError
		if errors.As(err, &apiErr) {
			return echo.NewHTTPError(http.StatusBadGateway, apiErr.Message)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	patch := supabase.Row{}
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdatePatient(c.Request().Context(), id, patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeletePatient(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetBundle(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	b, err := h.svc.Bundle(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) AddMedicalRecord(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var rec MedicalRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec.PatientID = id
	b, err := h.svc.AddMedicalRecord(c.Request().Context(), &rec)
	return h.respondBundle(c, b, err)
}

func (h *Handler) AddAnamnesis(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var a Anamnesis
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.PatientID = id
	b, err := h.svc.AddAnamnesis(c.Request().Context(), &a)
	return h.respondBundle(c, b, err)
}

func (h *Handler) AddClinicalEntry(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var e ClinicalEntry
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e.PatientID = id
	b, err := h.svc.AddClinicalEntry(c.Request().Context(), &e)
	return h.respondBundle(c, b, err)
}

func (h *Handler) AddAttachment(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var a Attachment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.PatientID = id
	b, err := h.svc.AddAttachment(c.Request().Context(), &a)
	return h.respondBundle(c, b, err)
}

func (h *Handler) AddFollowUp(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var f FollowUp
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f.PatientID = id
	b, err := h.svc.AddFollowUp(c.Request().Context(), &f)
	return h.respondBundle(c, b, err)
}

func (h *Handler) SetFollowUpDone(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	fid, err := pathID(c, "fid")
	if err != nil {
		return err
	}
	var body struct {
		Done bool `json:"done"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.SetFollowUpDone(c.Request().Context(), id, fid, body.Done)
	return h.respondBundle(c, b, err)
}

// respondBundle maps a mutation result onto the common bundle response. A
// validation error from the service never reached the network, so it stays a
// 400 rather than folding into httpError's default 500.
func (h *Handler) respondBundle(c echo.Context, b *Bundle, err error) error {
	if err != nil {
		var apiErr *supabase.APIError
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		case errors.As(err, &apiErr):
			return echo.NewHTTPError(http.StatusBadGateway, apiErr.Message)
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, b)
}
