package messaging

import (
	"errors"
	"net/http"

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
	staff := api.Group("/messaging", auth.RequireRole("admin", "doctor", "secretary"))
	staff.GET("/sessions", h.ListSessions)
	staff.GET("/sessions/:sid/messages", h.ListMessages)
	staff.POST("/sessions/:sid/text", h.SendText)
	staff.POST("/sessions/:sid/media", h.SendMedia)
	staff.POST("/sessions/:sid/read", h.MarkRead)
	staff.POST("/invites", h.SendInvite)
}

func httpError(err error) error {
	var apiErr *supabase.APIError
	if errors.As(err, &apiErr) {
		return echo.NewHTTPError(http.StatusBadGateway, apiErr.Message)
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func (h *Handler) ListSessions(c echo.Context) error {
	sessions, err := h.svc.Sessions(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sessions)
}

func (h *Handler) ListMessages(c echo.Context) error {
	msgs, err := h.svc.Messages(c.Request().Context(), c.Param("sid"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *Handler) SendText(c echo.Context) error {
	var body struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SendText(c.Request().Context(), c.Param("sid"), body.Text); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

// SendMedia forwards a multipart upload to the automation flow. The form
// carries the file under "file" and the media kind under "kind".
func (h *Handler) SendMedia(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	kind := c.FormValue("kind")
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	if err := h.svc.SendMedia(c.Request().Context(), c.Param("sid"), kind, fh.Filename, src); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) MarkRead(c echo.Context) error {
	if err := h.svc.MarkRead(c.Request().Context(), c.Param("sid")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SendInvite(c echo.Context) error {
	var body struct {
		Phone string `json:"phone"`
		Link  string `json:"link"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SendInvite(c.Request().Context(), body.Phone, body.Link); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusAccepted)
}
