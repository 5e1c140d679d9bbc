// Package aitools exposes the AI-assisted clinical endpoints: exam analysis,
// dosage calculation, conversation analysis and voice transcription. It owns
// no state; it orchestrates the automation-flow and LLM clients.
package aitools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/domain/messaging"
	"github.com/clinicore/clinicore/internal/platform/ai"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/flows"
)

// FlowCaller is the slice of the automation-flow client these endpoints use.
type FlowCaller interface {
	AnalyzeExam(ctx context.Context, patientID, filename, contentType string, size int64, file io.Reader) (*ai.FlowResult, error)
	CalculateDosage(ctx context.Context, req flows.DosageRequest) (*ai.FlowResult, error)
	IssueTranscriptionToken(ctx context.Context) (string, error)
	FinalizeTranscription(ctx context.Context, token string) (*ai.FlowResult, error)
}

// Analyzer reviews a conversation transcript.
type Analyzer interface {
	AnalyzeConversation(ctx context.Context, transcript string) (*ai.ConversationAnalysis, error)
}

// TranscriptSource loads a session's messages for analysis.
type TranscriptSource interface {
	Messages(ctx context.Context, sessionID string) ([]*messaging.Message, error)
}

type Handler struct {
	flows       FlowCaller
	analyzer    Analyzer
	transcripts TranscriptSource
}

func NewHandler(fc FlowCaller, analyzer Analyzer, transcripts TranscriptSource) *Handler {
	return &Handler{flows: fc, analyzer: analyzer, transcripts: transcripts}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinical := api.Group("/ai", auth.RequireRole("admin", "doctor"))
	clinical.POST("/exams/analyze", h.AnalyzeExam)
	clinical.POST("/dosage", h.CalculateDosage)
	clinical.POST("/conversations/analyze", h.AnalyzeConversation)
	clinical.POST("/transcriptions/token", h.TranscriptionToken)
	clinical.POST("/transcriptions/finalize", h.FinalizeTranscription)
}

// httpError maps the three failure families: validation errors that never
// reached the network stay 400, unusable upstream responses and flow
// rejections become 502.
func httpError(err error) error {
	if errors.Is(err, flows.ErrNotPDF) || errors.Is(err, flows.ErrFileTooLarge) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// Upstream failures, including ai.ErrUnrecognizedEnvelope and
	// flows.ErrFlowRejected, surface as bad gateway.
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}

func (h *Handler) AnalyzeExam(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	patientID := c.FormValue("patient_id")
	if patientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	result, err := h.flows.AnalyzeExam(c.Request().Context(),
		patientID, fh.Filename, fh.Header.Get("Content-Type"), fh.Size, src)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) CalculateDosage(c echo.Context) error {
	var req flows.DosageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.flows.CalculateDosage(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// AnalyzeConversation builds a transcript from the session's messages and
// runs the LLM review. The result is returned to the caller only; persisting
// it is a separate, explicit call on the consultations API.
func (h *Handler) AnalyzeConversation(c echo.Context) error {
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(body.SessionID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}

	ctx := c.Request().Context()
	msgs, err := h.transcripts.Messages(ctx, body.SessionID)
	if err != nil {
		return httpError(err)
	}
	if len(msgs) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "session has no messages")
	}

	analysis, err := h.analyzer.AnalyzeConversation(ctx, Transcript(msgs))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, analysis)
}

func (h *Handler) TranscriptionToken(c echo.Context) error {
	token, err := h.flows.IssueTranscriptionToken(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) FinalizeTranscription(c echo.Context) error {
	var body struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.Token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token is required")
	}
	result, err := h.flows.FinalizeTranscription(c.Request().Context(), body.Token)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// Transcript renders messages as the prompt transcript, one line per message,
// inbound marked Paciente and outbound Atendente.
func Transcript(msgs []*messaging.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		speaker := "Atendente"
		if m.MessageType == "human" {
			speaker = "Paciente"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, m.Content)
	}
	return b.String()
}
