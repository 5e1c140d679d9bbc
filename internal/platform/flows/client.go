// Package flows calls the external automation endpoints: exam analysis,
// medication dosage calculation, WhatsApp sending, invite links, and audio
// transcription. Each flow is a POST with a JSON or multipart body; responses
// arrive in the loose envelopes ai.NormalizeEnvelope understands.
package flows

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/ai"
)

// MaxExamFileBytes is the documented ceiling for exam uploads.
const MaxExamFileBytes = 10 * 1024 * 1024

// Validation errors carry the exact user-facing message the dashboard shows.
var (
	ErrNotPDF       = errors.New("only PDF files are accepted for exam analysis")
	ErrFileTooLarge = errors.New("file exceeds the 10MB limit")
	ErrFlowRejected = errors.New("flow reported failure")
)

// Client posts to the automation endpoints under one base URL.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient builds a flows client rooted at baseURL.
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 120 * time.Second},
		log:     logger.With().Str("component", "flows").Logger(),
	}
}

// SetHTTPClient overrides the underlying HTTP client, mainly for tests.
func (c *Client) SetHTTPClient(h *http.Client) { c.http = h }

func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (*ai.FlowResult, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", path, err)
	}
	return c.post(ctx, path, "application/json", bytes.NewReader(data))
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (*ai.FlowResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("flow %s: read response: %w", path, err)
	}

	c.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("flow call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("flow %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	result, err := ai.NormalizeEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", path, err)
	}
	if !result.Success {
		msg := result.Output
		if msg == "" {
			msg = "no detail provided"
		}
		return result, fmt.Errorf("flow %s: %w: %s", path, ErrFlowRejected, msg)
	}
	return result, nil
}

func (c *Client) postMultipart(ctx context.Context, path string, fields map[string]string, fileField, filename string, file io.Reader) (*ai.FlowResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, err
		}
	}
	if file != nil {
		part, err := writer.CreateFormFile(fileField, filename)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, file); err != nil {
			return nil, fmt.Errorf("copy upload: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return c.post(ctx, path, writer.FormDataContentType(), &buf)
}

// ---------------------------------------------------------------------------
// Exam analysis
// ---------------------------------------------------------------------------

// ValidateExamUpload enforces the exam-upload rules before any network call.
func ValidateExamUpload(filename, contentType string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".pdf" && contentType != "application/pdf" {
		return ErrNotPDF
	}
	if size > MaxExamFileBytes {
		return ErrFileTooLarge
	}
	return nil
}

// AnalyzeExam uploads a PDF exam for analysis and returns the normalized
// result. Validation failures never reach the network.
func (c *Client) AnalyzeExam(ctx context.Context, patientID, filename, contentType string, size int64, file io.Reader) (*ai.FlowResult, error) {
	if err := ValidateExamUpload(filename, contentType, size); err != nil {
		return nil, err
	}
	return c.postMultipart(ctx, "/webhook/exam-analysis",
		map[string]string{"patient_id": patientID}, "file", filename, file)
}

// ---------------------------------------------------------------------------
// Medication dosage
// ---------------------------------------------------------------------------

// DosageRequest is the structured input of the dosage-calculation flow.
type DosageRequest struct {
	Medication string  `json:"medication"`
	WeightKg   float64 `json:"weight_kg"`
	AgeYears   int     `json:"age_years"`
	Condition  string  `json:"condition,omitempty"`
}

// Validate blocks submission with a specific message before any network call.
func (r DosageRequest) Validate() error {
	if strings.TrimSpace(r.Medication) == "" {
		return fmt.Errorf("medication is required")
	}
	if r.WeightKg <= 0 {
		return fmt.Errorf("weight_kg must be positive")
	}
	if r.AgeYears < 0 {
		return fmt.Errorf("age_years must not be negative")
	}
	return nil
}

// CalculateDosage submits the dosage form to the automation flow.
func (c *Client) CalculateDosage(ctx context.Context, req DosageRequest) (*ai.FlowResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return c.postJSON(ctx, "/webhook/medication-dosage", req)
}

// ---------------------------------------------------------------------------
// WhatsApp sending
// ---------------------------------------------------------------------------

// SendTextRequest posts one outbound text message to a session.
type SendTextRequest struct {
	SessionID string `json:"session_id"`
	Phone     string `json:"phone"`
	Text      string `json:"text"`
}

// SendText delivers a text message through the messaging flow.
func (c *Client) SendText(ctx context.Context, req SendTextRequest) error {
	if strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("text is required")
	}
	if req.SessionID == "" && req.Phone == "" {
		return fmt.Errorf("session_id or phone is required")
	}
	_, err := c.postJSON(ctx, "/webhook/whatsapp-send", req)
	return err
}

// SendMedia uploads an audio or file attachment to a session. kind is
// "audio" or "file".
func (c *Client) SendMedia(ctx context.Context, sessionID, kind, filename string, file io.Reader) error {
	if kind != "audio" && kind != "file" {
		return fmt.Errorf("unsupported media kind %q", kind)
	}
	if sessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	_, err := c.postMultipart(ctx, "/webhook/whatsapp-send-"+kind,
		map[string]string{"session_id": sessionID}, "file", filename, file)
	return err
}

// SendInvite posts a link/invite message to a phone number.
func (c *Client) SendInvite(ctx context.Context, phone, link string) error {
	if phone == "" || link == "" {
		return fmt.Errorf("phone and link are required")
	}
	_, err := c.postJSON(ctx, "/webhook/send-invite", map[string]string{
		"phone": phone,
		"link":  link,
	})
	return err
}

// ---------------------------------------------------------------------------
// Transcription
// ---------------------------------------------------------------------------

// IssueTranscriptionToken starts a transcription session and returns its token.
func (c *Client) IssueTranscriptionToken(ctx context.Context) (string, error) {
	result, err := c.postJSON(ctx, "/webhook/transcription-token", map[string]string{})
	if err != nil {
		return "", err
	}
	if token, ok := result.Fields["token"].(string); ok && token != "" {
		return token, nil
	}
	if result.Output != "" {
		return result.Output, nil
	}
	return "", fmt.Errorf("transcription flow returned no token")
}

// FinalizeTranscription closes a transcription session and returns the text.
func (c *Client) FinalizeTranscription(ctx context.Context, token string) (*ai.FlowResult, error) {
	if token == "" {
		return nil, fmt.Errorf("token is required")
	}
	return c.postJSON(ctx, "/webhook/transcription-finalize", map[string]string{"token": token})
}
