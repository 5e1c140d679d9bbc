package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// InlineFile is a base64-encoded attachment sent alongside a prompt.
type InlineFile struct {
	MimeType string
	Data     string // base64
}

// ConversationAnalysis is the typed view of an LLM conversation review.
// Every field has a defensive default; the model's JSON is never trusted to
// be complete.
type ConversationAnalysis struct {
	Sentiment      string `json:"sentiment"`
	Intent         string `json:"intent"`
	Urgency        string `json:"urgency"`
	Summary        string `json:"summary"`
	SuggestedReply string `json:"suggested_reply"`
}

// GeminiClient calls the generateContent endpoint, trying an ordered list of
// model names. A 404 advances to the next candidate; the first success wins;
// exhausting the list yields a consolidated error naming the last failure.
type GeminiClient struct {
	apiKey  string
	models  []string
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewGeminiClient builds a client over the given candidate models, tried in
// order.
func NewGeminiClient(apiKey string, models []string, logger zerolog.Logger) *GeminiClient {
	return &GeminiClient{
		apiKey:  apiKey,
		models:  models,
		baseURL: defaultGeminiBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
		log:     logger.With().Str("component", "gemini").Logger(),
	}
}

// SetBaseURL overrides the API endpoint, mainly for tests.
func (g *GeminiClient) SetBaseURL(u string) { g.baseURL = strings.TrimRight(u, "/") }

// -- wire types --

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateText sends the prompt (plus optional inline file) to each candidate
// model until one answers.
func (g *GeminiClient) GenerateText(ctx context.Context, prompt string, file *InlineFile) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("gemini: no API key configured")
	}

	parts := []geminiPart{{Text: prompt}}
	if file != nil {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: file.MimeType,
			Data:     file.Data,
		}})
	}
	body, err := json.Marshal(geminiRequest{Contents: []geminiContent{{Parts: parts}}})
	if err != nil {
		return "", fmt.Errorf("gemini: encode request: %w", err)
	}

	var lastErr error
	for _, model := range g.models {
		text, status, err := g.callModel(ctx, model, body)
		switch {
		case err == nil:
			return text, nil
		case status == http.StatusNotFound:
			// Model variant not available for this key; try the next one.
			g.log.Debug().Str("model", model).Msg("model not found, trying next candidate")
			lastErr = err
		default:
			return "", err
		}
	}
	return "", fmt.Errorf("gemini: all %d candidate models failed, last error: %w", len(g.models), lastErr)
}

func (g *GeminiClient) callModel(ctx context.Context, model string, body []byte) (string, int, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, model, url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("gemini %s: %w", model, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("gemini %s: read response: %w", model, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, fmt.Errorf("gemini %s: status %d: %s", model, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", resp.StatusCode, fmt.Errorf("gemini %s: decode response: %w", model, err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", resp.StatusCode, fmt.Errorf("gemini %s: response carried no candidates", model)
	}
	return parsed.Candidates[0].Content.Parts[0].Text, resp.StatusCode, nil
}

const conversationPrompt = `Analyze the following clinic WhatsApp conversation and answer with a JSON
object containing exactly these string fields: sentiment (positive|neutral|negative),
intent, urgency (low|medium|high), summary, suggested_reply.

Conversation:
%s`

// AnalyzeConversation asks the model to review a conversation transcript and
// normalizes the loose JSON answer into a ConversationAnalysis.
func (g *GeminiClient) AnalyzeConversation(ctx context.Context, transcript string) (*ConversationAnalysis, error) {
	text, err := g.GenerateText(ctx, fmt.Sprintf(conversationPrompt, transcript), nil)
	if err != nil {
		return nil, err
	}
	return parseConversationAnalysis(text), nil
}

// parseConversationAnalysis tolerates fenced code blocks and missing fields.
func parseConversationAnalysis(text string) *ConversationAnalysis {
	analysis := &ConversationAnalysis{
		Sentiment: "neutral",
		Intent:    "unknown",
		Urgency:   "low",
	}

	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		// Not JSON at all: keep defaults and treat the text as the summary.
		analysis.Summary = cleaned
		return analysis
	}

	setString := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v, ok := fields[key].(string); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	setString(&analysis.Sentiment, "sentiment", "sentimento")
	setString(&analysis.Intent, "intent", "intencao")
	setString(&analysis.Urgency, "urgency", "urgencia")
	setString(&analysis.Summary, "summary", "resumo")
	setString(&analysis.SuggestedReply, "suggested_reply", "resposta_sugerida")
	return analysis
}
