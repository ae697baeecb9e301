package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// GrammarCorrection is one flagged error in the transcript.
type GrammarCorrection struct {
	Original    string `json:"original"`
	Correction  string `json:"correction"`
	Explanation string `json:"explanation"`
}

// AnalysisResult is the structured feedback for one transcript. Reply is
// non-nil exactly when the request was conversational; grammar_corrections is
// always present, empty when the English was perfect.
type AnalysisResult struct {
	GrammarCorrections []GrammarCorrection `json:"grammar_corrections"`
	FluencyScore       int                 `json:"fluency_score"`
	Tips               []string            `json:"tips"`
	PositiveFeedback   string              `json:"positive_feedback"`
	Reply              *string             `json:"reply"`
}

// AnalyzeRequest carries one transcript plus the context that conditions the
// prompt. The client is stateless: one request fully determines one response.
type AnalyzeRequest struct {
	Text           string
	Level          string
	Roleplay       string
	Conversational bool
}

// Analyzer produces structured feedback for a transcript.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error)
}

// GroqAnalyzer talks to the Groq chat-completions endpoint, asking for a
// strict JSON object and validating the shape before returning it.
type GroqAnalyzer struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	HTTP        *http.Client
	Log         *logrus.Logger
}

func NewGroqAnalyzer(apiKey string, cfg Config, log *logrus.Logger) *GroqAnalyzer {
	if log == nil {
		log = NewQuietLogger()
	}
	model := cfg.AnalysisModel
	if model == "" {
		model = DefaultAnalysisModel
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &GroqAnalyzer{
		APIKey:      apiKey,
		Model:       model,
		BaseURL:     strings.TrimRight(base, "/"),
		Temperature: 0.3,
		HTTP:        &http.Client{Timeout: cfg.RequestTimeout()},
		Log:         log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (a *GroqAnalyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	// The length check runs before any network IO.
	if len(strings.TrimSpace(req.Text)) < 2 {
		return nil, ErrInputTooShort
	}
	if strings.TrimSpace(a.APIKey) == "" {
		return nil, ErrMissingCredential
	}

	body := chatRequest{
		Model: a.Model,
		Messages: []chatMessage{
			{Role: "system", Content: BuildAnalysisPrompt(req.Level, req.Roleplay, req.Conversational)},
			{Role: "user", Content: fmt.Sprintf("Analyze this text: %q", req.Text)},
		},
		Temperature: a.Temperature,
	}
	body.ResponseFormat.Type = "json_object"

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.HTTP.Do(httpReq)
	if err != nil {
		return nil, &UpstreamError{Status: 0, Message: RedactSecrets(err.Error(), a.APIKey)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Message: "read response: " + err.Error()}
	}

	a.Log.WithFields(logrus.Fields{
		"status":         resp.StatusCode,
		"conversational": req.Conversational,
		"latency":        time.Since(start).Milliseconds(),
	}).Debug("analysis request finished")

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrCredentialRejected
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{
			Status:  resp.StatusCode,
			Message: RedactSecrets(providerMessage(raw), a.APIKey),
		}
	}

	var envelope chatResponse
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Choices) == 0 {
		return nil, fmt.Errorf("%w: missing choices", ErrMalformedResponse)
	}

	return ParseAnalysisResult([]byte(envelope.Choices[0].Message.Content), req.Conversational)
}

// ParseAnalysisResult decodes and validates the model's JSON payload, then
// enforces the invariants the prompt asked for: score in range, corrections
// present, reply non-nil exactly in conversational mode.
func ParseAnalysisResult(content []byte, conversational bool) (*AnalysisResult, error) {
	if err := ValidateAnalysisPayload(content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var result AnalysisResult
	if err := json.Unmarshal(content, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if result.GrammarCorrections == nil {
		result.GrammarCorrections = []GrammarCorrection{}
	}
	if result.Tips == nil {
		result.Tips = []string{}
	}
	if conversational {
		if result.Reply == nil || strings.TrimSpace(*result.Reply) == "" {
			return nil, fmt.Errorf("%w: conversational reply missing", ErrMalformedResponse)
		}
	} else {
		// Downstream consumers branch on presence, so reply is forced to an
		// explicit null outside conversational mode.
		result.Reply = nil
	}
	return &result, nil
}
