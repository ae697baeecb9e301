package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// analysisEnvelope wraps a result payload in the chat-completions envelope.
func analysisEnvelope(content string) string {
	env := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	}
	b, _ := json.Marshal(env)
	return string(b)
}

func newTestAnalyzer(ts *httptest.Server) *GroqAnalyzer {
	cfg := DefaultConfig()
	cfg.BaseURL = ts.URL
	return NewGroqAnalyzer("gsk_test", cfg, nil)
}

func TestAnalyzeBeginnerCorrection(t *testing.T) {
	payload := `{
		"grammar_corrections": [
			{"original": "She go", "correction": "She goes", "explanation": "third person singular"}
		],
		"fluency_score": 60,
		"tips": ["Practice present simple verbs"],
		"positive_feedback": "Good effort forming a complete sentence.",
		"reply": null
	}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != DefaultAnalysisModel {
			t.Errorf("model = %q", req.Model)
		}
		if req.Temperature != 0.3 {
			t.Errorf("temperature = %v", req.Temperature)
		}
		if req.ResponseFormat.Type != "json_object" {
			t.Errorf("response_format = %q", req.ResponseFormat.Type)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if !strings.Contains(req.Messages[0].Content, "beginner") {
			t.Errorf("system prompt missing level: %s", req.Messages[0].Content)
		}
		fmt.Fprint(w, analysisEnvelope(payload))
	}))
	defer ts.Close()

	result, err := newTestAnalyzer(ts).Analyze(context.Background(), AnalyzeRequest{
		Text:  "She go to school everyday.",
		Level: LevelBeginner,
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(result.GrammarCorrections) != 1 {
		t.Fatalf("corrections = %+v", result.GrammarCorrections)
	}
	if result.GrammarCorrections[0].Correction != "She goes" {
		t.Fatalf("correction = %q", result.GrammarCorrections[0].Correction)
	}
	if result.FluencyScore != 60 {
		t.Fatalf("score = %d", result.FluencyScore)
	}
	if result.Reply != nil {
		t.Fatalf("reply should be nil outside conversational mode")
	}
}

func TestAnalyzePerfectGrammarKeepsEmptyCorrections(t *testing.T) {
	payload := `{
		"grammar_corrections": [],
		"fluency_score": 95,
		"tips": [],
		"positive_feedback": "Flawless use of the present perfect continuous.",
		"reply": null
	}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, analysisEnvelope(payload))
	}))
	defer ts.Close()

	result, err := newTestAnalyzer(ts).Analyze(context.Background(), AnalyzeRequest{
		Text:  "I have been working here for five years.",
		Level: LevelAdvanced,
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.GrammarCorrections == nil || len(result.GrammarCorrections) != 0 {
		t.Fatalf("corrections = %#v, want present and empty", result.GrammarCorrections)
	}
	if result.PositiveFeedback == "" {
		t.Fatalf("positive feedback empty")
	}
}

func TestAnalyzeShortInputSkipsNetwork(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	for _, text := range []string{"", " ", "a"} {
		if _, err := newTestAnalyzer(ts).Analyze(context.Background(), AnalyzeRequest{Text: text}); !errors.Is(err, ErrInputTooShort) {
			t.Fatalf("text %q: err = %v, want ErrInputTooShort", text, err)
		}
	}
	if called {
		t.Fatalf("network call issued for short input")
	}
}

func TestAnalyzeConversationalReplyRequired(t *testing.T) {
	t.Run("reply present", func(t *testing.T) {
		payload := `{
			"grammar_corrections": [],
			"fluency_score": 80,
			"tips": [],
			"positive_feedback": "Nice ordering.",
			"reply": "Certainly, would you like fries with that?"
		}`
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, analysisEnvelope(payload))
		}))
		defer ts.Close()

		result, err := newTestAnalyzer(ts).Analyze(context.Background(), AnalyzeRequest{
			Text:           "I would like a burger please.",
			Roleplay:       RoleplayRestaurant,
			Conversational: true,
		})
		if err != nil {
			t.Fatalf("analyze: %v", err)
		}
		if result.Reply == nil || *result.Reply == "" {
			t.Fatalf("conversational reply missing")
		}
	})

	t.Run("reply null in conversational mode is malformed", func(t *testing.T) {
		payload := `{
			"grammar_corrections": [],
			"fluency_score": 80,
			"tips": [],
			"positive_feedback": "ok",
			"reply": null
		}`
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, analysisEnvelope(payload))
		}))
		defer ts.Close()

		_, err := newTestAnalyzer(ts).Analyze(context.Background(), AnalyzeRequest{
			Text:           "hello there",
			Conversational: true,
		})
		if !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("err = %v, want ErrMalformedResponse", err)
		}
	})

	t.Run("stray reply outside conversational mode is dropped", func(t *testing.T) {
		payload := `{
			"grammar_corrections": [],
			"fluency_score": 80,
			"tips": [],
			"positive_feedback": "ok",
			"reply": "should not be here"
		}`
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, analysisEnvelope(payload))
		}))
		defer ts.Close()

		result, err := newTestAnalyzer(ts).Analyze(context.Background(), AnalyzeRequest{Text: "hello there"})
		if err != nil {
			t.Fatalf("analyze: %v", err)
		}
		if result.Reply != nil {
			t.Fatalf("reply should be forced to nil")
		}
	})
}

func TestAnalyzeMalformedPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: "here is your analysis: great job"},
		{name: "missing fluency_score", payload: `{"grammar_corrections": [], "tips": []}`},
		{name: "score out of range", payload: `{"grammar_corrections": [], "fluency_score": 140}`},
		{name: "score not integer", payload: `{"grammar_corrections": [], "fluency_score": 88.7}`},
		{name: "corrections omitted", payload: `{"fluency_score": 90}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, analysisEnvelope(tc.payload))
			}))
			defer ts.Close()

			_, err := newTestAnalyzer(ts).Analyze(context.Background(), AnalyzeRequest{Text: "hello world"})
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("err = %v, want ErrMalformedResponse", err)
			}
		})
	}
}

func TestAnalyzeUpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limit exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := newTestAnalyzer(ts).Analyze(context.Background(), AnalyzeRequest{Text: "hello world"})
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if ue.Status != http.StatusTooManyRequests || !strings.Contains(ue.Message, "rate limit") {
		t.Fatalf("unexpected upstream error: %+v", ue)
	}
}

func TestBuildAnalysisPromptContracts(t *testing.T) {
	plain := BuildAnalysisPrompt(LevelBeginner, RoleplayMedical, false)
	if !strings.Contains(plain, "doctor at a medical appointment") {
		t.Fatalf("persona missing: %s", plain)
	}
	if !strings.Contains(plain, `"reply": null`) {
		t.Fatalf("non-conversational prompt must pin reply to null: %s", plain)
	}
	if !strings.Contains(plain, "empty array, never omitted") {
		t.Fatalf("prompt must demand empty corrections: %s", plain)
	}

	conv := BuildAnalysisPrompt(LevelIntermediate, RoleplayGeneral, true)
	if !strings.Contains(conv, "keep the dialogue going") {
		t.Fatalf("conversational directive missing: %s", conv)
	}
	if strings.Contains(conv, `"reply": null`) {
		t.Fatalf("conversational prompt must not pin reply to null")
	}
}
