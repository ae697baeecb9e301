package app

import (
	"context"
	"strings"
	"sync"

	"speakcoach/internal/capture"
)

// MockTranscriber returns a canned transcript without touching the network.
// Used by tests and by `--mock` runs of the TUI.
type MockTranscriber struct {
	Text string
	Err  error

	mu    sync.Mutex
	calls int
}

func (m *MockTranscriber) Transcribe(ctx context.Context, blob capture.Blob) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if len(blob.Data) == 0 {
		return "", ErrEmptyAudio
	}
	if m.Text != "" {
		return m.Text, nil
	}
	return "this is a mock transcript", nil
}

func (m *MockTranscriber) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockAnalyzer simulates the analysis endpoint with intent-matched canned
// feedback, so the full pipeline and TUI run offline.
type MockAnalyzer struct {
	Err error

	mu    sync.Mutex
	calls int
}

func (m *MockAnalyzer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockAnalyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	if len(strings.TrimSpace(req.Text)) < 2 {
		return nil, ErrInputTooShort
	}
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	result := &AnalysisResult{
		GrammarCorrections: []GrammarCorrection{},
		FluencyScore:       88,
		Tips:               []string{"Vary your sentence openings.", "Slow down on longer words."},
		PositiveFeedback:   "Clear and confident delivery.",
	}

	lower := strings.ToLower(req.Text)
	switch {
	case strings.Contains(lower, "she go"):
		result.GrammarCorrections = []GrammarCorrection{{
			Original:    "She go",
			Correction:  "She goes",
			Explanation: "Third-person singular verbs take -s in the present tense.",
		}}
		result.FluencyScore = 62
	case strings.Contains(lower, "i has"):
		result.GrammarCorrections = []GrammarCorrection{{
			Original:    "I has",
			Correction:  "I have",
			Explanation: "First person uses 'have'.",
		}}
		result.FluencyScore = 58
	}

	if req.Conversational {
		reply := "That's interesting, tell me more about it."
		if req.Roleplay == RoleplayRestaurant {
			reply = "Of course. Would you like anything to drink with that?"
		}
		result.Reply = &reply
	}
	return result, nil
}
