package app

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Message roles within a conversation thread.
const (
	RoleUser = "user"
	RoleAI   = "ai"
)

// Message is one bubble in the conversation thread. AI messages embed the
// analysis that produced them so the grammar check renders inline.
type Message struct {
	ID       string          `json:"id"`
	Role     string          `json:"role"`
	Content  string          `json:"content"`
	Analysis *AnalysisResult `json:"analysis,omitempty"`
}

// Speaker voices a reply, best-effort. It must not block the caller; the
// conversation invokes it on its own goroutine.
type Speaker func(text, voiceID string)

// Conversation is an append-only message thread over the pipeline's
// conversational analysis mode. Turns are persisted to history like plain
// practice turns, so a conversation session survives a restart.
type Conversation struct {
	pipeline *Pipeline
	speaker  Speaker

	// mu guards messages. Submit runs on its own goroutine while the
	// presentation layer reads the thread.
	mu       sync.Mutex
	messages []Message
}

func NewConversation(pipeline *Pipeline, speaker Speaker) *Conversation {
	return &Conversation{pipeline: pipeline, speaker: speaker}
}

// Messages returns a copy of the thread in order.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) append(msg Message) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
}

// Submit runs one conversational turn: record the user's words, analyze in
// conversational mode, append the in-character reply. Text under the minimum
// silently aborts with ErrInputTooShort and no network call.
func (c *Conversation) Submit(ctx context.Context, text string) (*Message, error) {
	text = strings.TrimSpace(text)
	if len(text) < 2 {
		return nil, ErrInputTooShort
	}

	c.append(Message{
		ID:      uuid.NewString(),
		Role:    RoleUser,
		Content: text,
	})

	cfg := c.pipeline.Config()
	result, err := c.pipeline.Analyze(ctx, AnalyzeRequest{
		Text:           text,
		Level:          cfg.Level,
		Roleplay:       cfg.Roleplay,
		Conversational: true,
	})
	if err != nil {
		return nil, err
	}

	reply := Message{
		ID:       uuid.NewString(),
		Role:     RoleAI,
		Content:  *result.Reply,
		Analysis: result,
	}
	c.append(reply)

	c.pipeline.record(text, result, cfg)

	if c.speaker != nil {
		go c.speaker(reply.Content, cfg.PreferredVoiceID)
	}
	return &reply, nil
}
