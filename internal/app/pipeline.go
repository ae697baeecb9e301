package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"speakcoach/internal/capture"
)

// TurnResult is the outcome of one complete practice turn.
type TurnResult struct {
	Transcript string
	Analysis   *AnalysisResult
	Entry      *HistoryEntry
}

type analysisJob struct {
	ctx   context.Context
	req   AnalyzeRequest
	reply chan analysisOutcome
}

type analysisOutcome struct {
	result *AnalysisResult
	err    error
}

// Pipeline wires capture output through transcription and analysis into
// history. Analysis submissions are serialized through an in-order queue:
// when a user starts a new turn before the previous analysis resolves, the
// second request waits its turn instead of interleaving or being dropped.
type Pipeline struct {
	transcriber Transcriber
	analyzer    Analyzer
	history     HistoryStore
	log         *logrus.Logger

	mu      sync.Mutex
	cfg     Config
	pending []string

	queueOnce sync.Once
	queue     chan analysisJob
	closeOnce sync.Once
	closed    chan struct{}
}

func NewPipeline(cfg Config, transcriber Transcriber, analyzer Analyzer, history HistoryStore, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = NewQuietLogger()
	}
	return &Pipeline{
		transcriber: transcriber,
		analyzer:    analyzer,
		history:     history,
		log:         log,
		cfg:         cfg,
		queue:       make(chan analysisJob, 8),
		closed:      make(chan struct{}),
	}
}

// Config returns the current preference snapshot.
func (p *Pipeline) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// SetConfig replaces the preference snapshot. Only explicit user saves (or
// the config watcher relaying one) call this; the pipeline never mutates
// preferences itself.
func (p *Pipeline) SetConfig(cfg Config) {
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
}

// Ready reports whether the pipeline can be entered at all. Without a valid
// key the presentation layer stays in onboarding.
func (p *Pipeline) Ready() bool {
	return ValidAPIKey(p.Config().APIKey)
}

// AddTranscript accumulates a transcript fragment for the current analysis
// cycle. Fragments are space-joined when the cycle runs.
func (p *Pipeline) AddTranscript(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	p.mu.Lock()
	p.pending = append(p.pending, text)
	p.mu.Unlock()
}

func (p *Pipeline) takeTranscript(latest string) string {
	p.mu.Lock()
	parts := p.pending
	p.pending = nil
	p.mu.Unlock()
	if latest = strings.TrimSpace(latest); latest != "" {
		parts = append(parts, latest)
	}
	return strings.Join(parts, " ")
}

func (p *Pipeline) worker() {
	for {
		select {
		case job := <-p.queue:
			result, err := p.analyzer.Analyze(job.ctx, job.req)
			job.reply <- analysisOutcome{result: result, err: err}
		case <-p.closed:
			return
		}
	}
}

// Analyze routes one request through the serialized queue.
func (p *Pipeline) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	p.queueOnce.Do(func() { go p.worker() })

	job := analysisJob{ctx: ctx, req: req, reply: make(chan analysisOutcome, 1)}
	select {
	case p.queue <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case out := <-job.reply:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RunTurn executes one full cycle: transcribe the blob, fold in any pending
// fragments, analyze, persist. Transcription always completes before the
// analysis request is issued; there is no speculative ordering.
func (p *Pipeline) RunTurn(ctx context.Context, blob capture.Blob) (*TurnResult, error) {
	if !p.Ready() {
		return nil, ErrMissingCredential
	}

	text, err := p.transcriber.Transcribe(ctx, blob)
	if err != nil {
		return nil, err
	}
	transcript := p.takeTranscript(text)

	cfg := p.Config()
	result, err := p.Analyze(ctx, AnalyzeRequest{
		Text:     transcript,
		Level:    cfg.Level,
		Roleplay: cfg.Roleplay,
	})
	if err != nil {
		return nil, err
	}

	entry := p.record(transcript, result, cfg)
	return &TurnResult{Transcript: transcript, Analysis: result, Entry: entry}, nil
}

// record persists one completed turn. Storage failure is logged and degraded,
// never fatal: the user still sees their feedback.
func (p *Pipeline) record(transcript string, result *AnalysisResult, cfg Config) *HistoryEntry {
	now := time.Now().UTC()
	entry := HistoryEntry{
		ID:         NewEntryID(now),
		Timestamp:  now,
		Transcript: transcript,
		Analysis:   *result,
		Level:      cfg.Level,
		Roleplay:   cfg.Roleplay,
	}
	if err := p.history.Append(entry); err != nil {
		p.log.WithError(err).Warn("history append failed")
		return nil
	}
	return &entry
}

// History exposes the store for the presentation layer.
func (p *Pipeline) History() HistoryStore { return p.history }

// Close stops the analysis worker.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() { close(p.closed) })
}
