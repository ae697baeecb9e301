// Package server exposes the pipeline over a local HTTP surface so browser
// or remote frontends can use the same analysis and transcription clients
// without holding the API key themselves.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"speakcoach/internal/app"
	"speakcoach/internal/capture"
)

// Request/response bodies mirror the JSON the frontend sends and expects.
type analyzeRequest struct {
	Text           string `json:"text"`
	Level          string `json:"level"`
	Roleplay       string `json:"roleplay"`
	IsConversation bool   `json:"isConversation"`
}

type transcribeResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type levelFrame struct {
	Level float64 `json:"level"`
}

// Server is the proxy surface. It is stateless: every request carries its own
// key (x-api-key header) or falls back to the configured one, and the clients
// are built per request. The level meter, when present, feeds /api/levels.
type Server struct {
	// mu guards cfg. The config watcher swaps it from its own goroutine
	// while handlers read it.
	mu  sync.RWMutex
	cfg app.Config

	log   *logrus.Logger
	meter *capture.Meter

	// Client constructors, replaceable in tests.
	newAnalyzer    func(apiKey string) app.Analyzer
	newTranscriber func(apiKey string) app.Transcriber

	upgrader websocket.Upgrader
}

func New(cfg app.Config, meter *capture.Meter, log *logrus.Logger) *Server {
	if log == nil {
		log = app.NewQuietLogger()
	}
	s := &Server{
		cfg:   cfg,
		log:   log,
		meter: meter,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.newAnalyzer = func(apiKey string) app.Analyzer {
		return app.NewGroqAnalyzer(apiKey, s.config(), log)
	}
	s.newTranscriber = func(apiKey string) app.Transcriber {
		return app.NewGroqTranscriber(apiKey, s.config(), log)
	}
	return s
}

// SetConfig swaps the preference snapshot, used by the config watcher.
func (s *Server) SetConfig(cfg app.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Server) config() app.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Handler returns the routed mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/transcribe", s.handleTranscribe)
	mux.HandleFunc("/api/levels", s.handleLevels)
	return mux
}

// ListenAndServe runs the proxy until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.WithField("addr", addr).Info("proxy listening")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// requestKey resolves the credential for one request: the x-api-key header
// wins, the server's configured key is the fallback.
func (s *Server) requestKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("x-api-key")); key != "" {
		return key
	}
	return s.config().APIKey
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusForError maps pipeline errors onto the proxy's status contract.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrInputTooShort):
		return http.StatusBadRequest, "Text is required"
	case errors.Is(err, app.ErrEmptyAudio):
		return http.StatusBadRequest, "No audio data provided"
	case errors.Is(err, app.ErrMissingCredential):
		return http.StatusUnauthorized, "API key not configured"
	case errors.Is(err, app.ErrCredentialRejected):
		return http.StatusUnauthorized, "Invalid API key"
	case errors.Is(err, app.ErrMalformedResponse):
		return http.StatusInternalServerError, "Invalid response from analysis service"
	default:
		var ue *app.UpstreamError
		if errors.As(err, &ue) {
			return http.StatusInternalServerError, ue.Message
		}
		return http.StatusInternalServerError, "Internal error"
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	key := s.requestKey(r)
	if strings.TrimSpace(key) == "" {
		writeError(w, http.StatusUnauthorized, "API key not configured")
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(strings.TrimSpace(req.Text)) < 2 {
		writeError(w, http.StatusBadRequest, "Text is required")
		return
	}

	result, err := s.newAnalyzer(key).Analyze(r.Context(), app.AnalyzeRequest{
		Text:           req.Text,
		Level:          req.Level,
		Roleplay:       req.Roleplay,
		Conversational: req.IsConversation,
	})
	if err != nil {
		status, msg := statusForError(err)
		s.log.WithFields(logrus.Fields{
			"status": status,
			"error":  app.RedactSecrets(err.Error(), key),
		}).Warn("analyze request failed")
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	key := s.requestKey(r)
	if strings.TrimSpace(key) == "" {
		writeError(w, http.StatusUnauthorized, "API key not configured")
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read audio body")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "No audio data provided")
		return
	}
	mime := r.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "audio/") {
		mime = "audio/webm"
	}

	text, err := s.newTranscriber(key).Transcribe(r.Context(), capture.Blob{Data: data, MIME: mime})
	if err != nil {
		status, msg := statusForError(err)
		s.log.WithFields(logrus.Fields{
			"status": status,
			"error":  app.RedactSecrets(err.Error(), key),
		}).Warn("transcribe request failed")
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{Text: text})
}

// handleLevels streams live capture amplitude frames. One subscriber channel
// per connection; the feed closes when the meter resets at the end of a turn,
// and a stalled client is dropped by the write deadline.
func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.meter == nil {
		writeError(w, http.StatusNotFound, "No live capture on this server")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	levels := s.meter.Subscribe()
	for {
		select {
		case level, ok := <-levels:
			if !ok {
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
			if err := conn.WriteJSON(levelFrame{Level: level}); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
