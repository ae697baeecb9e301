package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"speakcoach/internal/capture"
)

// Transcriber converts one captured audio blob into plain text. The shipped
// implementation is the cloud client; the deprecated on-device worker hides
// behind the same interface.
type Transcriber interface {
	Transcribe(ctx context.Context, blob capture.Blob) (string, error)
}

// GroqTranscriber posts audio to the Groq speech-to-text endpoint. One
// request per turn, no streaming partials and no automatic retry: the user
// re-records on failure.
type GroqTranscriber struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
	Log     *logrus.Logger
}

func NewGroqTranscriber(apiKey string, cfg Config, log *logrus.Logger) *GroqTranscriber {
	if log == nil {
		log = NewQuietLogger()
	}
	model := cfg.TranscribeModel
	if model == "" {
		model = DefaultTranscribeModel
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &GroqTranscriber{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: strings.TrimRight(base, "/"),
		HTTP:    &http.Client{Timeout: cfg.RequestTimeout()},
		Log:     log,
	}
}

// recordingFilename derives the upload filename from the blob's MIME type,
// e.g. audio/webm -> recording.webm.
func recordingFilename(mime string) string {
	ext := "webm"
	if i := strings.Index(mime, "/"); i >= 0 && i+1 < len(mime) {
		ext = mime[i+1:]
		if j := strings.Index(ext, ";"); j >= 0 {
			ext = ext[:j]
		}
	}
	return "recording." + ext
}

func (t *GroqTranscriber) Transcribe(ctx context.Context, blob capture.Blob) (string, error) {
	if strings.TrimSpace(t.APIKey) == "" {
		return "", ErrMissingCredential
	}
	if len(blob.Data) == 0 {
		return "", ErrEmptyAudio
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("model", t.Model); err != nil {
		return "", fmt.Errorf("multipart model field: %w", err)
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename=%q`, recordingFilename(blob.MIME)))
	header.Set("Content-Type", blob.MIME)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("multipart file part: %w", err)
	}
	if _, err := part.Write(blob.Data); err != nil {
		return "", fmt.Errorf("multipart audio data: %w", err)
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("multipart response_format field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("multipart close: %w", err)
	}

	url := t.BaseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := t.HTTP.Do(req)
	if err != nil {
		return "", &UpstreamError{Status: 0, Message: RedactSecrets(err.Error(), t.APIKey)}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UpstreamError{Status: resp.StatusCode, Message: "read response: " + err.Error()}
	}

	t.Log.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"bytes":   len(blob.Data),
		"latency": time.Since(start).Milliseconds(),
	}).Debug("transcription request finished")

	if resp.StatusCode == http.StatusUnauthorized {
		return "", ErrCredentialRejected
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UpstreamError{
			Status:  resp.StatusCode,
			Message: RedactSecrets(providerMessage(payload), t.APIKey),
		}
	}

	var parsed struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil || parsed.Text == nil {
		return "", fmt.Errorf("%w: missing text field", ErrMalformedResponse)
	}
	return *parsed.Text, nil
}

// providerMessage digs the human-readable message out of an error body,
// falling back to a truncated copy of the raw payload.
func providerMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	var flat struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &flat); err == nil && flat.Error != "" {
		return flat.Error
	}
	return truncate(body, 200)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
