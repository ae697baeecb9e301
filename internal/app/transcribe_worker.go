package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"speakcoach/internal/capture"
)

// WorkerTranscriber is the deprecated on-device alternative to the cloud
// client. It keeps model inference in an isolated worker goroutine that owns
// the local whisper CLI; callers talk to it purely by message passing with a
// load/process protocol and never share memory with the worker.
//
// It exists behind the Transcriber interface so the rest of the pipeline
// cannot tell the two apart. The cloud path is the shipped default.
type WorkerTranscriber struct {
	binaryPath string
	modelPath  string

	once     sync.Once
	requests chan workerRequest
	loadErr  error
	loaded   chan struct{}
}

type workerRequest struct {
	audio []byte
	ext   string
	reply chan workerResult
}

type workerResult struct {
	text string
	err  error
}

func NewWorkerTranscriber(binaryPath, modelPath string) *WorkerTranscriber {
	return &WorkerTranscriber{
		binaryPath: binaryPath,
		modelPath:  modelPath,
		requests:   make(chan workerRequest),
		loaded:     make(chan struct{}),
	}
}

// load verifies the model assets once, mirroring the "load" message of the
// worker protocol: process requests are rejected until loading succeeded.
func (w *WorkerTranscriber) load() {
	defer close(w.loaded)
	if _, err := os.Stat(w.binaryPath); err != nil {
		w.loadErr = fmt.Errorf("worker binary not found at %q: %w", w.binaryPath, err)
		return
	}
	if w.modelPath != "" {
		if _, err := os.Stat(w.modelPath); err != nil {
			w.loadErr = fmt.Errorf("worker model not found at %q: %w", w.modelPath, err)
			return
		}
	}
	go w.loop()
}

func (w *WorkerTranscriber) loop() {
	for req := range w.requests {
		text, err := w.process(req.audio, req.ext)
		req.reply <- workerResult{text: text, err: err}
	}
}

// process runs one inference in the worker. The audio is spooled to a temp
// file because the CLI reads files, then the JSON output is parsed for its
// text field.
func (w *WorkerTranscriber) process(audio []byte, ext string) (string, error) {
	dir, err := os.MkdirTemp("", "speakcoach-worker-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "turn."+ext)
	if err := os.WriteFile(path, audio, 0o600); err != nil {
		return "", err
	}

	args := []string{"--output-format", "json", "--language", "en"}
	if w.modelPath != "" {
		args = append(args, "--model", w.modelPath)
	}
	args = append(args, path)

	var stdout bytes.Buffer
	cmd := exec.Command(w.binaryPath, args...)
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("worker inference failed: %w", err)
	}

	var out struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil || out.Text == nil {
		return "", fmt.Errorf("%w: worker output missing text", ErrMalformedResponse)
	}
	return *out.Text, nil
}

func (w *WorkerTranscriber) Transcribe(ctx context.Context, blob capture.Blob) (string, error) {
	if len(blob.Data) == 0 {
		return "", ErrEmptyAudio
	}
	w.once.Do(w.load)

	select {
	case <-w.loaded:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if w.loadErr != nil {
		return "", w.loadErr
	}

	ext := "webm"
	if name := recordingFilename(blob.MIME); name != "" {
		ext = filepath.Ext(name)
		ext = ext[1:]
	}

	req := workerRequest{audio: blob.Data, ext: ext, reply: make(chan workerResult, 1)}
	select {
	case w.requests <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// NewTranscriber picks the transcription path from config.
func NewTranscriber(cfg Config, log *logrus.Logger) (Transcriber, error) {
	switch cfg.Transcriber {
	case "", "cloud":
		return NewGroqTranscriber(cfg.APIKey, cfg, log), nil
	case "worker":
		if cfg.WorkerBinaryPath == "" {
			return nil, errors.New("worker transcriber requires worker_binary_path")
		}
		return NewWorkerTranscriber(cfg.WorkerBinaryPath, cfg.WorkerModelPath), nil
	default:
		return nil, fmt.Errorf("unknown transcriber %q", cfg.Transcriber)
	}
}
