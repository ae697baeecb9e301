// Package capture records audio from a pluggable source into a single
// immutable blob for one speaking turn.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// State is the lifecycle of one Recorder.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateError      State = "error"
)

var (
	// ErrAlreadyRecording is returned by Start while a recording is active.
	ErrAlreadyRecording = errors.New("recording already in progress")

	// ErrPermissionDenied means the audio source could not be acquired. Not
	// retried automatically; the user decides whether to try again.
	ErrPermissionDenied = errors.New("microphone access denied")

	// ErrNoAudio is returned by Stop when no fragments were gathered.
	ErrNoAudio = errors.New("no audio captured")
)

// Blob is one completed capture: the concatenated fragments plus the MIME
// type the transcription endpoint should be told about.
type Blob struct {
	Data []byte
	MIME string
}

const readChunkSize = 4096

// Recorder owns the audio source exclusively while recording. A single
// Recorder never runs two captures at once; fragments are appended by a
// reader goroutine as the source delivers them.
type Recorder struct {
	source Source
	meter  *Meter
	log    *logrus.Logger

	mu     sync.Mutex
	state  State
	chunks [][]byte
	stream io.ReadCloser
	doneCh chan struct{}
}

// NewRecorder wraps source. meter may be nil to disable level metering.
func NewRecorder(source Source, meter *Meter, log *logrus.Logger) *Recorder {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Recorder{
		source: source,
		meter:  meter,
		log:    log,
		state:  StateIdle,
	}
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start acquires the source and begins appending fragments. A second Start
// while recording returns ErrAlreadyRecording. Acquisition failure surfaces
// as ErrPermissionDenied and leaves the recorder in the error state; Reset
// returns it to idle.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateRecording {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	r.state = StateRecording
	r.chunks = nil
	r.mu.Unlock()

	stream, err := r.source.Open(ctx)
	if err != nil {
		r.mu.Lock()
		r.state = StateError
		r.mu.Unlock()
		r.log.WithError(err).Warn("audio source open failed")
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	done := make(chan struct{})
	r.mu.Lock()
	r.stream = stream
	r.doneCh = done
	r.mu.Unlock()

	go r.readLoop(stream, done)
	return nil
}

// readLoop appends fragments until the stream ends. Metering is best-effort
// and must never delay the append path.
func (r *Recorder) readLoop(stream io.Reader, done chan struct{}) {
	defer close(done)
	for {
		buf := make([]byte, readChunkSize)
		n, err := stream.Read(buf)
		if n > 0 {
			r.mu.Lock()
			r.chunks = append(r.chunks, buf[:n])
			r.mu.Unlock()
			if r.meter != nil {
				r.meter.Sample(buf[:n])
			}
		}
		if err != nil {
			if err != io.EOF {
				r.log.WithError(err).Debug("audio stream read ended")
			}
			return
		}
	}
}

// Stop releases the source, waits for the reader to flush, and concatenates
// the fragments into one Blob. Stopping with no audio gathered is a no-op
// turn: the recorder returns to idle and ErrNoAudio is reported so the caller
// issues no transcription request.
func (r *Recorder) Stop() (Blob, error) {
	r.mu.Lock()
	if r.state != StateRecording {
		state := r.state
		r.mu.Unlock()
		return Blob{}, fmt.Errorf("stop in state %q", state)
	}
	r.state = StateProcessing
	stream := r.stream
	done := r.doneCh
	r.stream = nil
	r.doneCh = nil
	r.mu.Unlock()

	// Closing the stream unblocks the reader; every exit path releases the
	// device.
	if stream != nil {
		_ = stream.Close()
	}
	if done != nil {
		<-done
	}
	if r.meter != nil {
		r.meter.Reset()
	}

	r.mu.Lock()
	chunks := r.chunks
	r.chunks = nil
	r.state = StateIdle
	r.mu.Unlock()

	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total == 0 {
		return Blob{}, ErrNoAudio
	}
	data := make([]byte, 0, total)
	for _, c := range chunks {
		data = append(data, c...)
	}
	return Blob{Data: data, MIME: r.source.MIMEType()}, nil
}

// Fail moves the recorder into the error state after a downstream failure,
// releasing the source if a recording was active.
func (r *Recorder) Fail() {
	r.mu.Lock()
	stream := r.stream
	done := r.doneCh
	r.stream = nil
	r.doneCh = nil
	r.state = StateError
	r.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
	if done != nil {
		<-done
	}
	if r.meter != nil {
		r.meter.Reset()
	}
}

// Reset returns the recorder to idle after an error has been surfaced.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateError || r.state == StateProcessing {
		r.state = StateIdle
		r.chunks = nil
	}
}
