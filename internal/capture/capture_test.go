package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"
)

type failingSource struct{}

func (failingSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return nil, fmt.Errorf("device busy")
}
func (failingSource) MIMEType() string { return "audio/webm" }

// blockingSource stays open until closed, simulating a live device.
type blockingSource struct {
	data []byte
}

func (s *blockingSource) MIMEType() string { return "audio/webm" }

func (s *blockingSource) Open(ctx context.Context) (io.ReadCloser, error) {
	r, w := io.Pipe()
	go func() {
		_, _ = w.Write(s.data)
		// Keep the pipe open; it only ends when the reader closes.
	}()
	return &pipeStream{r: r, w: w}, nil
}

type pipeStream struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p *pipeStream) Read(b []byte) (int, error) { return p.r.Read(b) }
func (p *pipeStream) Close() error {
	_ = p.w.Close()
	return p.r.Close()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestRecorderStopProducesSingleBlob(t *testing.T) {
	payload := bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04}, 3000)
	rec := NewRecorder(&blockingSource{data: payload}, nil, nil)

	if got := rec.State(); got != StateIdle {
		t.Fatalf("initial state = %q, want idle", got)
	}
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := rec.State(); got != StateRecording {
		t.Fatalf("state after start = %q, want recording", got)
	}

	waitFor(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		n := 0
		for _, c := range rec.chunks {
			n += len(c)
		}
		return n == len(payload)
	})

	blob, err := rec.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !bytes.Equal(blob.Data, payload) {
		t.Fatalf("blob data mismatch: got %d bytes, want %d", len(blob.Data), len(payload))
	}
	if blob.MIME != "audio/webm" {
		t.Fatalf("blob mime = %q, want audio/webm", blob.MIME)
	}
	if got := rec.State(); got != StateIdle {
		t.Fatalf("state after stop = %q, want idle", got)
	}
}

func TestRecorderSecondStartRejected(t *testing.T) {
	rec := NewRecorder(&blockingSource{}, nil, nil)
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := rec.Start(context.Background()); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("second start err = %v, want ErrAlreadyRecording", err)
	}
	if _, err := rec.Stop(); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("stop err = %v, want ErrNoAudio", err)
	}
}

func TestRecorderPermissionDenied(t *testing.T) {
	rec := NewRecorder(failingSource{}, nil, nil)
	err := rec.Start(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("start err = %v, want ErrPermissionDenied", err)
	}
	if got := rec.State(); got != StateError {
		t.Fatalf("state = %q, want error", got)
	}
	rec.Reset()
	if got := rec.State(); got != StateIdle {
		t.Fatalf("state after reset = %q, want idle", got)
	}
}

func TestRecorderStopWithoutAudioIsNoOp(t *testing.T) {
	rec := NewRecorder(&blockingSource{}, nil, nil)
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := rec.Stop(); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("stop err = %v, want ErrNoAudio", err)
	}
	if got := rec.State(); got != StateIdle {
		t.Fatalf("state = %q, want idle", got)
	}
}

func TestMeterSamplePublishesLevels(t *testing.T) {
	m := NewMeter()

	// Full-scale square wave: RMS should be close to 1.0.
	chunk := make([]byte, 64)
	for i := 0; i < len(chunk); i += 2 {
		binary.LittleEndian.PutUint16(chunk[i:], uint16(32767))
	}
	m.Sample(chunk)

	select {
	case level := <-m.Levels():
		if level < 0.9 || level > 1.0 {
			t.Fatalf("level = %f, want near 1.0", level)
		}
	default:
		t.Fatalf("no level published")
	}

	// Silence.
	m.Sample(make([]byte, 64))
	if level := <-m.Levels(); level != 0 {
		t.Fatalf("silence level = %f, want 0", level)
	}
}

func TestMeterResetReleasesPrimaryReader(t *testing.T) {
	m := NewMeter()

	// A reader blocked on an empty feed must see the close when the turn
	// ends, instead of hanging around to swallow the next turn's samples.
	feed := m.Levels()
	released := make(chan bool, 1)
	go func() {
		_, ok := <-feed
		released <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	m.Reset()

	select {
	case ok := <-released:
		if ok {
			t.Fatalf("reader got a sample, want closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("reader still blocked after reset")
	}

	// The next turn gets a fresh feed.
	m.Sample([]byte{0xFF, 0x7F})
	select {
	case level := <-m.Levels():
		if level < 0.9 {
			t.Fatalf("level = %f, want near 1.0", level)
		}
	default:
		t.Fatalf("no sample on the fresh feed")
	}
}

func TestMeterSubscribeClosedOnReset(t *testing.T) {
	m := NewMeter()
	sub := m.Subscribe()
	m.Sample([]byte{0xFF, 0x7F})
	if _, ok := <-sub; !ok {
		t.Fatalf("subscriber channel closed early")
	}
	m.Reset()
	if _, ok := <-sub; ok {
		t.Fatalf("subscriber channel still open after reset")
	}
}
