package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
)

// Source yields a stream of encoded audio bytes. Exactly one stream may be
// open per Recorder at a time; closing the stream releases the device.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	MIMEType() string
}

// CommandSource captures microphone audio by running an external encoder
// (ffmpeg, arecord, sox) that writes encoded audio to stdout. The process is
// killed as a group when the stream closes so no recording pipeline outlives
// a turn.
type CommandSource struct {
	Argv []string
	MIME string
}

// NewCommandSource builds a source from an argv slice. mime defaults to
// audio/webm, the container the transcription endpoint is told about.
func NewCommandSource(argv []string, mime string) *CommandSource {
	if mime == "" {
		mime = "audio/webm"
	}
	return &CommandSource{Argv: argv, MIME: mime}
}

func (s *CommandSource) MIMEType() string { return s.MIME }

func (s *CommandSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if len(s.Argv) == 0 {
		return nil, fmt.Errorf("no capture command configured")
	}
	cmd := exec.CommandContext(ctx, s.Argv[0], s.Argv[1:]...)
	// Own process group so Stop can kill the whole encoder tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stderr = io.Discard

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start capture command: %w", err)
	}
	return &commandStream{cmd: cmd, out: stdout}, nil
}

type commandStream struct {
	cmd *exec.Cmd
	out io.ReadCloser
}

func (c *commandStream) Read(p []byte) (int, error) { return c.out.Read(p) }

func (c *commandStream) Close() error {
	if c.cmd.Process != nil {
		_ = syscall.Kill(-c.cmd.Process.Pid, syscall.SIGTERM)
	}
	err := c.out.Close()
	_ = c.cmd.Wait()
	return err
}

// FileSource replays a pre-recorded audio file, used by the one-shot
// transcribe command and by tests.
type FileSource struct {
	Path string
	MIME string
}

func (s *FileSource) MIMEType() string {
	if s.MIME == "" {
		return "audio/webm"
	}
	return s.MIME
}

func (s *FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return os.Open(s.Path)
}

// ReaderSource wraps an in-memory byte stream. Each Open returns a fresh
// reader over the same bytes.
type ReaderSource struct {
	Data []byte
	MIME string
}

func (s *ReaderSource) MIMEType() string {
	if s.MIME == "" {
		return "audio/webm"
	}
	return s.MIME
}

func (s *ReaderSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.Data)), nil
}
