package app

import (
	"context"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

// NewCommandSpeaker returns a Speaker that voices text through the first
// available system TTS command. Speaking is best-effort: no engine, or a
// failed run, is logged and ignored. Returns nil when no engine is installed
// so callers can skip the hook entirely.
func NewCommandSpeaker(log *logrus.Logger) Speaker {
	if log == nil {
		log = NewQuietLogger()
	}

	type engine struct {
		bin  string
		args func(text, voiceID string) []string
	}
	engines := []engine{
		{bin: "say", args: func(text, voiceID string) []string {
			if voiceID != "" {
				return []string{"-v", voiceID, text}
			}
			return []string{text}
		}},
		{bin: "espeak-ng", args: func(text, voiceID string) []string {
			if voiceID != "" {
				return []string{"-v", voiceID, text}
			}
			return []string{text}
		}},
		{bin: "espeak", args: func(text, voiceID string) []string {
			return []string{text}
		}},
	}

	for _, e := range engines {
		path, err := exec.LookPath(e.bin)
		if err != nil {
			continue
		}
		bin, argsFor := path, e.args
		return func(text, voiceID string) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			cmd := exec.CommandContext(ctx, bin, argsFor(text, voiceID)...)
			if err := cmd.Run(); err != nil {
				log.WithError(err).Debug("tts playback failed")
			}
		}
	}
	return nil
}
