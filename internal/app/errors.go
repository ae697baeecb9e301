package app

import (
	"errors"
	"fmt"
)

// Pipeline failures fall into a small fixed taxonomy. Every error returned by
// the transcription and analysis clients wraps one of these, so callers can
// branch with errors.Is without string matching.
var (
	// ErrMissingCredential means no API key is configured. Checked before any
	// network call; the presentation layer routes to onboarding.
	ErrMissingCredential = errors.New("missing api key")

	// ErrCredentialRejected means the provider returned 401 for the key.
	ErrCredentialRejected = errors.New("api key rejected")

	// ErrInputTooShort means the transcript is under the 2-character minimum.
	ErrInputTooShort = errors.New("text too short")

	// ErrMalformedResponse means the provider returned 2xx but the body does
	// not match the documented shape.
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrEmptyAudio means a transcription was requested with no audio bytes.
	ErrEmptyAudio = errors.New("empty audio blob")
)

// UpstreamError carries a non-2xx status from an external endpoint together
// with whatever message the provider put in the body.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream error: status %d", e.Status)
	}
	return fmt.Sprintf("upstream error: status %d: %s", e.Status, e.Message)
}

// IsUpstream reports whether err wraps an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
