package domain

import (
	"errors"
	"fmt"
)

// Capture errors
var (
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrDeviceUnavailable = errors.New("no audio input device available")
	ErrCaptureBusy       = errors.New("another capture session holds the microphone")
	ErrNotArmed          = errors.New("capture stream was not acquired by this recorder")
	ErrNotRecording      = errors.New("no recording in progress")
	ErrCaptureCancelled  = errors.New("capture cancelled")
)

// Exchange errors
var (
	ErrEmptyCapture    = errors.New("captured audio is empty")
	ErrEmptyTranscript = errors.New("transcript is empty")
)

// Playback errors. Never fatal to a conversation.
var ErrPlaybackDegraded = errors.New("speech playback degraded")

// Orchestration errors
var (
	ErrConversationInFlight = errors.New("a conversation is already in progress")
	ErrNotListening         = errors.New("not listening")
)

// TransportError is returned when the remote assistant service rejected the
// request or could not be reached. Status is 0 for network failures.
type TransportError struct {
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("assistant service unreachable: %s", e.Body)
	}
	return fmt.Sprintf("assistant service returned %d: %s", e.Status, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsCaptureError reports whether err originates from the capture layer.
func IsCaptureError(err error) bool {
	return errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrDeviceUnavailable) ||
		errors.Is(err, ErrCaptureBusy) ||
		errors.Is(err, ErrCaptureCancelled)
}
