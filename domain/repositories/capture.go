package repositories

import "context"

// Microphone grants exclusive access to an audio input device.
// Open fails with an error wrapping domain.ErrPermissionDenied or
// domain.ErrDeviceUnavailable when the platform refuses or no device exists.
type Microphone interface {
	Open(ctx context.Context) (AudioStream, error)
}

// AudioStream is a live microphone stream owned by its caller until Release.
type AudioStream interface {
	// MimeType of the encoded fragments, e.g. "audio/webm;codecs=opus"
	MimeType() string

	// Fragments delivers encoded audio in capture order. The channel is
	// closed once Stop has flushed the encoder or Release was called.
	Fragments() <-chan []byte

	// Stop ends production and flushes any buffered audio
	Stop() error

	// Release stops every track. Safe to call more than once.
	Release() error

	// Active reports whether any track is still live
	Active() bool
}
