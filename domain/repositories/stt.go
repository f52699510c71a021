package repositories

import "context"

// SpeechToText abstracts a local speech recognizer used instead of
// server-side transcription
type SpeechToText interface {
	// TranscribeAudio converts a finished recording to text
	TranscribeAudio(ctx context.Context, audioData []byte, config AudioConfig) (string, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}
