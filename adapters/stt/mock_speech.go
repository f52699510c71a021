package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voicebook/assistant/domain/repositories"
)

// MockSpeechToText returns canned booking requests sized by the audio length
type MockSpeechToText struct {
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{
		logger: logger,
	}
}

// TranscribeAudio implements repositories.SpeechToText
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	s.logger.Info("Processing mock speech-to-text",
		zap.Int("audioSize", len(audioData)),
		zap.String("encoding", config.Encoding))

	switch {
	case len(audioData) == 0:
		return "", fmt.Errorf("no audio data received")
	case len(audioData) > 10000:
		return "I'd like a table for four tomorrow at seven, the name is Smith.", nil
	case len(audioData) > 5000:
		return "Do you have a table for two tonight?", nil
	default:
		return "Hello", nil
	}
}
