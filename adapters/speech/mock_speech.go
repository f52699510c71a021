package speech

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/voicebook/assistant/domain/entities"
	"github.com/voicebook/assistant/domain/repositories"
)

// MockVoiceEngine logs utterances instead of playing them. It simulates
// speaking time so the conversation flow stays realistic.
type MockVoiceEngine struct {
	logger       *zap.Logger
	perCharacter time.Duration
}

var _ repositories.VoiceEngine = (*MockVoiceEngine)(nil)

// NewMockVoiceEngine creates a new mock voice engine
func NewMockVoiceEngine(perCharacter time.Duration, logger *zap.Logger) *MockVoiceEngine {
	return &MockVoiceEngine{
		logger:       logger,
		perCharacter: perCharacter,
	}
}

// Voices implements repositories.VoiceEngine
func (m *MockVoiceEngine) Voices(ctx context.Context) ([]entities.Voice, error) {
	return []entities.Voice{
		{ID: "mock-default", Name: "Mock", Locale: "en-US", Default: true},
		{ID: "mock-natural", Name: "Mock Natural", Locale: "en-US"},
	}, nil
}

// Speak implements repositories.VoiceEngine
func (m *MockVoiceEngine) Speak(ctx context.Context, utterance entities.Utterance) error {
	voice := "default"
	if utterance.Voice != nil {
		voice = utterance.Voice.Name
	}

	m.logger.Info("Speaking (mock)",
		zap.String("text", utterance.Text),
		zap.String("voice", voice),
		zap.Float64("rate", utterance.Rate))

	select {
	case <-time.After(time.Duration(len(utterance.Text)) * m.perCharacter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
