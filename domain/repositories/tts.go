package repositories

import (
	"context"

	"github.com/voicebook/assistant/domain/entities"
)

// VoiceEngine renders text as audible speech on the local machine
type VoiceEngine interface {
	// Voices lists the voices currently offered by the engine
	Voices(ctx context.Context) ([]entities.Voice, error)
	// Speak blocks until the utterance finished playing
	Speak(ctx context.Context, utterance entities.Utterance) error
}
