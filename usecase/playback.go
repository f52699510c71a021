package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/voicebook/assistant/domain"
	"github.com/voicebook/assistant/domain/entities"
	"github.com/voicebook/assistant/domain/repositories"
)

const (
	defaultSpeechRate   = 0.9
	defaultSpeechPitch  = 1.0
	defaultSpeechVolume = 0.8
)

// fidelityMarkers are name fragments engines use for their better voices
var fidelityMarkers = []string{"natural", "neural", "premium", "enhanced", "hd"}

// Playback speaks assistant replies. Playback is best effort: a missing
// engine or an engine failure never fails the caller.
type Playback struct {
	engine   repositories.VoiceEngine
	language string
	logger   *zap.Logger
}

// NewPlayback creates a playback component. A nil engine means the platform
// has no speech synthesis.
func NewPlayback(engine repositories.VoiceEngine, language string, logger *zap.Logger) *Playback {
	if language == "" {
		language = "en"
	}
	return &Playback{
		engine:   engine,
		language: language,
		logger:   logger,
	}
}

// Speak starts speaking text and returns a channel closed once playback
// completed or was abandoned.
func (p *Playback) Speak(ctx context.Context, text string) <-chan struct{} {
	done := make(chan struct{})

	if p.engine == nil {
		p.logger.Warn("Speech synthesis not supported", zap.Error(domain.ErrPlaybackDegraded))
		close(done)
		return done
	}
	if strings.TrimSpace(text) == "" {
		close(done)
		return done
	}

	go func() {
		defer close(done)

		voices, err := p.engine.Voices(ctx)
		if err != nil {
			p.logger.Warn("Failed to list voices, using engine default", zap.Error(err))
		}

		utterance := entities.Utterance{
			Text:   text,
			Rate:   defaultSpeechRate,
			Pitch:  defaultSpeechPitch,
			Volume: defaultSpeechVolume,
		}
		if voice, ok := SelectVoice(voices, p.language); ok {
			utterance.Voice = &voice
			p.logger.Debug("Using voice", zap.String("voice", voice.Name), zap.String("locale", voice.Locale))
		}

		p.logger.Info("Speaking response", zap.Int("chars", len(text)))
		if err := p.engine.Speak(ctx, utterance); err != nil {
			p.logger.Warn("Speech playback failed",
				zap.Error(fmt.Errorf("%w: %v", domain.ErrPlaybackDegraded, err)))
		}
	}()

	return done
}

// SelectVoice ranks voices by locale match and fidelity markers. It reports
// false when nothing ranks above the platform default.
func SelectVoice(voices []entities.Voice, language string) (entities.Voice, bool) {
	language = strings.ToLower(language)
	// "en-US" should also prefer any "en" voice
	base, _, _ := strings.Cut(language, "-")

	best := -1
	bestScore := 0
	for i, voice := range voices {
		score := 0
		locale := strings.ToLower(voice.Locale)
		switch {
		case language != "" && strings.HasPrefix(locale, language):
			score += 4
		case base != "" && strings.HasPrefix(locale, base):
			score += 2
		}
		if hasFidelityMarker(voice.Name) {
			score++
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if best < 0 {
		return entities.Voice{}, false
	}
	return voices[best], true
}

func hasFidelityMarker(name string) bool {
	name = strings.ToLower(name)
	for _, marker := range fidelityMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}
