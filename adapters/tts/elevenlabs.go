package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voicebook/assistant/domain/entities"
	"github.com/voicebook/assistant/domain/repositories"
)

const (
	defaultAPIBaseURL   = "https://api.elevenlabs.io/v1"
	defaultVoiceID      = "21m00Tcm4TlvDq8ikWAM"   // Rachel voice
	defaultChunkSize    = 1024                     // Size of audio chunks handed to the player
	defaultOutputFormat = "pcm_24000"              // Raw PCM so the player can start immediately
	defaultModelID      = "eleven_multilingual_v2" // Default model ID
	defaultStability    = 0.5                      // Default voice stability
	defaultClarity      = 0.75                     // Default voice clarity/similarity_boost
)

// ElevenLabsConfig holds configuration for the ElevenLabs voice engine.
// Only APIKey is required; everything else falls back to the defaults above.
type ElevenLabsConfig struct {
	APIKey       string
	APIBaseURL   string
	VoiceID      string
	ModelID      string
	OutputFormat string
	ChunkSize    int
	Stability    float64
	Clarity      float64
}

// ElevenLabsEngine speaks utterances with the ElevenLabs streaming API and
// plays them through a local AudioPlayer
type ElevenLabsEngine struct {
	apiKey       string
	apiBaseURL   string
	voiceID      string
	modelID      string
	outputFormat string
	chunkSize    int
	stability    float64
	clarity      float64

	player     AudioPlayer
	httpClient *http.Client
	logger     *zap.Logger
}

// Ensure ElevenLabsEngine implements the VoiceEngine interface
var _ repositories.VoiceEngine = (*ElevenLabsEngine)(nil)

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
	Speed           float64 `json:"speed,omitempty"`
}

type elevenLabsRequest struct {
	Text                   string                  `json:"text"`
	ModelID                string                  `json:"model_id"`
	LanguageCode           string                  `json:"language_code,omitempty"`
	VoiceSettings          elevenLabsVoiceSettings `json:"voice_settings"`
	ApplyTextNormalization string                  `json:"apply_text_normalization,omitempty"`
}

type elevenLabsVoice struct {
	VoiceID           string            `json:"voice_id"`
	Name              string            `json:"name"`
	Category          string            `json:"category"`
	Labels            map[string]string `json:"labels"`
	VerifiedLanguages []struct {
		Language string `json:"language"`
		Locale   string `json:"locale"`
	} `json:"verified_languages"`
}

// ValidateElevenLabsConfig validates the ElevenLabsConfig
func ValidateElevenLabsConfig(config ElevenLabsConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("eleven labs API key is required")
	}
	if config.Stability < 0 || config.Stability > 1 {
		return fmt.Errorf("stability must be between 0 and 1, got %f", config.Stability)
	}
	if config.Clarity < 0 || config.Clarity > 1 {
		return fmt.Errorf("clarity must be between 0 and 1, got %f", config.Clarity)
	}
	if config.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	return nil
}

// NewElevenLabsEngine creates a new ElevenLabs voice engine
func NewElevenLabsEngine(config ElevenLabsConfig, player AudioPlayer, logger *zap.Logger) (*ElevenLabsEngine, error) {
	if err := ValidateElevenLabsConfig(config); err != nil {
		return nil, err
	}
	if player == nil {
		return nil, fmt.Errorf("audio player is required")
	}

	engine := &ElevenLabsEngine{
		apiKey:       config.APIKey,
		apiBaseURL:   strings.TrimRight(config.APIBaseURL, "/"),
		voiceID:      config.VoiceID,
		modelID:      config.ModelID,
		outputFormat: config.OutputFormat,
		chunkSize:    config.ChunkSize,
		stability:    config.Stability,
		clarity:      config.Clarity,
		player:       player,
		// no client timeout, long replies stream for a while
		httpClient: &http.Client{},
		logger:     logger,
	}

	if engine.apiBaseURL == "" {
		engine.apiBaseURL = defaultAPIBaseURL
	}
	if engine.voiceID == "" {
		engine.voiceID = defaultVoiceID
	}
	if engine.modelID == "" {
		engine.modelID = defaultModelID
	}
	if engine.outputFormat == "" {
		engine.outputFormat = defaultOutputFormat
	}
	if engine.chunkSize == 0 {
		engine.chunkSize = defaultChunkSize
	}
	if engine.stability == 0 {
		engine.stability = defaultStability
	}
	if engine.clarity == 0 {
		engine.clarity = defaultClarity
	}

	logger.Info("ElevenLabs voice engine configured",
		zap.String("voiceID", engine.voiceID),
		zap.String("modelID", engine.modelID),
		zap.String("outputFormat", engine.outputFormat))
	return engine, nil
}

// Voices lists the voices available to the account
func (e *ElevenLabsEngine) Voices(ctx context.Context) ([]entities.Voice, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, e.apiBaseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned error %d: %s", resp.StatusCode, string(errorBody))
	}

	var voicesResponse struct {
		Voices []elevenLabsVoice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&voicesResponse); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	voices := make([]entities.Voice, 0, len(voicesResponse.Voices))
	for _, v := range voicesResponse.Voices {
		voices = append(voices, entities.Voice{
			ID:      v.VoiceID,
			Name:    v.Name,
			Locale:  v.locale(),
			Default: v.VoiceID == e.voiceID,
		})
	}

	e.logger.Debug("Retrieved available voices", zap.Int("count", len(voices)))
	return voices, nil
}

func (v elevenLabsVoice) locale() string {
	for _, lang := range v.VerifiedLanguages {
		if lang.Locale != "" {
			return lang.Locale
		}
		if lang.Language != "" {
			return lang.Language
		}
	}
	if lang := v.Labels["language"]; lang != "" {
		return lang
	}
	// premade voices only carry an accent label and speak English
	if v.Labels["accent"] != "" {
		return "en"
	}
	return ""
}

// Speak streams synthesized speech into the player and blocks until the
// player finished
func (e *ElevenLabsEngine) Speak(ctx context.Context, utterance entities.Utterance) error {
	if strings.TrimSpace(utterance.Text) == "" {
		return fmt.Errorf("text cannot be empty")
	}

	voiceID := e.voiceID
	if utterance.Voice != nil && utterance.Voice.ID != "" {
		voiceID = utterance.Voice.ID
	}

	request := elevenLabsRequest{
		Text:                   utterance.Text,
		ModelID:                e.modelID,
		ApplyTextNormalization: "auto",
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       e.stability,
			SimilarityBoost: e.clarity,
			UseSpeakerBoost: true,
			Speed:           clampSpeed(utterance.Rate),
		},
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s&enable_logging=false",
		e.apiBaseURL, voiceID, e.outputFormat)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	acceptHeader := "audio/mpeg"
	if strings.HasPrefix(e.outputFormat, "pcm") {
		acceptHeader = "audio/pcm"
	}
	httpReq.Header.Set("Accept", acceptHeader)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", e.apiKey)

	e.logger.Info("Converting text to speech",
		zap.Int("chars", len(utterance.Text)),
		zap.String("voiceID", voiceID),
		zap.Float64("rate", utterance.Rate))

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("eleven labs API returned error %d: %s", resp.StatusCode, string(errorBody))
	}

	audio := io.Reader(resp.Body)
	if strings.HasPrefix(e.outputFormat, "pcm") {
		audio = NewVolumeReader(resp.Body, utterance.Volume)
	}

	if err := e.player.Play(ctx, e.outputFormat, chunked(audio, e.chunkSize)); err != nil {
		return fmt.Errorf("failed to play audio: %w", err)
	}
	return nil
}

// ElevenLabs accepts speeds between 0.7 and 1.2
func clampSpeed(rate float64) float64 {
	switch {
	case rate == 0:
		return 1.0
	case rate < 0.7:
		return 0.7
	case rate > 1.2:
		return 1.2
	default:
		return rate
	}
}

// chunked limits each Read to size bytes so the player sees audio early
func chunked(r io.Reader, size int) io.Reader {
	return &chunkReader{r: r, size: size}
}

type chunkReader struct {
	r    io.Reader
	size int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(p) > c.size {
		p = p[:c.size]
	}
	return c.r.Read(p)
}
