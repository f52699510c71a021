package stt

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/voicebook/assistant/domain/repositories"
)

// GoogleSpeechToText transcribes finished recordings with Google Cloud
// Speech-to-Text
type GoogleSpeechToText struct {
	client *speech.Client
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates a recognizer using application default
// credentials
func NewGoogleSpeechToText(ctx context.Context, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	return &GoogleSpeechToText{
		client: client,
		logger: logger,
	}, nil
}

// TranscribeAudio sends the whole recording in one Recognize call
func (g *GoogleSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	if len(audioData) == 0 {
		return "", fmt.Errorf("no audio data received")
	}

	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return "", err
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:                   encoding,
		LanguageCode:               config.Language,
		EnableAutomaticPunctuation: true,
	}
	// webm and ogg carry their own sample rate in the header
	if config.SampleRate > 0 && encoding != speechpb.RecognitionConfig_WEBM_OPUS && encoding != speechpb.RecognitionConfig_OGG_OPUS {
		recognitionConfig.SampleRateHertz = int32(config.SampleRate)
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audioData},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to recognize speech: %w", err)
	}

	var parts []string
	for _, result := range resp.GetResults() {
		if alternatives := result.GetAlternatives(); len(alternatives) > 0 {
			parts = append(parts, strings.TrimSpace(alternatives[0].GetTranscript()))
		}
	}

	transcript := strings.TrimSpace(strings.Join(parts, " "))
	if transcript == "" {
		return "", fmt.Errorf("no speech detected in audio")
	}

	g.logger.Debug("Speech recognized",
		zap.Int("audioSize", len(audioData)),
		zap.String("transcript", transcript))
	return transcript, nil
}

// Close releases the underlying gRPC connection
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

// getAudioEncoding maps a MIME type or encoding name to the Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	mime, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(encoding)), ";")

	switch mime {
	case "audio/webm", "webm_opus":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	case "audio/ogg", "ogg_opus":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "audio/wav", "audio/x-wav", "audio/l16", "wav", "linear16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "audio/flac", "flac":
		return speechpb.RecognitionConfig_FLAC, nil
	case "audio/basic", "mulaw":
		return speechpb.RecognitionConfig_MULAW, nil
	case "audio/amr", "amr":
		return speechpb.RecognitionConfig_AMR, nil
	case "audio/amr-wb", "amr_wb":
		return speechpb.RecognitionConfig_AMR_WB, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported audio encoding: %s", encoding)
	}
}
