package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/voicebook/assistant/domain"
	"github.com/voicebook/assistant/domain/entities"
	"github.com/voicebook/assistant/domain/repositories"
)

const (
	defaultGeminiModel       = "gemini-2.0-flash"
	defaultGeminiTemperature = 0.3
)

const bookingInstruction = `You are the voice booking assistant of a restaurant. Today is %s.
The user speaks one request at a time. Reply briefly and naturally, the reply is read aloud.
When the request names a customer, a party size, a date and a start time, create the booking:
set "action" to "booking_created" and fill "booking". Resolve relative dates against today,
use YYYY-MM-DD for dates and 24-hour HH:MM for times. Otherwise set "action" to "continue"
and ask for what is missing. Always put the words the user said in "transcription".`

// GeminiConfig configures the direct Gemini transport
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
}

// contentGenerator is the part of genai.Models the transport uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)
}

// GeminiTransport runs each exchange directly against Gemini instead of a
// remote assistant service. Every call is independent.
type GeminiTransport struct {
	models      contentGenerator
	model       string
	temperature float32
	now         func() time.Time
	logger      *zap.Logger
}

var (
	_ repositories.ConversationTransport = (*GeminiTransport)(nil)
	_ repositories.HealthChecker         = (*GeminiTransport)(nil)
)

// NewGeminiTransport creates a Gemini client for the configured model
func NewGeminiTransport(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiTransport, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGeminiTransport(client.Models, config, logger), nil
}

func newGeminiTransport(models contentGenerator, config GeminiConfig, logger *zap.Logger) *GeminiTransport {
	model := config.Model
	if model == "" {
		model = defaultGeminiModel
	}
	temperature := config.Temperature
	if temperature == 0 {
		temperature = defaultGeminiTemperature
	}

	logger.Info("Gemini transport configured", zap.String("model", model))
	return &GeminiTransport{
		models:      models,
		model:       model,
		temperature: temperature,
		now:         time.Now,
		logger:      logger,
	}
}

// ExchangeAudio sends the recording inline and lets the model transcribe it
func (g *GeminiTransport) ExchangeAudio(ctx context.Context, artifact entities.AudioArtifact) (*entities.ConversationResult, error) {
	if artifact.IsEmpty() {
		return nil, domain.ErrEmptyCapture
	}

	mimeType, _, _ := strings.Cut(artifact.MimeType(), ";")
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(artifact.Bytes(), strings.TrimSpace(mimeType)),
			genai.NewPartFromText("Transcribe this booking request and answer it."),
		}, genai.RoleUser),
	}

	g.logger.Info("Sending audio to Gemini",
		zap.Int("sizeBytes", artifact.SizeBytes()),
		zap.String("mimeType", mimeType))
	return g.generate(ctx, contents)
}

// ExchangeText sends a locally recognized transcript
func (g *GeminiTransport) ExchangeText(ctx context.Context, transcript string) (*entities.ConversationResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, domain.ErrEmptyTranscript
	}

	result, err := g.generate(ctx, []*genai.Content{genai.NewContentFromText(transcript, genai.RoleUser)})
	if err != nil {
		return nil, err
	}
	if result.Transcript == "" {
		result.Transcript = transcript
	}
	return result, nil
}

// CheckHealth verifies the configured model is reachable
func (g *GeminiTransport) CheckHealth(ctx context.Context) (*entities.HealthStatus, error) {
	if _, err := g.models.Get(ctx, g.model, nil); err != nil {
		return nil, toTransportError(err)
	}
	return &entities.HealthStatus{
		Status:       "ok",
		AIConfigured: true,
		Timestamp:    g.now().UTC().Format(time.RFC3339),
	}, nil
}

func (g *GeminiTransport) generate(ctx context.Context, contents []*genai.Content) (*entities.ConversationResult, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(fmt.Sprintf(bookingInstruction, g.now().Format("Monday, 2006-01-02")), genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    conversationSchema,
	}

	// single attempt, the caller decides about retries
	response, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		g.logger.Error("Gemini request failed", zap.Error(err))
		return nil, toTransportError(err)
	}

	text := responseText(response)
	if text == "" {
		return nil, &domain.TransportError{Status: 200, Body: "empty response from model"}
	}

	var resp domain.ConversationResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, &domain.TransportError{Status: 200, Body: fmt.Sprintf("invalid response body: %v", err), Err: err}
	}
	return resp.Result(), nil
}

func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}
	var text strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	return text.String()
}

func toTransportError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &domain.TransportError{Status: apiErr.Code, Body: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &domain.TransportError{Status: apiErrPtr.Code, Body: apiErrPtr.Message, Err: err}
	}
	return &domain.TransportError{Body: err.Error(), Err: err}
}

var conversationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"transcription": {Type: genai.TypeString},
		"aiResponse":    {Type: genai.TypeString},
		"action": {
			Type: genai.TypeString,
			Enum: []string{"continue", domain.ActionBookingCreated},
		},
		"booking": {
			Type:     genai.TypeObject,
			Nullable: genai.Ptr(true),
			Properties: map[string]*genai.Schema{
				"customer_name": {Type: genai.TypeString},
				"phone_number":  {Type: genai.TypeString},
				"party_size":    {Type: genai.TypeInteger},
				"date":          {Type: genai.TypeString},
				"start_time":    {Type: genai.TypeString},
				"end_time":      {Type: genai.TypeString},
				"notes":         {Type: genai.TypeString},
			},
			Required: []string{"customer_name", "party_size"},
		},
	},
	Required: []string{"transcription", "aiResponse", "action"},
}
