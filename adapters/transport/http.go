package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"go.uber.org/zap"

	"github.com/voicebook/assistant/domain"
	"github.com/voicebook/assistant/domain/entities"
	"github.com/voicebook/assistant/domain/repositories"
	"github.com/voicebook/assistant/internal/auth"
)

const (
	conversationPath     = "/api/conversation"
	textConversationPath = "/api/text-conversation"
	healthPath           = "/health"

	audioField    = "audio"
	audioFilename = "recording.webm"
)

// HTTPTransport talks to the remote assistant service over HTTP
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	signer  *auth.Signer
	logger  *zap.Logger
}

var (
	_ repositories.ConversationTransport = (*HTTPTransport)(nil)
	_ repositories.HealthChecker         = (*HTTPTransport)(nil)
)

// NewHTTPTransport creates a transport for the service at baseURL. The HTTP
// client has no timeout; exchanges are bounded by the caller's context only.
func NewHTTPTransport(baseURL string, signer *auth.Signer, logger *zap.Logger) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		signer:  signer,
		logger:  logger,
	}
}

// ExchangeAudio uploads the recording as multipart form data
func (t *HTTPTransport) ExchangeAudio(ctx context.Context, artifact entities.AudioArtifact) (*entities.ConversationResult, error) {
	if artifact.IsEmpty() {
		return nil, domain.ErrEmptyCapture
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, audioField, audioFilename))
	header.Set("Content-Type", artifact.MimeType())
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := part.Write(artifact.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to write audio part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	t.logger.Info("Sending audio to assistant",
		zap.Int("sizeBytes", artifact.SizeBytes()),
		zap.String("mimeType", artifact.MimeType()))

	var resp domain.ConversationResponse
	if err := t.do(ctx, http.MethodPost, conversationPath, writer.FormDataContentType(), &body, &resp); err != nil {
		return nil, err
	}
	return resp.Result(), nil
}

// ExchangeText sends a transcript produced by a local recognizer
func (t *HTTPTransport) ExchangeText(ctx context.Context, transcript string) (*entities.ConversationResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, domain.ErrEmptyTranscript
	}

	payload, err := json.Marshal(domain.TextConversationRequest{Transcript: transcript})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	t.logger.Info("Sending transcript to assistant", zap.Int("chars", len(transcript)))

	var resp domain.ConversationResponse
	if err := t.do(ctx, http.MethodPost, textConversationPath, "application/json", bytes.NewReader(payload), &resp); err != nil {
		return nil, err
	}

	result := resp.Result()
	if result.Transcript == "" {
		result.Transcript = transcript
	}
	return result, nil
}

// CheckHealth implements repositories.HealthChecker
func (t *HTTPTransport) CheckHealth(ctx context.Context) (*entities.HealthStatus, error) {
	var resp domain.HealthResponse
	if err := t.do(ctx, http.MethodGet, healthPath, "", nil, &resp); err != nil {
		return nil, err
	}
	return &entities.HealthStatus{
		Status:       resp.Status,
		AIConfigured: resp.MistralConfigured,
		Timestamp:    resp.Timestamp,
	}, nil
}

func (t *HTTPTransport) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	if t.signer.Enabled() {
		token, err := t.signer.DeviceToken()
		if err != nil {
			return fmt.Errorf("failed to sign request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return &domain.TransportError{Body: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.TransportError{Status: resp.StatusCode, Body: err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		t.logger.Warn("Assistant service returned an error",
			zap.String("path", path),
			zap.Int("statusCode", resp.StatusCode))
		return &domain.TransportError{Status: resp.StatusCode, Body: string(raw)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.TransportError{
			Status: resp.StatusCode,
			Body:   fmt.Sprintf("invalid response body: %v", err),
			Err:    err,
		}
	}
	return nil
}
