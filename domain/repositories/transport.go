package repositories

import (
	"context"

	"github.com/voicebook/assistant/domain/entities"
)

// ConversationTransport exchanges one user turn with the remote assistant.
// Each call is a single round-trip without retries; failures are returned
// as *domain.TransportError.
type ConversationTransport interface {
	ExchangeAudio(ctx context.Context, artifact entities.AudioArtifact) (*entities.ConversationResult, error)
	ExchangeText(ctx context.Context, transcript string) (*entities.ConversationResult, error)
}

// HealthChecker asks the remote assistant for liveness
type HealthChecker interface {
	CheckHealth(ctx context.Context) (*entities.HealthStatus, error)
}
