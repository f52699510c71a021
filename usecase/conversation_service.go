package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voicebook/assistant/domain"
	"github.com/voicebook/assistant/domain/entities"
	"github.com/voicebook/assistant/domain/repositories"
)

const (
	maxTranscriptDisplay = 80
	healthCheckTimeout   = 5 * time.Second
)

// Flight is one conversation attempt. Done is closed once the orchestrator
// is back to idle.
type Flight struct {
	ID string

	done    chan struct{}
	outcome entities.ConversationOutcome
}

func newFlight() *Flight {
	return &Flight{
		ID:   uuid.NewString(),
		done: make(chan struct{}),
	}
}

// Done is closed when the flight has ended
func (f *Flight) Done() <-chan struct{} {
	return f.done
}

// Outcome is valid once Done is closed
func (f *Flight) Outcome() entities.ConversationOutcome {
	<-f.done
	return f.outcome
}

// Wait blocks until the flight ended or ctx is done
func (f *Flight) Wait(ctx context.Context) (entities.ConversationOutcome, error) {
	select {
	case <-f.done:
		return f.outcome, nil
	case <-ctx.Done():
		return entities.ConversationOutcome{}, ctx.Err()
	}
}

// ConversationOptions tunes optional behavior of the orchestrator
type ConversationOptions struct {
	// Recognizer transcribes locally before falling back to server audio
	Recognizer       repositories.SpeechToText
	PreferRecognizer bool
	RecognizerConfig repositories.AudioConfig

	// ExchangeTimeout bounds one exchange. Zero leaves the exchange unbounded.
	ExchangeTimeout time.Duration

	// HealthCheckTimeout bounds the health check before recording. Zero
	// means five seconds.
	HealthCheckTimeout time.Duration
}

// ConversationStatus summarizes the orchestrator for status endpoints
type ConversationStatus struct {
	State     entities.ConversationState `json:"state"`
	Recording bool                       `json:"recording"`
	InFlight  bool                       `json:"in_flight"`
	FlightID  string                     `json:"flight_id,omitempty"`
}

// ConversationService orchestrates capture, exchange, playback and booking
// promotion. At most one conversation runs at a time.
type ConversationService struct {
	recorder  *Recorder
	transport repositories.ConversationTransport
	playback  *Playback
	bookings  *BookingService
	presenter repositories.Presenter
	opts      ConversationOptions
	logger    *zap.Logger

	inFlight atomic.Bool

	// control serializes Start/Stop/Toggle; it is never held across an exchange
	control sync.Mutex

	mu     sync.Mutex
	state  entities.ConversationState
	flight *Flight
}

// NewConversationService creates a new conversation orchestrator
func NewConversationService(
	recorder *Recorder,
	transport repositories.ConversationTransport,
	playback *Playback,
	bookings *BookingService,
	presenter repositories.Presenter,
	opts ConversationOptions,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		recorder:  recorder,
		transport: transport,
		playback:  playback,
		bookings:  bookings,
		presenter: presenter,
		opts:      opts,
		logger:    logger,
		state:     entities.ConversationStateIdle,
	}
}

// Toggle starts listening when idle and stops listening when a recording
// is in progress.
func (s *ConversationService) Toggle(ctx context.Context) (*Flight, error) {
	s.control.Lock()
	if s.State() == entities.ConversationStateListening {
		flight := s.currentFlight()
		err := s.stopLocked()
		s.control.Unlock()
		return flight, err
	}
	s.control.Unlock()

	return s.Start(ctx)
}

// Start acquires the microphone and begins listening. The rest of the
// conversation runs in the background; follow it through the returned Flight.
func (s *ConversationService) Start(ctx context.Context) (*Flight, error) {
	s.control.Lock()
	defer s.control.Unlock()

	if !s.acquire() {
		return nil, domain.ErrConversationInFlight
	}

	flight := newFlight()
	s.setFlight(flight)
	logger := s.logger.With(zap.String("flightID", flight.ID))

	// the flight outlives the request that started it
	runCtx := context.WithoutCancel(ctx)

	s.preflightHealth(runCtx, logger)

	stream, err := s.recorder.RequestAccess(runCtx)
	if err != nil {
		logger.Error("Microphone access failed", zap.Error(err))
		s.presenter.Notify("Voice conversation failed: "+err.Error(), entities.SeverityError)
		s.finish(flight, entities.ConversationOutcome{Kind: entities.OutcomeDeviceError, Err: err})
		return flight, err
	}

	pending, err := s.recorder.BeginRecording(stream)
	if err != nil {
		logger.Error("Failed to begin recording", zap.Error(err))
		s.presenter.Notify("Voice conversation failed: "+err.Error(), entities.SeverityError)
		s.finish(flight, entities.ConversationOutcome{Kind: entities.OutcomeDeviceError, Err: err})
		return flight, err
	}

	s.setState(entities.ConversationStateListening)
	s.presenter.SetCaptureIndicator(true)
	s.presenter.SetStatusText(entities.StatusSlotRecognized, "Recording... Speak your booking request")
	s.presenter.Notify("Recording started - speak your booking request", entities.SeverityInfo)
	logger.Info("Listening")

	go s.awaitCapture(runCtx, flight, pending, logger)
	return flight, nil
}

// Stop ends listening. The captured audio is always finalized and sent.
func (s *ConversationService) Stop() error {
	s.control.Lock()
	defer s.control.Unlock()
	return s.stopLocked()
}

func (s *ConversationService) stopLocked() error {
	if s.State() != entities.ConversationStateListening {
		return domain.ErrNotListening
	}

	s.setState(entities.ConversationStateAwaitingExchange)
	if err := s.recorder.EndRecording(); err != nil {
		return fmt.Errorf("failed to end recording: %w", err)
	}
	return nil
}

// ProcessText runs one conversation turn from a transcript produced by a
// local recognizer.
func (s *ConversationService) ProcessText(ctx context.Context, transcript string) (entities.ConversationOutcome, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return entities.ConversationOutcome{}, domain.ErrEmptyTranscript
	}

	if !s.acquire() {
		return entities.ConversationOutcome{}, domain.ErrConversationInFlight
	}

	flight := newFlight()
	s.setFlight(flight)
	logger := s.logger.With(zap.String("flightID", flight.ID))

	s.setState(entities.ConversationStateAwaitingExchange)
	s.presenter.SetStatusText(entities.StatusSlotRecognized, "You: "+TruncateTranscript(transcript))

	result, err := s.exchange(ctx, logger, "Having a conversation with the assistant...", func(ctx context.Context) (*entities.ConversationResult, error) {
		return s.transport.ExchangeText(ctx, transcript)
	})
	if err != nil {
		s.failExchange(flight, err, logger, false)
		return flight.outcome, err
	}
	if result.Transcript == "" {
		result.Transcript = transcript
	}

	s.deliver(ctx, flight, result, logger)
	return flight.outcome, nil
}

// Status reports the current orchestrator state
func (s *ConversationService) Status() ConversationStatus {
	status := ConversationStatus{
		State:     s.State(),
		Recording: s.recorder.IsRecording(),
		InFlight:  s.inFlight.Load(),
	}
	if flight := s.currentFlight(); flight != nil && status.InFlight {
		status.FlightID = flight.ID
	}
	return status
}

// State returns the orchestrator state
func (s *ConversationService) State() entities.ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close releases the microphone if a recording is still open
func (s *ConversationService) Close() {
	s.recorder.Cancel()
}

func (s *ConversationService) acquire() bool {
	if s.inFlight.CompareAndSwap(false, true) {
		return true
	}
	// rejections are expected user behavior, not application errors
	s.logger.Info("Conversation request rejected, one is already in progress")
	s.presenter.Notify("Already processing a conversation, please wait", entities.SeverityWarning)
	return false
}

func (s *ConversationService) preflightHealth(ctx context.Context, logger *zap.Logger) {
	checker, ok := s.transport.(repositories.HealthChecker)
	if !ok {
		return
	}

	timeout := s.opts.HealthCheckTimeout
	if timeout <= 0 {
		timeout = healthCheckTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	health, err := checker.CheckHealth(ctx)
	if err != nil {
		logger.Warn("Assistant health check failed", zap.Error(err))
		s.presenter.Notify("Assistant service did not answer the health check, recording anyway", entities.SeverityWarning)
		return
	}
	logger.Debug("Assistant is healthy", zap.Bool("aiConfigured", health.AIConfigured))
}

func (s *ConversationService) awaitCapture(ctx context.Context, flight *Flight, pending <-chan CaptureResult, logger *zap.Logger) {
	captured := <-pending
	s.presenter.SetCaptureIndicator(false)

	if captured.Err != nil {
		logger.Error("Capture failed", zap.Error(captured.Err))
		s.presenter.Notify("Voice conversation failed: "+captured.Err.Error(), entities.SeverityError)
		s.finish(flight, entities.ConversationOutcome{Kind: entities.OutcomeCaptureError, Err: captured.Err})
		return
	}

	s.setState(entities.ConversationStateAwaitingExchange)
	s.presenter.SetStatusText(entities.StatusSlotRecognized, "Processing your request...")

	result, err := s.exchangeArtifact(ctx, captured.Artifact, logger)
	if err != nil {
		s.failExchange(flight, err, logger, true)
		return
	}

	s.deliver(ctx, flight, result, logger)
}

func (s *ConversationService) exchangeArtifact(ctx context.Context, artifact entities.AudioArtifact, logger *zap.Logger) (*entities.ConversationResult, error) {
	if s.opts.Recognizer != nil && s.opts.PreferRecognizer && !artifact.IsEmpty() {
		cfg := s.opts.RecognizerConfig
		cfg.Encoding = artifact.MimeType()

		transcript, err := s.opts.Recognizer.TranscribeAudio(ctx, artifact.Bytes(), cfg)
		if err == nil && strings.TrimSpace(transcript) != "" {
			logger.Info("Transcribed locally", zap.String("transcript", transcript))
			result, err := s.exchange(ctx, logger, "Having a conversation with the assistant...", func(ctx context.Context) (*entities.ConversationResult, error) {
				return s.transport.ExchangeText(ctx, transcript)
			})
			if err == nil && result.Transcript == "" {
				result.Transcript = transcript
			}
			return result, err
		}

		logger.Warn("Local speech recognition failed, falling back to server processing", zap.Error(err))
		s.presenter.Notify("Local speech recognition failed, trying server processing...", entities.SeverityInfo)
	}

	return s.exchange(ctx, logger, "Having a conversation with the assistant...", func(ctx context.Context) (*entities.ConversationResult, error) {
		return s.transport.ExchangeAudio(ctx, artifact)
	})
}

func (s *ConversationService) exchange(
	ctx context.Context,
	logger *zap.Logger,
	busyMessage string,
	call func(context.Context) (*entities.ConversationResult, error),
) (*entities.ConversationResult, error) {
	if s.opts.ExchangeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ExchangeTimeout)
		defer cancel()
	}

	s.presenter.ShowBusyIndicator(busyMessage)
	defer s.presenter.HideBusyIndicator()

	started := time.Now()
	result, err := call(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info("Exchange completed",
		zap.Duration("elapsed", time.Since(started)),
		zap.String("action", string(result.Action)))
	return result, nil
}

func (s *ConversationService) failExchange(flight *Flight, err error, logger *zap.Logger, replaceTranscript bool) {
	logger.Error("AI conversation failed", zap.Error(err))

	s.presenter.Notify("AI conversation failed: "+err.Error(), entities.SeverityError)
	if replaceTranscript {
		s.presenter.SetStatusText(entities.StatusSlotRecognized, "AI conversation failed - check logs for details")
	}

	kind := entities.OutcomeTransportError
	if errors.Is(err, domain.ErrEmptyCapture) {
		kind = entities.OutcomeCaptureError
	}
	s.finish(flight, entities.ConversationOutcome{Kind: kind, Err: err})
}

func (s *ConversationService) deliver(ctx context.Context, flight *Flight, result *entities.ConversationResult, logger *zap.Logger) {
	s.presenter.SetStatusText(entities.StatusSlotRecognized, "You: "+TruncateTranscript(result.Transcript))
	logger.Info("Transcription received", zap.String("transcript", result.Transcript))

	s.setState(entities.ConversationStateSpeaking)

	outcome := entities.ConversationOutcome{
		Kind:       entities.OutcomeCompleted,
		Transcript: result.Transcript,
		Reply:      result.Reply,
	}

	if result.Reply == "" {
		logger.Warn("No AI response received")
	}
	spoken := s.playback.Speak(ctx, result.Reply)

	if result.Action == entities.ConversationActionBookingCreated && result.Booking != nil {
		booking := *result.Booking
		booking.CreatedVia = entities.BookingSourceAIConversation
		booking = s.bookings.Append(ctx, booking)

		s.presenter.Notify("Booking created for "+booking.CustomerName, entities.SeveritySuccess)
		outcome.Kind = entities.OutcomeBookingCreated
		outcome.Booking = &booking
	} else {
		if result.Action == entities.ConversationActionBookingCreated {
			logger.Warn("Booking action without booking payload")
		}
		logger.Info("Conversation continues", zap.String("action", string(result.Action)))
		s.presenter.Notify("AI: "+result.Reply, entities.SeverityInfo)
	}

	<-spoken
	s.finish(flight, outcome)
}

// finish is the single exit path of a flight
func (s *ConversationService) finish(flight *Flight, outcome entities.ConversationOutcome) {
	s.recorder.Cancel()

	s.presenter.SetCaptureIndicator(false)
	s.presenter.HideBusyIndicator()
	s.setState(entities.ConversationStateIdle)

	outcome.FlightID = flight.ID
	flight.outcome = outcome

	s.inFlight.Store(false)
	close(flight.done)

	s.logger.Info("Conversation finished",
		zap.String("flightID", flight.ID),
		zap.String("outcome", string(outcome.Kind)))
}

func (s *ConversationService) setState(state entities.ConversationState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *ConversationService) setFlight(flight *Flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flight = flight
}

func (s *ConversationService) currentFlight() *Flight {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flight
}

// TruncateTranscript shortens a transcript for display
func TruncateTranscript(transcript string) string {
	runes := []rune(transcript)
	if len(runes) <= maxTranscriptDisplay {
		return transcript
	}
	return string(runes[:maxTranscriptDisplay-3]) + "..."
}
