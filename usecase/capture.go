package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/voicebook/assistant/domain"
	"github.com/voicebook/assistant/domain/entities"
	"github.com/voicebook/assistant/domain/repositories"
)

// CaptureResult resolves the pending result of BeginRecording
type CaptureResult struct {
	Artifact entities.AudioArtifact
	Err      error
}

type captureSession struct {
	stream     repositories.AudioStream
	fragments  [][]byte
	pending    chan CaptureResult
	collected  chan struct{}
	collecting bool
}

func (s *captureSession) resolve(result CaptureResult) {
	s.pending <- result
	close(s.pending)
}

// Recorder owns the microphone for at most one capture session at a time
type Recorder struct {
	mic    repositories.Microphone
	logger *zap.Logger

	mu      sync.Mutex
	state   entities.CaptureState
	session *captureSession
}

// NewRecorder creates a recorder on top of a microphone adapter
func NewRecorder(mic repositories.Microphone, logger *zap.Logger) *Recorder {
	return &Recorder{
		mic:    mic,
		logger: logger,
		state:  entities.CaptureStateIdle,
	}
}

// RequestAccess acquires an exclusive microphone stream. Device and
// permission failures are returned unchanged.
func (r *Recorder) RequestAccess(ctx context.Context) (repositories.AudioStream, error) {
	r.mu.Lock()
	if r.state != entities.CaptureStateIdle {
		r.mu.Unlock()
		return nil, domain.ErrCaptureBusy
	}
	r.state = entities.CaptureStateArmed
	r.mu.Unlock()

	r.logger.Info("Requesting microphone access")

	stream, err := r.mic.Open(ctx)
	if err != nil {
		r.mu.Lock()
		r.state = entities.CaptureStateIdle
		r.mu.Unlock()
		r.logger.Warn("Microphone access failed", zap.Error(err))
		return nil, err
	}

	r.mu.Lock()
	r.session = &captureSession{
		stream:    stream,
		pending:   make(chan CaptureResult, 1),
		collected: make(chan struct{}),
	}
	r.mu.Unlock()

	r.logger.Info("Microphone access granted", zap.String("mimeType", stream.MimeType()))
	return stream, nil
}

// BeginRecording starts accumulating fragments from stream. The returned
// channel yields exactly one result once EndRecording or Cancel runs.
func (r *Recorder) BeginRecording(stream repositories.AudioStream) (<-chan CaptureResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != entities.CaptureStateArmed || r.session == nil || r.session.stream != stream {
		return nil, domain.ErrNotArmed
	}

	r.state = entities.CaptureStateRecording
	r.session.collecting = true
	go r.collect(r.session)

	r.logger.Info("Recording started")
	return r.session.pending, nil
}

func (r *Recorder) collect(session *captureSession) {
	defer close(session.collected)

	for fragment := range session.stream.Fragments() {
		if len(fragment) == 0 {
			continue
		}
		r.logger.Debug("Audio fragment received", zap.Int("size", len(fragment)))
		session.fragments = append(session.fragments, fragment)
	}
}

// EndRecording finalizes the current session into an AudioArtifact and
// releases the stream.
func (r *Recorder) EndRecording() error {
	r.mu.Lock()
	if r.state != entities.CaptureStateRecording {
		r.mu.Unlock()
		return domain.ErrNotRecording
	}
	r.state = entities.CaptureStateFinalizing
	session := r.session
	r.mu.Unlock()

	if err := session.stream.Stop(); err != nil {
		// keep what was captured so far
		r.logger.Warn("Audio stream did not stop cleanly", zap.Error(err))
		_ = session.stream.Release()
	}
	<-session.collected

	artifact := entities.NewAudioArtifact(session.fragments, session.stream.MimeType())
	r.logger.Info("Recording finalized",
		zap.Int("fragments", len(session.fragments)),
		zap.Int("sizeBytes", artifact.SizeBytes()),
		zap.String("mimeType", artifact.MimeType()))

	// back to Idle before anyone waiting on the result can start again
	r.release(session)
	session.resolve(CaptureResult{Artifact: artifact})
	return nil
}

// Cancel releases the stream of an armed or recording session without
// producing an artifact. It is a no-op when idle.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	session := r.session
	if session == nil || r.state == entities.CaptureStateFinalizing {
		r.mu.Unlock()
		return
	}
	r.state = entities.CaptureStateFinalizing
	r.mu.Unlock()

	if err := session.stream.Release(); err != nil {
		r.logger.Warn("Failed to release audio stream", zap.Error(err))
	}
	if session.collecting {
		<-session.collected
	}

	r.logger.Info("Recording cancelled")
	r.release(session)
	session.resolve(CaptureResult{Err: domain.ErrCaptureCancelled})
}

func (r *Recorder) release(session *captureSession) {
	if err := session.stream.Release(); err != nil {
		r.logger.Warn("Failed to release audio stream", zap.Error(err))
	}

	r.mu.Lock()
	if r.session == session {
		r.session = nil
	}
	r.state = entities.CaptureStateIdle
	r.mu.Unlock()
}

// IsRecording reports whether a session is accumulating audio
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == entities.CaptureStateRecording
}

// State returns the current capture state
func (r *Recorder) State() entities.CaptureState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// StreamActive reports whether the recorder still holds a live stream
func (r *Recorder) StreamActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != nil && r.session.stream.Active()
}
