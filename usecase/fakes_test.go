package usecase

import (
	"context"
	"sync"

	"github.com/voicebook/assistant/domain/entities"
	"github.com/voicebook/assistant/domain/repositories"
)

// fakeStream emits scripted fragments once Stop is called
type fakeStream struct {
	mu        sync.Mutex
	scripted  [][]byte
	fragments chan []byte
	closed    bool
	stopped   bool
	released  int
	stopErr   error
}

func newFakeStream(fragments ...[]byte) *fakeStream {
	return &fakeStream{
		scripted:  fragments,
		fragments: make(chan []byte, len(fragments)+1),
	}
}

func (s *fakeStream) MimeType() string { return "audio/webm;codecs=opus" }

func (s *fakeStream) Fragments() <-chan []byte { return s.fragments }

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.stopped = true
	if s.stopErr != nil {
		return s.stopErr
	}
	for _, f := range s.scripted {
		s.fragments <- f
	}
	s.closed = true
	close(s.fragments)
	return nil
}

func (s *fakeStream) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
	if !s.closed {
		s.closed = true
		close(s.fragments)
	}
	return nil
}

func (s *fakeStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *fakeStream) releaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// fakeMicrophone hands out prepared streams in order
type fakeMicrophone struct {
	mu      sync.Mutex
	streams []*fakeStream
	opened  int
	err     error
}

func (m *fakeMicrophone) Open(ctx context.Context) (repositories.AudioStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var stream *fakeStream
	if m.opened < len(m.streams) {
		stream = m.streams[m.opened]
	} else {
		stream = newFakeStream([]byte("audio"))
	}
	m.opened++
	return stream, nil
}

// fakeTransport records calls and returns canned results
type fakeTransport struct {
	mu         sync.Mutex
	result     *entities.ConversationResult
	err        error
	audioCalls []entities.AudioArtifact
	textCalls  []string
	gate       chan struct{}
}

func (t *fakeTransport) ExchangeAudio(ctx context.Context, artifact entities.AudioArtifact) (*entities.ConversationResult, error) {
	t.mu.Lock()
	t.audioCalls = append(t.audioCalls, artifact)
	gate := t.gate
	t.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return t.respond()
}

func (t *fakeTransport) ExchangeText(ctx context.Context, transcript string) (*entities.ConversationResult, error) {
	t.mu.Lock()
	t.textCalls = append(t.textCalls, transcript)
	gate := t.gate
	t.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return t.respond()
}

func (t *fakeTransport) respond() (*entities.ConversationResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	result := *t.result
	return &result, nil
}

func (t *fakeTransport) calls() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.audioCalls), len(t.textCalls)
}

type notification struct {
	Message  string
	Severity entities.Severity
}

// recordingPresenter keeps everything shown to the user
type recordingPresenter struct {
	mu            sync.Mutex
	notifications []notification
	status        map[entities.StatusSlot]string
	capture       bool
	busy          bool
	bookings      []entities.Booking
	renders       int
}

func newRecordingPresenter() *recordingPresenter {
	return &recordingPresenter{status: map[entities.StatusSlot]string{}}
}

func (p *recordingPresenter) Notify(message string, severity entities.Severity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = append(p.notifications, notification{message, severity})
}

func (p *recordingPresenter) SetStatusText(slot entities.StatusSlot, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status[slot] = text
}

func (p *recordingPresenter) SetCaptureIndicator(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.capture = active
}

func (p *recordingPresenter) ShowBusyIndicator(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.busy = true
}

func (p *recordingPresenter) HideBusyIndicator() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.busy = false
}

func (p *recordingPresenter) RenderBookings(bookings []entities.Booking) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bookings = bookings
	p.renders++
}

func (p *recordingPresenter) statusText(slot entities.StatusSlot) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status[slot]
}

func (p *recordingPresenter) indicators() (capture, busy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capture, p.busy
}

func (p *recordingPresenter) hasNotification(severity entities.Severity, contains func(string) bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range p.notifications {
		if n.Severity == severity && contains(n.Message) {
			return true
		}
	}
	return false
}

// fakeVoiceEngine records spoken utterances
type fakeVoiceEngine struct {
	mu     sync.Mutex
	voices []entities.Voice
	spoken []entities.Utterance
	err    error
}

func (e *fakeVoiceEngine) Voices(ctx context.Context) ([]entities.Voice, error) {
	return e.voices, nil
}

func (e *fakeVoiceEngine) Speak(ctx context.Context, utterance entities.Utterance) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spoken = append(e.spoken, utterance)
	return e.err
}

func (e *fakeVoiceEngine) utterances() []entities.Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]entities.Utterance(nil), e.spoken...)
}

// fakeBookingRepository stores bookings newest first
type fakeBookingRepository struct {
	mu       sync.Mutex
	bookings []*entities.Booking
	saveErr  error
	listErr  error
}

func (r *fakeBookingRepository) Save(ctx context.Context, booking *entities.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	b := *booking
	r.bookings = append([]*entities.Booking{&b}, r.bookings...)
	return nil
}

func (r *fakeBookingRepository) List(ctx context.Context) ([]*entities.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]*entities.Booking(nil), r.bookings...), nil
}
