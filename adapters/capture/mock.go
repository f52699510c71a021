package capture

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voicebook/assistant/domain/repositories"
)

// MockMicrophone produces synthetic audio fragments at a fixed pace. It lets
// the assistant run on machines without an input device.
type MockMicrophone struct {
	fragmentSize int
	interval     time.Duration
	err          error
	logger       *zap.Logger
}

var _ repositories.Microphone = (*MockMicrophone)(nil)

// NewMockMicrophone creates a mock microphone. A non-nil err is returned by
// every Open call.
func NewMockMicrophone(fragmentSize int, interval time.Duration, err error, logger *zap.Logger) *MockMicrophone {
	if fragmentSize <= 0 {
		fragmentSize = 4000
	}
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &MockMicrophone{
		fragmentSize: fragmentSize,
		interval:     interval,
		err:          err,
		logger:       logger,
	}
}

// Open implements repositories.Microphone
func (m *MockMicrophone) Open(ctx context.Context) (repositories.AudioStream, error) {
	if m.err != nil {
		return nil, m.err
	}

	s := &mockStream{
		fragments: make(chan []byte, 1),
		stop:      make(chan struct{}),
		release:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	go s.produce(m.fragmentSize, m.interval)

	m.logger.Info("Mock microphone opened", zap.Duration("interval", m.interval))
	return s, nil
}

type mockStream struct {
	fragments chan []byte
	stop      chan struct{}
	release   chan struct{}
	done      chan struct{}

	stopOnce    sync.Once
	releaseOnce sync.Once
}

func (s *mockStream) produce(size int, interval time.Duration) {
	defer close(s.done)
	defer close(s.fragments)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq byte
	emit := func() bool {
		seq++
		fragment := make([]byte, size)
		for i := range fragment {
			fragment[i] = seq
		}
		select {
		case s.fragments <- fragment:
			return true
		case <-s.release:
			return false
		}
	}

	for {
		select {
		case <-s.release:
			return
		case <-s.stop:
			// trailing data buffered by the encoder
			emit()
			return
		case <-ticker.C:
			if !emit() {
				return
			}
		}
	}
}

func (s *mockStream) MimeType() string { return webmOpusMimeType }

func (s *mockStream) Fragments() <-chan []byte { return s.fragments }

func (s *mockStream) Stop() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func (s *mockStream) Release() error {
	s.releaseOnce.Do(func() { close(s.release) })
	return nil
}

func (s *mockStream) Active() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}
