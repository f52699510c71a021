package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/voicebook/assistant/domain"
	"github.com/voicebook/assistant/domain/repositories"
)

const webmOpusMimeType = "audio/webm;codecs=opus"

// FFmpegConfig describes the capture device and encoder settings
type FFmpegConfig struct {
	Command     string
	InputFormat string
	InputDevice string
	SampleRate  int
	Channels    int
	ChunkSize   int
	StopTimeout time.Duration
}

// FFmpegMicrophone records the system microphone as webm/opus through ffmpeg
type FFmpegMicrophone struct {
	cfg    FFmpegConfig
	logger *zap.Logger
}

var _ repositories.Microphone = (*FFmpegMicrophone)(nil)

// NewFFmpegMicrophone creates a microphone adapter with defaults for a
// PulseAudio desktop
func NewFFmpegMicrophone(cfg FFmpegConfig, logger *zap.Logger) *FFmpegMicrophone {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 4096
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 1200 * time.Millisecond
	}
	return &FFmpegMicrophone{cfg: cfg, logger: logger}
}

func (m *FFmpegMicrophone) args() []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", m.cfg.InputFormat,
		"-i", m.cfg.InputDevice,
		"-ac", strconv.Itoa(m.cfg.Channels),
		"-ar", strconv.Itoa(m.cfg.SampleRate),
		"-c:a", "libopus",
		"-b:a", "32k",
		"-f", "webm",
		"-",
	}
}

// Open starts ffmpeg. The process outlives ctx; ctx only bounds startup.
func (m *FFmpegMicrophone) Open(ctx context.Context) (repositories.AudioStream, error) {
	cmd := exec.Command(m.cfg.Command, m.args()...)
	stderr := &syncBuffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", domain.ErrDeviceUnavailable, m.cfg.Command)
		}
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	stream := &ffmpegStream{
		process:   cmd.Process,
		stdout:    stdout,
		stderr:    stderr,
		fragments: make(chan []byte, 64),
		released:  make(chan struct{}),
		readDone:  make(chan struct{}),
		waitErr:   make(chan error, 1),
		timeout:   m.cfg.StopTimeout,
		logger:    m.logger,
	}
	stream.active.Store(true)

	go stream.pump(m.cfg.ChunkSize)
	go func() {
		// Wait closes stdout; all reads must be done first
		<-stream.readDone
		err := cmd.Wait()
		stream.active.Store(false)
		stream.waitErr <- err
		close(stream.waitErr)
	}()

	select {
	case err := <-stream.waitErr:
		_ = stream.Release()
		return nil, classifyStartError(err, stderr.String())
	case <-ctx.Done():
		_ = stream.Release()
		return nil, ctx.Err()
	case <-time.After(250 * time.Millisecond):
	}

	m.logger.Info("ffmpeg capture started",
		zap.String("inputFormat", m.cfg.InputFormat),
		zap.String("inputDevice", m.cfg.InputDevice),
		zap.Int("sampleRate", m.cfg.SampleRate))
	return stream, nil
}

func classifyStartError(err error, stderr string) error {
	detail := strings.TrimSpace(stderr)
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "permission denied"), strings.Contains(lower, "access denied"):
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, detail)
	case err != nil:
		return fmt.Errorf("%w: ffmpeg exited before capture started: %v: %s", domain.ErrDeviceUnavailable, err, detail)
	default:
		return fmt.Errorf("%w: ffmpeg exited before capture started", domain.ErrDeviceUnavailable)
	}
}

type ffmpegStream struct {
	process *os.Process
	stdout  io.ReadCloser
	stderr  *syncBuffer

	fragments chan []byte
	released  chan struct{}
	readDone  chan struct{}
	waitErr   chan error
	active    atomic.Bool

	timeout time.Duration
	logger  *zap.Logger

	stopOnce    sync.Once
	stopErr     error
	releaseOnce sync.Once
}

func (s *ffmpegStream) pump(chunkSize int) {
	defer close(s.readDone)
	defer close(s.fragments)

	buf := make([]byte, chunkSize)
	for {
		n, err := s.stdout.Read(buf)
		if n > 0 {
			fragment := make([]byte, n)
			copy(fragment, buf[:n])
			select {
			case s.fragments <- fragment:
			case <-s.released:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				s.logger.Warn("ffmpeg stdout read failed", zap.Error(err))
			}
			return
		}
	}
}

func (s *ffmpegStream) MimeType() string { return webmOpusMimeType }

func (s *ffmpegStream) Fragments() <-chan []byte { return s.fragments }

func (s *ffmpegStream) Active() bool { return s.active.Load() }

// Stop interrupts ffmpeg so it finalizes the webm container, killing it if
// it does not exit in time
func (s *ffmpegStream) Stop() error {
	s.stopOnce.Do(func() {
		_ = s.process.Signal(os.Interrupt)

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(s.timeout):
			s.logger.Warn("ffmpeg did not stop in time, killing it")
			_ = s.process.Kill()
			if err, ok := <-s.waitErr; ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, strings.TrimSpace(s.stderr.String()))
		}
	})
	return s.stopErr
}

// Release kills ffmpeg and abandons any unread audio
func (s *ffmpegStream) Release() error {
	s.releaseOnce.Do(func() {
		close(s.released)
		if s.active.Load() {
			_ = s.process.Kill()
		}
		_ = s.stdout.Close()
	})
	return nil
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	// ffmpeg exits non-zero on SIGINT
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// syncBuffer is a bytes.Buffer safe for the exec stderr copier and readers
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}
