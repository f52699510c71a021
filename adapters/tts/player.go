package tts

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// AudioPlayer plays an encoded audio stream on the local output device
type AudioPlayer interface {
	// Play blocks until audio is exhausted and playback finished
	Play(ctx context.Context, format string, audio io.Reader) error
}

// CommandPlayer pipes audio into an external player process
type CommandPlayer struct {
	pcmCommand []string
	mp3Command []string
	logger     *zap.Logger
}

// NewCommandPlayer creates a player. An empty pcmCommand uses aplay; the
// sample rate placeholder {rate} is filled from the stream format.
func NewCommandPlayer(pcmCommand, mp3Command []string, logger *zap.Logger) *CommandPlayer {
	if len(pcmCommand) == 0 {
		pcmCommand = []string{"aplay", "-q", "-f", "S16_LE", "-r", "{rate}", "-c", "1"}
	}
	if len(mp3Command) == 0 {
		mp3Command = []string{"mpg123", "-q", "-"}
	}
	return &CommandPlayer{
		pcmCommand: pcmCommand,
		mp3Command: mp3Command,
		logger:     logger,
	}
}

// Play implements AudioPlayer
func (p *CommandPlayer) Play(ctx context.Context, format string, audio io.Reader) error {
	args, err := p.commandFor(format)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = audio

	p.logger.Debug("Starting audio player", zap.Strings("command", args))
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("audio player %s failed: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (p *CommandPlayer) commandFor(format string) ([]string, error) {
	codec, rate, _ := strings.Cut(format, "_")
	switch codec {
	case "pcm":
		if _, err := strconv.Atoi(rate); err != nil {
			return nil, fmt.Errorf("invalid pcm format %q", format)
		}
		args := make([]string, len(p.pcmCommand))
		for i, arg := range p.pcmCommand {
			args[i] = strings.ReplaceAll(arg, "{rate}", rate)
		}
		return args, nil
	case "mp3":
		return p.mp3Command, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// NewVolumeReader scales signed 16-bit little-endian PCM by volume.
// Volumes outside (0, 1) leave the audio untouched.
func NewVolumeReader(r io.Reader, volume float64) io.Reader {
	if volume <= 0 || volume >= 1 {
		return r
	}
	return &volumeReader{r: r, gain: volume}
}

type volumeReader struct {
	r     io.Reader
	gain  float64
	carry []byte
}

func (v *volumeReader) Read(p []byte) (int, error) {
	if len(p) < 2 {
		return 0, io.ErrShortBuffer
	}

	n := copy(p, v.carry)
	v.carry = v.carry[:0]

	m, err := v.r.Read(p[n:])
	n += m

	// a sample may straddle two reads
	even := n &^ 1
	if even < n && err == nil {
		v.carry = append(v.carry, p[even])
	}

	for i := 0; i < even; i += 2 {
		sample := int16(binary.LittleEndian.Uint16(p[i:]))
		scaled := math.Round(float64(sample) * v.gain)
		binary.LittleEndian.PutUint16(p[i:], uint16(int16(scaled)))
	}
	return even, err
}
