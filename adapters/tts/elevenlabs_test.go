package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/voicebook/assistant/domain/entities"
)

// capturePlayer keeps what would have been played
type capturePlayer struct {
	format string
	audio  []byte
}

func (p *capturePlayer) Play(ctx context.Context, format string, audio io.Reader) error {
	p.format = format
	data, err := io.ReadAll(audio)
	p.audio = data
	return err
}

func TestNewElevenLabsEngine(t *testing.T) {
	logger := zaptest.NewLogger(t)

	if _, err := NewElevenLabsEngine(ElevenLabsConfig{}, &capturePlayer{}, logger); err == nil {
		t.Error("Expected error when API key is not set")
	}

	if _, err := NewElevenLabsEngine(ElevenLabsConfig{APIKey: "key", Stability: 1.5}, &capturePlayer{}, logger); err == nil {
		t.Error("Expected error for stability out of range")
	}

	engine, err := NewElevenLabsEngine(ElevenLabsConfig{APIKey: "test-api-key"}, &capturePlayer{}, logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	if engine.voiceID != defaultVoiceID {
		t.Errorf("Expected default voice ID '%s', got '%s'", defaultVoiceID, engine.voiceID)
	}
	if engine.outputFormat != defaultOutputFormat {
		t.Errorf("Expected default output format, got '%s'", engine.outputFormat)
	}
}

func TestElevenLabsEngine_Voices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voices" || r.Header.Get("xi-api-key") != "test-api-key" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"voices":[
			{"voice_id":"a","name":"Rachel","labels":{"accent":"american"}},
			{"voice_id":"b","name":"Aria","verified_languages":[{"language":"en","locale":"en-US"}]},
			{"voice_id":"c","name":"Hans","labels":{"language":"de"}}
		]}`))
	}))
	defer server.Close()

	engine, err := NewElevenLabsEngine(ElevenLabsConfig{APIKey: "test-api-key", APIBaseURL: server.URL, VoiceID: "b"}, &capturePlayer{}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	voices, err := engine.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices failed: %v", err)
	}
	if len(voices) != 3 {
		t.Fatalf("Expected 3 voices, got %d", len(voices))
	}

	want := []entities.Voice{
		{ID: "a", Name: "Rachel", Locale: "en"},
		{ID: "b", Name: "Aria", Locale: "en-US", Default: true},
		{ID: "c", Name: "Hans", Locale: "de"},
	}
	for i, v := range want {
		if voices[i] != v {
			t.Errorf("voice %d = %+v, want %+v", i, voices[i], v)
		}
	}
}

func TestElevenLabsEngine_Speak(t *testing.T) {
	pcm := make([]byte, 4)
	for i, s := range []int16{1000, -1000} {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	var got elevenLabsRequest
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "audio/pcm")
		_, _ = w.Write(pcm)
	}))
	defer server.Close()

	player := &capturePlayer{}
	engine, err := NewElevenLabsEngine(ElevenLabsConfig{APIKey: "test-api-key", APIBaseURL: server.URL}, player, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	err = engine.Speak(context.Background(), entities.Utterance{
		Text:   "Your table is booked",
		Voice:  &entities.Voice{ID: "voice-1"},
		Rate:   0.9,
		Volume: 0.5,
	})
	if err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	if gotPath != "/text-to-speech/voice-1/stream" {
		t.Errorf("Unexpected path %s", gotPath)
	}
	if got.Text != "Your table is booked" || got.VoiceSettings.Speed != 0.9 {
		t.Errorf("Unexpected request %+v", got)
	}
	if player.format != defaultOutputFormat {
		t.Errorf("Expected format %s, got %s", defaultOutputFormat, player.format)
	}
	if len(player.audio) != 4 {
		t.Fatalf("Expected 4 bytes played, got %d", len(player.audio))
	}
	if s := int16(binary.LittleEndian.Uint16(player.audio[0:])); s != 500 {
		t.Errorf("Expected first sample scaled to 500, got %d", s)
	}
	if s := int16(binary.LittleEndian.Uint16(player.audio[2:])); s != -500 {
		t.Errorf("Expected second sample scaled to -500, got %d", s)
	}
}

func TestElevenLabsEngine_SpeakErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	engine, err := NewElevenLabsEngine(ElevenLabsConfig{APIKey: "test-api-key", APIBaseURL: server.URL}, &capturePlayer{}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	if err := engine.Speak(context.Background(), entities.Utterance{Text: "   "}); err == nil {
		t.Error("Expected error for whitespace-only text")
	}

	err = engine.Speak(context.Background(), entities.Utterance{Text: "hello"})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("Expected API error to be returned, got %v", err)
	}
}

func TestVolumeReader_OddReads(t *testing.T) {
	pcm := make([]byte, 6)
	for i, s := range []int16{2000, -2000, 4000} {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	// one byte at a time forces samples to straddle reads
	reader := NewVolumeReader(io.MultiReader(
		bytes.NewReader(pcm[:1]), bytes.NewReader(pcm[1:3]), bytes.NewReader(pcm[3:])), 0.25)
	out, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(out) != 6 {
		t.Fatalf("Expected 6 bytes, got %d", len(out))
	}
	for i, want := range []int16{500, -500, 1000} {
		if got := int16(binary.LittleEndian.Uint16(out[i*2:])); got != want {
			t.Errorf("sample %d = %d, want %d", i, got, want)
		}
	}
}

func TestCommandPlayer_CommandFor(t *testing.T) {
	player := NewCommandPlayer(nil, nil, zaptest.NewLogger(t))

	args, err := player.commandFor("pcm_24000")
	if err != nil {
		t.Fatalf("commandFor failed: %v", err)
	}
	if strings.Join(args, " ") != "aplay -q -f S16_LE -r 24000 -c 1" {
		t.Errorf("Unexpected command %v", args)
	}

	if _, err := player.commandFor("ulaw_8000"); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

// Integration test - only runs if ELEVEN_LABS_API_KEY is set with real API key
func TestElevenLabsEngine_Voices_Integration(t *testing.T) {
	apiKey := os.Getenv("ELEVEN_LABS_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping integration test - set ELEVEN_LABS_API_KEY environment variable with real API key")
	}

	engine, err := NewElevenLabsEngine(ElevenLabsConfig{APIKey: apiKey}, &capturePlayer{}, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	voices, err := engine.Voices(ctx)
	if err != nil {
		t.Fatalf("Voices failed: %v", err)
	}
	if len(voices) == 0 {
		t.Error("Expected at least one voice")
	}
	t.Logf("Integration test completed: %d voices", len(voices))
}
