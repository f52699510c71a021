package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the complete runtime configuration of the assistant
type Config struct {
	Server     ServerConfig
	Assistant  AssistantConfig
	Gemini     GeminiConfig
	Capture    CaptureConfig
	Speech     SpeechConfig
	Recognizer RecognizerConfig
	Storage    StorageConfig
	Health     HealthConfig
	Log        LogConfig
}

// ServerConfig configures the local control API
type ServerConfig struct {
	Port string
}

// AssistantConfig selects and configures the conversation backend
type AssistantConfig struct {
	Backend         string // http | gemini
	BaseURL         string
	DeviceID        string
	TokenSecret     string
	ExchangeTimeout time.Duration
}

type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
}

// CaptureConfig configures the microphone
type CaptureConfig struct {
	Backend     string // ffmpeg | mock
	Command     string
	InputFormat string
	InputDevice string
	SampleRate  int
	Channels    int
	ChunkSize   int
}

// SpeechConfig configures spoken replies
type SpeechConfig struct {
	Backend    string // elevenlabs | mock | none
	Language   string
	PCMPlayer  []string
	MP3Player  []string
	ElevenLabs ElevenLabsConfig
}

type ElevenLabsConfig struct {
	APIKey       string
	APIBaseURL   string
	VoiceID      string
	ModelID      string
	OutputFormat string
}

// RecognizerConfig configures the optional native speech recognizer
type RecognizerConfig struct {
	Backend    string // google | mock | none
	Prefer     bool
	Language   string
	SampleRate int
	Encoding   string
}

// StorageConfig configures the booking cache
type StorageConfig struct {
	Backend       string // memory | mongo | redis
	Limit         int
	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
}

type HealthConfig struct {
	Interval time.Duration
}

type LogConfig struct {
	Env   string
	Level string
}

// Load reads an optional .env file and then the process environment
func Load() (*Config, error) {
	// Missing .env is fine, the environment may already be populated
	_ = godotenv.Load()

	var errs []error

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Assistant: AssistantConfig{
			Backend:         strings.ToLower(getEnv("ASSISTANT_BACKEND", "http")),
			BaseURL:         getEnv("ASSISTANT_BASE_URL", "http://localhost:8000"),
			DeviceID:        getEnv("ASSISTANT_DEVICE_ID", "voicebook-kiosk"),
			TokenSecret:     getEnv("ASSISTANT_TOKEN_SECRET", ""),
			ExchangeTimeout: getDuration("ASSISTANT_EXCHANGE_TIMEOUT", 0, &errs),
		},
		Gemini: GeminiConfig{
			APIKey:      getEnv("GEMINI_API_KEY", ""),
			Model:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			Temperature: float32(getFloat("GEMINI_TEMPERATURE", 0.3, &errs)),
		},
		Capture: CaptureConfig{
			Backend:     strings.ToLower(getEnv("CAPTURE_BACKEND", "ffmpeg")),
			Command:     getEnv("CAPTURE_COMMAND", "ffmpeg"),
			InputFormat: getEnv("CAPTURE_INPUT_FORMAT", "pulse"),
			InputDevice: getEnv("CAPTURE_INPUT_DEVICE", "default"),
			SampleRate:  getInt("CAPTURE_SAMPLE_RATE", 48000, &errs),
			Channels:    getInt("CAPTURE_CHANNELS", 1, &errs),
			ChunkSize:   getInt("CAPTURE_CHUNK_SIZE", 4096, &errs),
		},
		Speech: SpeechConfig{
			Backend:   strings.ToLower(getEnv("SPEECH_BACKEND", "elevenlabs")),
			Language:  getEnv("SPEECH_LANGUAGE", "en-US"),
			PCMPlayer: strings.Fields(getEnv("SPEECH_PCM_PLAYER", "")),
			MP3Player: strings.Fields(getEnv("SPEECH_MP3_PLAYER", "")),
			ElevenLabs: ElevenLabsConfig{
				APIKey:       getEnv("ELEVEN_LABS_API_KEY", ""),
				APIBaseURL:   getEnv("ELEVEN_LABS_API_BASE_URL", ""),
				VoiceID:      getEnv("ELEVEN_LABS_VOICE_ID", ""),
				ModelID:      getEnv("ELEVEN_LABS_MODEL_ID", ""),
				OutputFormat: getEnv("ELEVEN_LABS_OUTPUT_FORMAT", ""),
			},
		},
		Recognizer: RecognizerConfig{
			Backend:    strings.ToLower(getEnv("RECOGNIZER_BACKEND", "none")),
			Prefer:     getBool("RECOGNIZER_PREFER", true, &errs),
			Language:   getEnv("RECOGNIZER_LANGUAGE", "en-US"),
			SampleRate: getInt("RECOGNIZER_SAMPLE_RATE", 48000, &errs),
			Encoding:   getEnv("RECOGNIZER_ENCODING", "audio/webm"),
		},
		Storage: StorageConfig{
			Backend:       strings.ToLower(getEnv("STORAGE_BACKEND", "memory")),
			Limit:         getInt("STORAGE_LIMIT", 50, &errs),
			MongoURI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			MongoDatabase: getEnv("MONGODB_DATABASE", "voicebook"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getInt("REDIS_DB", 0, &errs),
			RedisTTL:      getDuration("REDIS_TTL", 0, &errs),
		},
		Health: HealthConfig{
			Interval: getDuration("HEALTH_INTERVAL", 30*time.Second, &errs),
		},
		Log: LogConfig{
			Env:   getEnv("APP_ENV", "development"),
			Level: getEnv("LOG_LEVEL", ""),
		},
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks backend selections and the settings each one requires
func (c *Config) Validate() error {
	var errs []error

	switch c.Assistant.Backend {
	case "http":
		if c.Assistant.BaseURL == "" {
			errs = append(errs, errors.New("ASSISTANT_BASE_URL is required for the http backend"))
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown assistant backend %q", c.Assistant.Backend))
	}
	if c.Assistant.ExchangeTimeout < 0 {
		errs = append(errs, errors.New("ASSISTANT_EXCHANGE_TIMEOUT cannot be negative"))
	}

	switch c.Capture.Backend {
	case "ffmpeg", "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown capture backend %q", c.Capture.Backend))
	}

	switch c.Speech.Backend {
	case "elevenlabs":
		if c.Speech.ElevenLabs.APIKey == "" {
			errs = append(errs, errors.New("ELEVEN_LABS_API_KEY is required for the elevenlabs speech backend"))
		}
	case "mock", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown speech backend %q", c.Speech.Backend))
	}

	switch c.Recognizer.Backend {
	case "google", "mock", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown recognizer backend %q", c.Recognizer.Backend))
	}

	switch c.Storage.Backend {
	case "memory", "mongo", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Storage.Limit < 0 {
		errs = append(errs, errors.New("STORAGE_LIMIT cannot be negative"))
	}

	if c.Health.Interval <= 0 {
		errs = append(errs, errors.New("HEALTH_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return parsed
}

func getFloat(key string, fallback float64, errs *[]error) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return parsed
}

func getBool(key string, fallback bool, errs *[]error) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return parsed
}
