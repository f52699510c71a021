package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/voicebook/assistant/adapters/capture"
	"github.com/voicebook/assistant/adapters/memory"
	"github.com/voicebook/assistant/adapters/mongo"
	"github.com/voicebook/assistant/adapters/rediscache"
	"github.com/voicebook/assistant/adapters/speech"
	"github.com/voicebook/assistant/adapters/stt"
	"github.com/voicebook/assistant/adapters/transport"
	"github.com/voicebook/assistant/adapters/tts"
	"github.com/voicebook/assistant/domain/repositories"
	"github.com/voicebook/assistant/internal/api"
	"github.com/voicebook/assistant/internal/auth"
	"github.com/voicebook/assistant/internal/config"
	applog "github.com/voicebook/assistant/internal/logger"
	"github.com/voicebook/assistant/internal/websocket"
	"github.com/voicebook/assistant/usecase"
)

// conversationTransport is what the orchestrator and the health monitor need
type conversationTransport interface {
	repositories.ConversationTransport
	repositories.HealthChecker
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := applog.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	var closers []func(context.Context) error

	// Presentation
	hub := websocket.NewHub(logger)
	go hub.Run()

	// Initialize adapters
	mic := newMicrophone(cfg, logger)

	conversation, err := newTransport(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize assistant transport", zap.Error(err))
	}

	engine, err := newVoiceEngine(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize voice engine", zap.Error(err))
	}

	recognizer, closeRecognizer, err := newRecognizer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize speech recognizer", zap.Error(err))
	}
	if closeRecognizer != nil {
		closers = append(closers, closeRecognizer)
	}

	repo, closeRepo, err := newBookingRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize booking storage", zap.Error(err))
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	// Initialize usecase services
	bookingService := usecase.NewBookingService(repo, hub, logger)
	if err := bookingService.Load(ctx); err != nil {
		logger.Warn("Starting with an empty booking list", zap.Error(err))
	}

	conversationService := usecase.NewConversationService(
		usecase.NewRecorder(mic, logger),
		conversation,
		usecase.NewPlayback(engine, cfg.Speech.Language, logger),
		bookingService,
		hub,
		usecase.ConversationOptions{
			Recognizer:       recognizer,
			PreferRecognizer: cfg.Recognizer.Prefer,
			RecognizerConfig: repositories.AudioConfig{
				SampleRate: cfg.Recognizer.SampleRate,
				Encoding:   cfg.Recognizer.Encoding,
				Language:   cfg.Recognizer.Language,
			},
			ExchangeTimeout: cfg.Assistant.ExchangeTimeout,
		},
		logger,
	)
	hub.SetController(conversationService)

	healthMonitor := usecase.NewHealthMonitor(conversation, hub, cfg.Health.Interval, logger)
	healthMonitor.Start()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, hub, conversationService, bookingService, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Voice booking assistant started",
		zap.String("port", cfg.Server.Port),
		zap.String("assistantBackend", cfg.Assistant.Backend),
		zap.String("captureBackend", cfg.Capture.Backend),
		zap.String("speechBackend", cfg.Speech.Backend),
		zap.String("storageBackend", cfg.Storage.Backend))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	healthMonitor.Stop()
	conversationService.Close()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	hub.Stop()

	for _, closeFn := range closers {
		if err := closeFn(shutdownCtx); err != nil {
			logger.Warn("Failed to release resource", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

func newMicrophone(cfg *config.Config, logger *zap.Logger) repositories.Microphone {
	if cfg.Capture.Backend == "mock" {
		return capture.NewMockMicrophone(cfg.Capture.ChunkSize, 100*time.Millisecond, nil, logger)
	}
	return capture.NewFFmpegMicrophone(capture.FFmpegConfig{
		Command:     cfg.Capture.Command,
		InputFormat: cfg.Capture.InputFormat,
		InputDevice: cfg.Capture.InputDevice,
		SampleRate:  cfg.Capture.SampleRate,
		Channels:    cfg.Capture.Channels,
		ChunkSize:   cfg.Capture.ChunkSize,
	}, logger)
}

func newTransport(ctx context.Context, cfg *config.Config, logger *zap.Logger) (conversationTransport, error) {
	if cfg.Assistant.Backend == "gemini" {
		return transport.NewGeminiTransport(ctx, transport.GeminiConfig{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			Temperature: cfg.Gemini.Temperature,
		}, logger)
	}

	signer := auth.NewSigner(cfg.Assistant.TokenSecret, cfg.Assistant.DeviceID)
	return transport.NewHTTPTransport(cfg.Assistant.BaseURL, signer, logger), nil
}

func newVoiceEngine(cfg *config.Config, logger *zap.Logger) (repositories.VoiceEngine, error) {
	switch cfg.Speech.Backend {
	case "elevenlabs":
		player := tts.NewCommandPlayer(cfg.Speech.PCMPlayer, cfg.Speech.MP3Player, logger)
		return tts.NewElevenLabsEngine(tts.ElevenLabsConfig{
			APIKey:       cfg.Speech.ElevenLabs.APIKey,
			APIBaseURL:   cfg.Speech.ElevenLabs.APIBaseURL,
			VoiceID:      cfg.Speech.ElevenLabs.VoiceID,
			ModelID:      cfg.Speech.ElevenLabs.ModelID,
			OutputFormat: cfg.Speech.ElevenLabs.OutputFormat,
		}, player, logger)
	case "mock":
		return speech.NewMockVoiceEngine(30*time.Millisecond, logger), nil
	}
	// no speech synthesis on this platform
	return nil, nil
}

func newRecognizer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.SpeechToText, func(context.Context) error, error) {
	switch cfg.Recognizer.Backend {
	case "google":
		recognizer, err := stt.NewGoogleSpeechToText(ctx, logger)
		if err != nil {
			return nil, nil, err
		}
		return recognizer, func(context.Context) error { return recognizer.Close() }, nil
	case "mock":
		return stt.NewMockSpeechToText(logger), nil, nil
	}
	return nil, nil, nil
}

func newBookingRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.BookingRepository, func(context.Context) error, error) {
	switch cfg.Storage.Backend {
	case "mongo":
		client, err := mongo.NewClient(ctx, mongo.Options{
			URI:      cfg.Storage.MongoURI,
			Database: cfg.Storage.MongoDatabase,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		repo := mongo.NewBookingRepository(client.Database(), cfg.Storage.Limit)
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Warn("Failed to create booking indexes", zap.Error(err))
		}
		return repo, client.Close, nil

	case "redis":
		opts := rediscache.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
			Limit:    cfg.Storage.Limit,
			TTL:      cfg.Storage.RedisTTL,
		}
		client, err := rediscache.NewClient(ctx, opts)
		if err != nil {
			return nil, nil, err
		}
		return rediscache.NewBookingCache(client, opts, logger), func(context.Context) error { return client.Close() }, nil
	}

	return memory.NewBookingRepository(cfg.Storage.Limit), nil, nil
}
