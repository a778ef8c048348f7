package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/henrietta/adapters"
	"github.com/satriahrh/henrietta/adapters/llm"
	"github.com/satriahrh/henrietta/adapters/stt"
	"github.com/satriahrh/henrietta/adapters/tts"
	"github.com/satriahrh/henrietta/domain/repositories"
	"github.com/satriahrh/henrietta/internal/api"
	"github.com/satriahrh/henrietta/internal/auth"
	"github.com/satriahrh/henrietta/internal/config"
	"github.com/satriahrh/henrietta/internal/persona"
	"github.com/satriahrh/henrietta/internal/websocket"
	"github.com/satriahrh/henrietta/usecase"
)

func main() {
	configFile := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, repo, err := buildSessionService(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	issuer, err := auth.NewTokenIssuer(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		logger.Fatal("Failed to initialize token issuer", zap.Error(err))
	}
	if cfg.SessionSecret == "" {
		logger.Warn("SESSION_SECRET not set, tokens will not survive a restart")
	}

	cleanup := websocket.NewSessionCleanupService(repo, cfg.CleanupInterval, logger)
	cleanup.Start()
	defer cleanup.Stop()

	hub := websocket.NewHub(service, logger)
	go hub.Run(ctx)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, hub, service, issuer, logger)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("stt_provider", cfg.STTProvider),
		zap.String("tts_backend", cfg.TTSBackend))

	<-ctx.Done()

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func buildSessionService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*usecase.SessionService, repositories.SessionRepository, error) {
	p, err := persona.Load(cfg.PersonaFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load persona: %w", err)
	}

	model, err := llm.NewGeminiLLM(ctx, llm.GeminiConfig{
		APIKey:         cfg.GeminiAPIKey,
		Model:          cfg.GeminiModel,
		Attempts:       cfg.GeminiAttempts,
		TimeoutSeconds: cfg.GeminiTimeoutSeconds,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create gemini client: %w", err)
	}

	providers := map[repositories.ProviderKind]repositories.SpeechToText{
		repositories.ProviderGoogle: stt.NewGoogleSpeechToText(logger),
		repositories.ProviderWhisper: stt.NewWhisperSpeechToText(stt.WhisperConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.WhisperModel,
			TempDir: cfg.TempDir,
		}, logger),
	}

	voice, err := buildTextToSpeech(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	pipeline := usecase.NewTurnPipeline(
		usecase.NewTranscriber(providers, cfg.STTProviderKind(), logger),
		usecase.NewResponder(model, p, logger),
		usecase.NewSynthesizer(voice, logger),
		logger,
	)

	repo := adapters.NewMemorySessionRepository(logger)
	return usecase.NewSessionService(repo, pipeline, cfg.SessionTTL, logger), repo, nil
}

func buildTextToSpeech(cfg *config.Config, logger *zap.Logger) (repositories.TextToSpeech, error) {
	switch cfg.TTSBackend {
	case config.TTSBackendElevenLabs:
		voice, err := tts.NewElevenLabsTTS(tts.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			VoiceID: cfg.ElevenLabsVoiceID,
			ModelID: cfg.ElevenLabsModelID,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create elevenlabs client: %w", err)
		}
		return voice, nil
	case config.TTSBackendGoogleTranslate:
		return tts.NewGoogleTranslateTTS(tts.GoogleTranslateConfig{}, logger), nil
	default:
		return nil, errors.New("unknown TTS backend: " + cfg.TTSBackend)
	}
}
