// Package config loads server settings from the environment, an optional
// .env file and an optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/satriahrh/henrietta/domain/repositories"
)

// ErrMissingCredential is returned when a required API key is not configured
var ErrMissingCredential = errors.New("missing credential")

// Text-to-speech backends
const (
	TTSBackendGoogleTranslate = "google_translate"
	TTSBackendElevenLabs      = "elevenlabs"
)

// Config is the root configuration for the server
type Config struct {
	Port string `mapstructure:"port"`

	GeminiAPIKey         string `mapstructure:"gemini_api_key"`
	GeminiModel          string `mapstructure:"gemini_model"`
	GeminiAttempts       int    `mapstructure:"gemini_attempts"`
	GeminiTimeoutSeconds int    `mapstructure:"gemini_timeout_seconds"`

	OpenAIAPIKey  string `mapstructure:"openai_api_key"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`
	WhisperModel  string `mapstructure:"whisper_model"`
	STTProvider   string `mapstructure:"stt_provider"`
	TempDir       string `mapstructure:"temp_dir"`

	TTSBackend        string `mapstructure:"tts_backend"`
	ElevenLabsAPIKey  string `mapstructure:"eleven_labs_api_key"`
	ElevenLabsVoiceID string `mapstructure:"eleven_labs_voice_id"`
	ElevenLabsModelID string `mapstructure:"eleven_labs_model_id"`

	SessionSecret   string        `mapstructure:"session_secret"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`

	PersonaFile string `mapstructure:"persona_file"`

	LogLevel       string `mapstructure:"log_level"`
	LogDevelopment bool   `mapstructure:"log_development"`
}

var defaults = map[string]interface{}{
	"port":                   "8080",
	"gemini_api_key":         "",
	"gemini_model":           "gemini-2.0-flash",
	"gemini_attempts":        3,
	"gemini_timeout_seconds": 30,
	"openai_api_key":         "",
	"openai_base_url":        "",
	"whisper_model":          "",
	"stt_provider":           string(repositories.ProviderGoogle),
	"temp_dir":               "",
	"tts_backend":            TTSBackendGoogleTranslate,
	"eleven_labs_api_key":    "",
	"eleven_labs_voice_id":   "",
	"eleven_labs_model_id":   "",
	"session_secret":         "",
	"session_ttl":            "30m",
	"cleanup_interval":       "1m",
	"persona_file":           "",
	"log_level":              "info",
	"log_development":        false,
}

// Load reads the configuration from .env, an optional config file and the
// environment. Environment variables win over the file.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required keys and enumerated values
func (c *Config) Validate() error {
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		return fmt.Errorf("GEMINI_API_KEY is required: %w", ErrMissingCredential)
	}

	if _, err := repositories.ParseProviderKind(c.STTProvider); err != nil {
		return fmt.Errorf("STT_PROVIDER: %w", err)
	}

	switch c.TTSBackend {
	case TTSBackendGoogleTranslate:
	case TTSBackendElevenLabs:
		if c.ElevenLabsAPIKey == "" {
			return fmt.Errorf("ELEVEN_LABS_API_KEY is required for the elevenlabs backend: %w", ErrMissingCredential)
		}
	default:
		return fmt.Errorf("TTS_BACKEND must be one of: %s, %s", TTSBackendGoogleTranslate, TTSBackendElevenLabs)
	}

	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	return nil
}

// STTProviderKind returns the default transcription provider
func (c *Config) STTProviderKind() repositories.ProviderKind {
	kind, _ := repositories.ParseProviderKind(c.STTProvider)
	return kind
}

// NewLogger builds the process logger from the logging keys
func NewLogger(c *Config) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if c.LogDevelopment {
		zapConfig = zap.NewDevelopmentConfig()
	}

	if c.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(c.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("LOG_LEVEL: %w", err)
		}
		zapConfig.Level = level
	}

	return zapConfig.Build()
}
