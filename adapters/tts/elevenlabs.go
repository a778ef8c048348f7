package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/henrietta/domain/entities"
	"github.com/satriahrh/henrietta/domain/repositories"
)

const (
	elevenLabsBaseURL = "https://api.elevenlabs.io/v1"
	rachelVoiceID     = "21m00Tcm4TlvDq8ikWAM"
	multilingualModel = "eleven_multilingual_v2"

	// Browsers play MP3 directly, so no other format is requested
	mp3OutputFormat = "mp3_44100_128"

	voiceStability  = 0.5
	similarityBoost = 0.75
	maxErrorBody    = 4 << 10
)

// ElevenLabsConfig selects the account and voice. Only APIKey is required.
type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	VoiceID string
	ModelID string
}

// ElevenLabsTTS speaks replies with a hosted ElevenLabs voice
type ElevenLabsTTS struct {
	apiKey     string
	baseURL    string
	voiceID    string
	modelID    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ repositories.TextToSpeech = (*ElevenLabsTTS)(nil)

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	LanguageCode  string        `json:"language_code,omitempty"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// NewElevenLabsTTS creates the adapter, filling unset fields with the
// Rachel voice on the multilingual model
func NewElevenLabsTTS(config ElevenLabsConfig, logger *zap.Logger) (*ElevenLabsTTS, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, fmt.Errorf("eleven labs API key is required")
	}

	e := &ElevenLabsTTS{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(orDefault(config.BaseURL, elevenLabsBaseURL), "/"),
		voiceID:    orDefault(config.VoiceID, rachelVoiceID),
		modelID:    orDefault(config.ModelID, multilingualModel),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}

	logger.Info("ElevenLabs voice configured",
		zap.String("voiceID", e.voiceID),
		zap.String("modelID", e.modelID))
	return e, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// SynthesizeAudio converts text to a single MP3 clip using Eleven Labs API
func (e *ElevenLabsTTS) SynthesizeAudio(ctx context.Context, text string, voice repositories.VoiceConfig) (entities.AudioClip, error) {
	if strings.TrimSpace(text) == "" {
		return entities.AudioClip{}, fmt.Errorf("text cannot be empty")
	}

	e.logger.Info("Converting text to speech",
		zap.Int("textLength", len(text)),
		zap.String("voiceID", e.voiceID),
		zap.String("modelID", e.modelID))

	request := speechRequest{
		Text:         text,
		ModelID:      e.modelID,
		LanguageCode: voice.Language,
		VoiceSettings: voiceSettings{
			Stability:       voiceStability,
			SimilarityBoost: similarityBoost,
			UseSpeakerBoost: true,
		},
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return entities.AudioClip{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s&enable_logging=false",
		e.baseURL, url.PathEscape(e.voiceID), mp3OutputFormat)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return entities.AudioClip{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return entities.AudioClip{}, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		e.logger.Error("Eleven Labs API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return entities.AudioClip{}, fmt.Errorf("eleven labs API returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return entities.AudioClip{}, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(data) == 0 {
		return entities.AudioClip{}, fmt.Errorf("eleven labs API returned no audio")
	}

	e.logger.Info("Received audio from Eleven Labs API", zap.Int("totalBytes", len(data)))

	return entities.AudioClip{Data: data, Format: mpegFormat}, nil
}
