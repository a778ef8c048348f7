package stt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/satriahrh/henrietta/domain/entities"
	"github.com/satriahrh/henrietta/domain/repositories"
)

// WhisperConfig holds configuration for the hosted Whisper transcription adapter
type WhisperConfig struct {
	APIKey  string // Optional: without it every call reports a missing credential
	BaseURL string // Optional: defaults to https://api.openai.com/v1
	Model   string // Optional: defaults to whisper-1
	TempDir string // Optional: where audio is staged before upload
}

// WhisperSpeechToText implements SpeechToText using OpenAI's transcription API
type WhisperSpeechToText struct {
	client  *openai.Client
	hasKey  bool
	model   string
	tempDir string
	logger  *zap.Logger
}

var _ repositories.SpeechToText = (*WhisperSpeechToText)(nil)

// NewWhisperSpeechToText creates a new Whisper transcription adapter
func NewWhisperSpeechToText(config WhisperConfig, logger *zap.Logger) *WhisperSpeechToText {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}

	model := config.Model
	if model == "" {
		model = openai.Whisper1
	}

	if config.APIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, Whisper transcription is unavailable")
	}

	return &WhisperSpeechToText{
		client:  openai.NewClientWithConfig(clientConfig),
		hasKey:  config.APIKey != "",
		model:   model,
		tempDir: config.TempDir,
		logger:  logger,
	}
}

// TranscribeAudio stages the clip to a temporary file and uploads it
func (w *WhisperSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) entities.Transcription {
	if !w.hasKey {
		return entities.TranscriptionFailed(entities.FailureMissingCredential)
	}

	if len(audioData) == 0 {
		return entities.TranscriptionFailed(entities.FailureMalformedAudio)
	}

	path, cleanup, err := w.stageAudio(audioData, config.Format)
	if err != nil {
		w.logger.Error("Failed to stage audio for upload", zap.Error(err))
		return entities.TranscriptionFailed(entities.FailureMalformedAudio)
	}
	defer cleanup()

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: path,
	})
	if err != nil {
		failure := classifyOpenAIError(err)
		w.logger.Error("Whisper transcription failed",
			zap.String("failure", failure.String()),
			zap.Error(err))
		return entities.TranscriptionFailed(failure)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return entities.TranscriptionFailed(entities.FailureUnintelligible)
	}

	w.logger.Info("Transcription completed", zap.String("model", w.model), zap.Int("textLength", len(text)))
	return entities.Transcribed(text)
}

// stageAudio writes the clip to a temporary file. The returned cleanup must
// always be called; it removes the file.
func (w *WhisperSpeechToText) stageAudio(audioData []byte, format string) (string, func(), error) {
	file, err := os.CreateTemp(w.tempDir, "speech-*"+extFromContentType(format))
	if err != nil {
		return "", func() {}, fmt.Errorf("creating temp file: %w", err)
	}

	cleanup := func() {
		if err := os.Remove(file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("Failed to remove staged audio", zap.String("path", file.Name()), zap.Error(err))
		}
	}

	if _, err := file.Write(audioData); err != nil {
		file.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("writing temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("closing temp file: %w", err)
	}

	return file.Name(), cleanup, nil
}

func classifyOpenAIError(err error) entities.TranscriptionFailure {
	statusCode := 0

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		statusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		statusCode = reqErr.HTTPStatusCode
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return entities.FailureMissingCredential
	case http.StatusBadRequest, http.StatusUnsupportedMediaType:
		return entities.FailureMalformedAudio
	default:
		return entities.FailureUnreachable
	}
}

// extFromContentType maps an audio MIME type to a file extension
func extFromContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}

	switch ct {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	case "audio/ogg":
		return ".ogg"
	case "audio/webm", "video/webm":
		return ".webm"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	default:
		return ".wav"
	}
}
