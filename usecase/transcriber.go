package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/henrietta/domain/entities"
	"github.com/satriahrh/henrietta/domain/repositories"
)

// Transcriber routes a clip to the selected speech recognition provider
type Transcriber struct {
	providers       map[repositories.ProviderKind]repositories.SpeechToText
	defaultProvider repositories.ProviderKind
	logger          *zap.Logger
}

// NewTranscriber creates a transcriber over the given providers
func NewTranscriber(
	providers map[repositories.ProviderKind]repositories.SpeechToText,
	defaultProvider repositories.ProviderKind,
	logger *zap.Logger,
) *Transcriber {
	return &Transcriber{
		providers:       providers,
		defaultProvider: defaultProvider,
		logger:          logger,
	}
}

// Transcribe converts audio to text. It never fails; every failure is a
// tagged result whose text is the matching sentinel.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, format string, provider repositories.ProviderKind, languageHint string) entities.Transcription {
	if provider == "" {
		provider = t.defaultProvider
	}

	stt, ok := t.providers[provider]
	if !ok || stt == nil {
		t.logger.Warn("Speech recognition provider not configured", zap.String("provider", string(provider)))
		return entities.TranscriptionFailed(entities.FailureUnreachable)
	}

	if len(audio) == 0 {
		return entities.TranscriptionFailed(entities.FailureMalformedAudio)
	}

	start := time.Now()
	result := stt.TranscribeAudio(ctx, audio, repositories.AudioConfig{
		Language: languageHint,
		Format:   format,
	})

	t.logger.Info("Transcription attempt finished",
		zap.String("provider", string(provider)),
		zap.Int("audioSize", len(audio)),
		zap.String("failure", result.Failure.String()),
		zap.Duration("elapsed", time.Since(start)))

	return result
}
