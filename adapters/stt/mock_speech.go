package stt

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/henrietta/domain/entities"
	"github.com/satriahrh/henrietta/domain/repositories"
)

// MockSpeechToText returns a scripted transcription. It backs local
// development without cloud credentials and the usecase tests.
type MockSpeechToText struct {
	logger *zap.Logger

	mu      sync.Mutex
	result  entities.Transcription
	calls   int
	configs []repositories.AudioConfig
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

// NewMockSpeechToText creates a mock that recognizes every clip as text
func NewMockSpeechToText(text string, logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{
		logger: logger,
		result: entities.Transcribed(text),
	}
}

// NewFailingSpeechToText creates a mock that always reports failure
func NewFailingSpeechToText(failure entities.TranscriptionFailure, logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{
		logger: logger,
		result: entities.TranscriptionFailed(failure),
	}
}

// TranscribeAudio implements repositories.SpeechToText
func (m *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) entities.Transcription {
	m.logger.Info("Processing mock speech-to-text",
		zap.Int("audioSize", len(audioData)),
		zap.String("language", config.Language))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.configs = append(m.configs, config)
	return m.result
}

// Calls returns how many clips were transcribed
func (m *MockSpeechToText) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastConfig returns the config of the most recent call
func (m *MockSpeechToText) LastConfig() repositories.AudioConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.configs) == 0 {
		return repositories.AudioConfig{}
	}
	return m.configs[len(m.configs)-1]
}
