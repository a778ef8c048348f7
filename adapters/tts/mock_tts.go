package tts

import (
	"context"
	"sync"

	"github.com/satriahrh/henrietta/domain/entities"
	"github.com/satriahrh/henrietta/domain/repositories"
)

// MockTTS returns a fixed clip or a fixed error
type MockTTS struct {
	mu    sync.Mutex
	clip  entities.AudioClip
	err   error
	texts []string
}

var _ repositories.TextToSpeech = (*MockTTS)(nil)

// NewMockTTS creates a mock that renders every text as data
func NewMockTTS(data []byte) *MockTTS {
	return &MockTTS{clip: entities.AudioClip{Data: data, Format: mpegFormat}}
}

// NewFailingTTS creates a mock that fails every call with err
func NewFailingTTS(err error) *MockTTS {
	return &MockTTS{err: err}
}

// SynthesizeAudio implements repositories.TextToSpeech
func (m *MockTTS) SynthesizeAudio(ctx context.Context, text string, voice repositories.VoiceConfig) (entities.AudioClip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	if m.err != nil {
		return entities.AudioClip{}, m.err
	}
	return entities.AudioClip{Data: append([]byte(nil), m.clip.Data...), Format: m.clip.Format}, nil
}

// Texts returns every text synthesized so far
func (m *MockTTS) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}
