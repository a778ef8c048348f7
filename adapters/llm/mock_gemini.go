package llm

import (
	"context"
	"sync"

	"github.com/satriahrh/henrietta/domain/repositories"
)

// MockLLM is a scripted LargeLanguageModel for local runs and tests
type MockLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

var _ repositories.LargeLanguageModel = (*MockLLM)(nil)

// NewMockLLM creates a mock that answers every prompt with reply
func NewMockLLM(reply string) *MockLLM {
	return &MockLLM{reply: reply}
}

// NewFailingLLM creates a mock that fails every prompt with err
func NewFailingLLM(err error) *MockLLM {
	return &MockLLM{err: err}
}

// Generate implements repositories.LargeLanguageModel
func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

// Prompts returns every prompt received so far
func (m *MockLLM) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
