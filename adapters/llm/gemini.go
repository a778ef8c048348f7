package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/henrietta/domain/repositories"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultAttempts       = 1
	defaultTimeoutSeconds = 30
)

// GeminiConfig holds configuration for the Gemini adapter
type GeminiConfig struct {
	APIKey         string        // Required: Gemini API key
	Model          string        // Optional: defaults to gemini-2.0-flash
	Attempts       int           // Optional: total tries per prompt, defaults to 1
	TimeoutSeconds int           // Optional: per-prompt timeout, defaults to 30
	Backoff        time.Duration // Optional: base delay between attempts, defaults to 1s
	BaseURL        string        // Optional: overrides the API endpoint
}

// GeminiLLM implements the LargeLanguageModel interface using Google's Gemini API
type GeminiLLM struct {
	client   *genai.Client
	logger   *zap.Logger
	model    string
	attempts int
	timeout  time.Duration
	backoff  time.Duration
}

var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Gemini API key is required")
	}

	if config.Attempts < 0 {
		return fmt.Errorf("attempts must be positive, got %d", config.Attempts)
	}

	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}

	return nil
}

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	attempts := config.Attempts
	if attempts == 0 {
		attempts = defaultAttempts
	}

	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
		logger.Info("Using default timeoutSeconds", zap.Int("timeoutSeconds", timeoutSeconds))
	}

	backoff := config.Backoff
	if backoff == 0 {
		backoff = time.Second
	}

	return &GeminiLLM{
		client:   client,
		logger:   logger,
		model:    model,
		attempts: attempts,
		timeout:  time.Duration(timeoutSeconds) * time.Second,
		backoff:  backoff,
	}, nil
}

// Generate sends the prompt as a single user message and returns the reply text
func (g *GeminiLLM) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < g.attempts; attempt++ {
		response, err = g.client.Models.GenerateContent(ctx, g.model, contents, nil)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to generate content",
			zap.Int("attempt", attempt+1),
			zap.Int("attempts", g.attempts),
			zap.Error(err))

		if attempt < g.attempts-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt+1) * g.backoff):
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := responseText(response)
	if text == "" {
		return "", errors.New("model returned no text")
	}

	g.logger.Info("Generated reply",
		zap.String("model", g.model),
		zap.Int("promptLength", len(prompt)),
		zap.Int("replyLength", len(text)))

	return text, nil
}

// responseText concatenates the text parts of the first candidate
func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 {
		return ""
	}
	content := response.Candidates[0].Content
	if content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
