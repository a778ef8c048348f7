package repositories

import "context"

// LargeLanguageModel abstracts any text generation provider
type LargeLanguageModel interface {
	// Generate takes a complete prompt and returns the model's reply.
	// Every call is stateless; no prior conversation is sent.
	Generate(ctx context.Context, prompt string) (string, error)
}
