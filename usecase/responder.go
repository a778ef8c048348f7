package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/henrietta/domain/entities"
	"github.com/satriahrh/henrietta/domain/repositories"
)

// Responder answers user text in the voice of the persona
type Responder struct {
	llm     repositories.LargeLanguageModel
	persona entities.Persona
	logger  *zap.Logger
}

// NewResponder creates a responder for the given persona
func NewResponder(llm repositories.LargeLanguageModel, persona entities.Persona, logger *zap.Logger) *Responder {
	return &Responder{
		llm:     llm,
		persona: persona,
		logger:  logger,
	}
}

// Respond returns the persona's reply. Generation errors come back as an
// apology that is shown and spoken like any other reply.
func (r *Responder) Respond(ctx context.Context, userText string) string {
	reply, err := r.llm.Generate(ctx, r.persona.Prompt(userText))
	if err == nil && strings.TrimSpace(reply) == "" {
		err = fmt.Errorf("empty reply")
	}
	if err != nil {
		r.logger.Error("Failed to generate reply", zap.Error(err))
		return fmt.Sprintf("I'm sorry, there was an error: %v", err)
	}

	return strings.TrimSpace(reply)
}
