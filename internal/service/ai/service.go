package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/kids-tutor/backend/internal/model/chat"
	"github.com/zhouzirui/kids-tutor/backend/internal/model/persona"
)

// Service runs the generator stage: it answers the child's question under a
// tutor persona, with recent history as context.
type Service struct {
	completer Completer
	prompts   *PersonaPromptManager
	model     string
	logger    zerolog.Logger
}

// NewService creates a generator over completer. model may be empty to use
// the completer's default.
func NewService(completer Completer, prompts *PersonaPromptManager, model string, logger zerolog.Logger) *Service {
	if prompts == nil {
		prompts = NewPersonaPromptManager()
	}
	return &Service{
		completer: completer,
		prompts:   prompts,
		model:     model,
		logger:    logger.With().Str("stage", "generator").Logger(),
	}
}

// GenerateResponse generates the tutor answer for userMessage.
func (s *Service) GenerateResponse(ctx context.Context, tutor *persona.Persona, history []chat.Turn, userMessage string) (string, error) {
	messages, err := BuildPrompt(ctx, history, userMessage, s.prompts.BuildInstruction(tutor))
	if err != nil {
		return "", err
	}

	answer, err := s.completer.Complete(ctx, GenerationRequest{
		Messages:    messages,
		Temperature: tutor.Temperature,
		Model:       s.model,
	})
	if err != nil {
		return "", fmt.Errorf("generate response: %w", err)
	}

	s.logger.Debug().
		Str("persona", tutor.ID).
		Int("history", len(messages)-2).
		Int("length", len(answer)).
		Msg("generated response")
	return answer, nil
}
