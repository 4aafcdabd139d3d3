package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/kids-tutor/backend/internal/model/persona"
)

// ReviewTemperature keeps the reviewer deterministic.
const ReviewTemperature float32 = 0

// Reviewer is the optional second stage. It only ever sees the generator's
// output, never the child's original question.
type Reviewer struct {
	completer   Completer
	instruction string
	model       string
	logger      zerolog.Logger
}

// NewReviewer builds a reviewer for the given reviewer persona.
func NewReviewer(completer Completer, prompts *PersonaPromptManager, reviewer *persona.Persona, model string, logger zerolog.Logger) *Reviewer {
	if prompts == nil {
		prompts = NewPersonaPromptManager()
	}
	return &Reviewer{
		completer:   completer,
		instruction: prompts.BuildInstruction(reviewer),
		model:       model,
		logger:      logger.With().Str("stage", "reviewer").Logger(),
	}
}

// Review returns the reviewed version of generatedText exactly as the
// completion service produced it.
func (r *Reviewer) Review(ctx context.Context, generatedText string) (string, error) {
	messages, err := BuildPrompt(ctx, nil, generatedText, r.instruction)
	if err != nil {
		return "", err
	}

	reviewed, err := r.completer.Complete(ctx, GenerationRequest{
		Messages:    messages,
		Temperature: ReviewTemperature,
		Model:       r.model,
	})
	if err != nil {
		return "", fmt.Errorf("review response: %w", err)
	}

	r.logger.Debug().
		Int("draft_length", len(generatedText)).
		Int("length", len(reviewed)).
		Msg("reviewed response")
	return reviewed, nil
}
