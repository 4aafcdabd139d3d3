// Package app wires the chat pipeline shared by the HTTP server and the
// terminal client.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/kids-tutor/backend/internal/config"
	"github.com/zhouzirui/kids-tutor/backend/internal/model/persona"
	"github.com/zhouzirui/kids-tutor/backend/internal/service/ai"
	"github.com/zhouzirui/kids-tutor/backend/internal/service/chat"
)

// NewChatService builds chat model, completion client, both pipeline stages
// and the session registry. A configuration error stops startup.
func NewChatService(ctx context.Context, cfg *config.Config, personas persona.Store, logger zerolog.Logger) (*chat.Service, error) {
	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		return nil, err
	}
	return NewChatServiceWithCompleter(ai.NewClient(chatModel, cfg.AI.Model, logger), cfg, personas, logger)
}

// NewChatServiceWithCompleter wires the pipeline on top of an existing
// completer.
func NewChatServiceWithCompleter(completer ai.Completer, cfg *config.Config, personas persona.Store, logger zerolog.Logger) (*chat.Service, error) {
	prompts := ai.NewPersonaPromptManager()
	generator := ai.NewService(completer, prompts, cfg.AI.Model, logger)

	var reviewer chat.Reviewer
	if p, ok := personas.FindByID(persona.ReviewerID); ok {
		reviewer = ai.NewReviewer(completer, prompts, &p, cfg.AI.Model, logger)
	} else if cfg.Chat.Pipeline.Reviewed() {
		return nil, fmt.Errorf("%w: reviewer persona %q missing for pipeline %s", config.ErrConfiguration, persona.ReviewerID, cfg.Chat.Pipeline)
	}

	controller := chat.NewController(generator, reviewer, personas, chat.ControllerConfig{
		MaxInputChars: cfg.Chat.MaxInputChars,
	}, logger)

	logger.Info().
		Str("model", cfg.AI.Model).
		Str("pipeline", string(cfg.Chat.Pipeline)).
		Int("max_input_chars", cfg.Chat.MaxInputChars).
		Msg("chat pipeline initialized")

	return chat.NewService(controller, personas, cfg.Chat.Pipeline), nil
}
