package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/kids-tutor/backend/internal/app"
	"github.com/zhouzirui/kids-tutor/backend/internal/cli"
	"github.com/zhouzirui/kids-tutor/backend/internal/config"
	"github.com/zhouzirui/kids-tutor/backend/internal/logging"
	"github.com/zhouzirui/kids-tutor/backend/internal/model/persona"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	_ = config.LoadDotEnv(log.Logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// The terminal belongs to the conversation; only warnings reach stderr.
	logger, err := logging.New(logging.Config{Level: "warn", Format: "console"}, os.Stderr)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build logger")
	}

	chatService, err := app.NewChatService(ctx, cfg, persona.NewMemoryStore(persona.Seed()), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize chat pipeline")
	}

	input := cli.NewInput(cli.DefaultHistoryFile())
	err = cli.NewREPL(chatService, input, os.Stdout).Run(ctx, os.Getenv("CHAT_PERSONA"), "")
	_ = input.Close()
	if err != nil {
		logger.Fatal().Err(err).Msg("chat session failed")
	}
}
