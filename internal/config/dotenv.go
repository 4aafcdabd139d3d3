package config

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// LoadDotEnv loads .env style files into the environment (".env" when none
// are given). A missing or unreadable file is logged as a warning and
// returned; startup continues with the process environment.
func LoadDotEnv(logger zerolog.Logger, filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil {
		logger.Warn().Err(err).Msg("failed to load .env file, continuing with system environment variables only")
		return err
	}
	return nil
}
