package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnvMissingFileWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	err := LoadDotEnv(logger, filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "failed to load .env file")
}

func TestLoadDotEnvSetsVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("KIDS_TUTOR_DOTENV_VALUE=loaded\n"), 0o600))
	t.Setenv("KIDS_TUTOR_DOTENV_VALUE", "")
	require.NoError(t, os.Unsetenv("KIDS_TUTOR_DOTENV_VALUE"))

	var buf bytes.Buffer
	require.NoError(t, LoadDotEnv(zerolog.New(&buf), path))
	assert.Equal(t, "loaded", os.Getenv("KIDS_TUTOR_DOTENV_VALUE"))
	assert.Empty(t, buf.String())
}
