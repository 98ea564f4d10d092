package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/victornm/quizroom/internal/config"
)

type testConfig struct {
	HTTP struct {
		Port int32
	}

	Game struct {
		StartingScore int64
		DecayInterval time.Duration
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("http:\n  port: 9090\n"), 0o600))

	var c testConfig
	c.Game.StartingScore = 1000
	c.Game.DecayInterval = 100 * time.Millisecond

	t.Setenv("GAME_STARTINGSCORE", "500")

	require.NoError(t, config.Load(p, &c))

	require.Equal(t, int32(9090), c.HTTP.Port, "file should override")
	require.Equal(t, int64(500), c.Game.StartingScore, "env should override default")
	require.Equal(t, 100*time.Millisecond, c.Game.DecayInterval, "default should be kept")
}

func TestLoad_MissingFile(t *testing.T) {
	var c testConfig
	err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), &c)
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(p, []byte("QUIZROOM_DOTENV_TEST=yes\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("QUIZROOM_DOTENV_TEST") })

	require.NoError(t, config.LoadDotEnv(filepath.Join(dir, "missing.env"), p))
	require.Equal(t, "yes", os.Getenv("QUIZROOM_DOTENV_TEST"))
}
