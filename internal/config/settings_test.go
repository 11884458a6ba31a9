package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "unittest")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1200, cfg.Board.Width)
	assert.Equal(t, 700, cfg.Board.Height)
	assert.Equal(t, 800*time.Millisecond, cfg.Timing.MergeWindow)
	assert.Equal(t, 1200*time.Millisecond, cfg.Timing.EchoCooldown)
	assert.Equal(t, 8*time.Second, cfg.Timing.KeepAliveInterval)
	assert.InDelta(t, 0.60, cfg.STT.MinConfidence, 1e-9)
	assert.Equal(t, "openai", cfg.LLM.Provider)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ENV", "unittest")
	t.Setenv("TIMING_ECHO_COOLDOWN", "1.5s")
	t.Setenv("BOARD_WIDTH", "900")
	t.Setenv("LLM_PROVIDER", "ollama")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1500*time.Millisecond, cfg.Timing.EchoCooldown)
	assert.Equal(t, 900, cfg.Board.Width)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
}
