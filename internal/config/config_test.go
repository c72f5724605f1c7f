package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrong1271/scrum-planning-poker/internal/config"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
		assert.False(t, cfg.Debug)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("POKER_ADDR", ":9999")
		t.Setenv("POKER_ALLOWED_ORIGINS", "https://example.com,https://other.example.com")
		t.Setenv("POKER_DEBUG", "true")

		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, ":9999", cfg.Addr)
		assert.Equal(t, []string{"https://example.com", "https://other.example.com"}, cfg.AllowedOrigins)
		assert.True(t, cfg.Debug)
	})
}
