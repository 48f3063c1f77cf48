package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "data/linkbio.db", cfg.DBPath)
	assert.Equal(t, 5*time.Second, cfg.ProjectionTTL)
	assert.Equal(t, 4, cfg.ClickWorkers)
	assert.True(t, cfg.ImportMockFallback)
	assert.Equal(t, "http://localhost:8080/auth/github/callback", cfg.GitHubCallbackURL)
	assert.False(t, cfg.AuthEnabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LINKBIO_PORT", "9000")
	t.Setenv("LINKBIO_JWT_SECRET", "s3cret")
	t.Setenv("LINKBIO_GITHUB_CLIENT_ID", "id")
	t.Setenv("LINKBIO_GITHUB_CLIENT_SECRET", "secret")
	t.Setenv("LINKBIO_PROJECTION_TTL", "2s")
	t.Setenv("LINKBIO_CLICK_WORKERS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.ProjectionTTL)
	assert.Equal(t, 1, cfg.ClickWorkers, "clamped to at least one worker")
	assert.Equal(t, "http://localhost:9000/auth/google/callback", cfg.GoogleCallbackURL)
	assert.True(t, cfg.GitHubEnabled())
	assert.False(t, cfg.GoogleEnabled())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("port", func(t *testing.T) {
		t.Setenv("LINKBIO_PORT", "70000")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("log level", func(t *testing.T) {
		t.Setenv("LINKBIO_LOG_LEVEL", "chatty")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("unparseable duration", func(t *testing.T) {
		t.Setenv("LINKBIO_SESSION_TTL", "soon")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)
}
