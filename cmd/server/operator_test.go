package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/client"
	"github.com/sakif/linkbio/internal/config"
	"github.com/sakif/linkbio/internal/server"
)

func startServer(t *testing.T) string {
	t.Helper()
	t.Setenv("LINKBIO_TOKEN", "")
	cfg := &config.Config{
		Port:           8080,
		DBPath:         ":memory:",
		LogLevel:       "info",
		JWTSecret:      "operator-test-secret-0123456789",
		SessionTTL:     time.Hour,
		ClickWorkers:   1,
		ClickQueueSize: 8,
		ImportTimeout:  time.Second,
	}
	s, err := server.New(cfg, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})

	_, err = client.New(ts.URL, "", 5*time.Second).Login(context.Background(), "alice@example.com", "correct-horse", "alice")
	require.NoError(t, err)
	return ts.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLinksAddAndList(t *testing.T) {
	api := startServer(t)
	creds := []string{"--api", api, "--email", "alice@example.com", "--password", "correct-horse"}

	out, err := run(t, append([]string{"links", "add", "alice", "Site", "https://alice.example.com"}, creds...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `added "Site" on @alice`)
	assert.Contains(t, out, "https://alice.example.com")

	out, err = run(t, append([]string{"links", "ls", "alice"}, creds...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "https://alice.example.com")
}

func TestLinksAddRejectsNonWebURL(t *testing.T) {
	api := startServer(t)
	creds := []string{"--api", api, "--email", "alice@example.com", "--password", "correct-horse"}

	for _, u := range []string{"instagram.com/alice", "mailto:a@x.com"} {
		_, err := run(t, append([]string{"links", "add", "alice", "Bad", u}, creds...)...)
		require.Error(t, err, u)
		assert.ErrorIs(t, err, apperror.ErrValidation)
		assert.Contains(t, err.Error(), "links[0].url")
	}

	out, err := run(t, append([]string{"links", "ls", "alice"}, creds...)...)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestOperatorRejectsOtherHandle(t *testing.T) {
	api := startServer(t)

	_, err := run(t, "links", "ls", "bob", "--api", api, "--email", "alice@example.com", "--password", "correct-horse")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signed in as @alice")
}

func TestOperatorNeedsCredentials(t *testing.T) {
	t.Setenv("LINKBIO_TOKEN", "")
	t.Setenv("LINKBIO_PASSWORD", "")

	_, err := run(t, "links", "ls", "alice", "--api", "http://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--token or --email and --password required")
}

func TestImportRejectsUnsupportedSource(t *testing.T) {
	api := startServer(t)

	_, err := run(t, "import", "alice", "https://example.com/alice",
		"--api", api, "--email", "alice@example.com", "--password", "correct-horse")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
