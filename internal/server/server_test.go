package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/client"
	"github.com/sakif/linkbio/internal/config"
	"github.com/sakif/linkbio/internal/draft"
)

func testConfig(secret string) *config.Config {
	return &config.Config{
		Port:               8080,
		DBPath:             ":memory:",
		LogLevel:           "info",
		JWTSecret:          secret,
		SessionTTL:         time.Hour,
		ProjectionTTL:      0,
		ClickWorkers:       1,
		ClickQueueSize:     16,
		ImportTimeout:      time.Second,
		ImportMockFallback: true,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(cfg, nil, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		assert.NoError(t, s.Close())
	})
	return ts
}

// noRedirect returns the 302 itself instead of following it.
var noRedirect = &http.Client{
	CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
}

// =============================================================================
// Routing
// =============================================================================

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, testConfig(""))

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsExposed(t *testing.T) {
	ts := newTestServer(t, testConfig(""))

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "linkbio_")
}

func TestAuthDisabledMountsPublicRoutesOnly(t *testing.T) {
	ts := newTestServer(t, testConfig(""))

	resp, err := http.Get(ts.URL + "/api/me")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/auth/login", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/handles/check", "application/json", strings.NewReader(`{"handle":"alice"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestShortSecretRejected(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := New(testConfig("short"), nil, logger)
	require.Error(t, err)
}

func TestOwnerRoutesRequireSession(t *testing.T) {
	ts := newTestServer(t, testConfig("server-test-secret-0123456789"))

	resp, err := http.Get(ts.URL + "/api/me/profile")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// =============================================================================
// End to end: sign up, edit through a draft, visit, click
// =============================================================================

func TestSignUpEditVisitClick(t *testing.T) {
	ts := newTestServer(t, testConfig("server-test-secret-0123456789"))
	ctx := context.Background()

	c := client.New(ts.URL, "", 5*time.Second)
	acc, err := c.Login(ctx, "Alice@Example.com", "correct-horse", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", acc.Email)
	assert.Equal(t, "alice", acc.Handle)

	// The handle is now gone for everyone else.
	avail, err := c.CheckHandle(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Equal(t, "taken", avail.Reason)

	base, err := c.FetchOwnProfile(ctx)
	require.NoError(t, err)
	require.Len(t, base.StoreItems, 3)

	sess := draft.New(base, c)
	require.NoError(t, sess.ApplyFieldEdit(draft.FieldBio, "hello there"))
	_, err = sess.AddLink("Site", "https://alice.example.com", "")
	require.NoError(t, err)

	saved, err := sess.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, draft.Clean, sess.State())
	require.Len(t, saved.Links, 1)
	linkID := saved.Links[0].ID
	require.NotEmpty(t, linkID)

	page, err := http.Get(ts.URL + "/alice")
	require.NoError(t, err)
	body, _ := io.ReadAll(page.Body)
	page.Body.Close()
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(body), "hello there")
	assert.Contains(t, string(body), "/go/alice/link/"+linkID)

	resp, err := noRedirect.Get(ts.URL + "/go/alice/link/" + linkID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://alice.example.com", resp.Header.Get("Location"))

	assert.Eventually(t, func() bool {
		pub, err := c.PublicProfile(ctx, "alice")
		return err == nil && len(pub.Links) == 1 && pub.Links[0].ClickCount == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSaveByNonOwnerForbidden(t *testing.T) {
	ts := newTestServer(t, testConfig("server-test-secret-0123456789"))
	ctx := context.Background()

	alice := client.New(ts.URL, "", 5*time.Second)
	_, err := alice.Login(ctx, "alice@example.com", "correct-horse", "alice")
	require.NoError(t, err)

	bob := client.New(ts.URL, "", 5*time.Second)
	_, err = bob.Login(ctx, "bob@example.com", "battery-staple", "bob")
	require.NoError(t, err)

	base, err := bob.FetchOwnProfile(ctx)
	require.NoError(t, err)
	fields := base.Editable()
	fields.Bio = "not yours"

	_, err = bob.SaveProfile(ctx, "alice", fields)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestUnknownHandlePageOffersClaim(t *testing.T) {
	ts := newTestServer(t, testConfig(""))

	resp, err := http.Get(ts.URL + "/nobodyhere")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "/onboarding?handle=nobodyhere")
}
