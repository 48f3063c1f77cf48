package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/auth"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/service"
)

const stateCookie = "oauth_state"

// AuthHandler runs the sign-in flows and session cookie.
//
// HANDLER RESPONSIBILITIES:
//   - HandleProviderLogin    → redirect to the provider's consent page
//   - HandleProviderCallback → verify state, exchange code, resolve account
//   - HandleLocalLogin       → email/password sign-in, or sign-up with a handle
//   - HandleLogout           → clear the session cookie
//   - HandleMe               → the signed-in account
type AuthHandler struct {
	identity     *service.IdentityService
	providers    map[model.Provider]auth.Provider
	tokens       *auth.TokenService
	cookieSecure bool
	logger       *slog.Logger
}

func NewAuthHandler(
	identity *service.IdentityService,
	providers []auth.Provider,
	tokens *auth.TokenService,
	cookieSecure bool,
	logger *slog.Logger,
) *AuthHandler {
	byName := make(map[model.Provider]auth.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &AuthHandler{
		identity:     identity,
		providers:    byName,
		tokens:       tokens,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

func (h *AuthHandler) provider(r *http.Request) (auth.Provider, bool) {
	p, ok := h.providers[model.Provider(chi.URLParam(r, "provider"))]
	return p, ok
}

// HandleProviderLogin redirects to the provider.
//
// HTTP: GET /auth/{provider}/login
//
// CSRF PROTECTION VIA STATE:
// A random state goes into a short-lived HttpOnly cookie and into the
// provider URL. The callback only proceeds when both match.
func (h *AuthHandler) HandleProviderLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, p.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleProviderCallback completes an OAuth/OIDC sign-in.
//
// HTTP: GET /auth/{provider}/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Check state against the cookie, then drop the cookie
//  2. Exchange the code for the provider's identity
//  3. Resolve it to an account (create, link, or refuse on conflict)
//  4. Set the session cookie and send the browser on to onboarding or
//     the owner's page
func (h *AuthHandler) HandleProviderCallback(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || r.URL.Query().Get("state") != c.Value {
		h.logger.Warn("auth callback: state mismatch", slog.String("provider", string(p.Name())))
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	identity, err := p.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: exchange failed",
			slog.String("provider", string(p.Name())),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	res, err := h.identity.ResolveExternal(r.Context(), identity)
	if errors.Is(err, apperror.ErrProviderConflict) {
		// Send the user back to sign in the way they signed up.
		q := url.Values{"error": {"provider_conflict"}, "email": {identity.Email}}
		http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
		return
	}
	if err != nil {
		h.logger.Error("auth callback: resolving account failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	h.setSession(w, res.Token)
	http.Redirect(w, r, landingPath(res.Account), http.StatusSeeOther)
}

// landingPath is where a freshly signed-in browser goes next.
func landingPath(acc *model.Account) string {
	if acc.Handle == "" {
		return "/onboarding"
	}
	return "/" + acc.Handle
}

// HandleLocalLogin signs in with email and password. With a handle in the
// body, an unknown email becomes a sign-up claiming that handle.
//
// HTTP: POST /auth/login
// REQUEST BODY: {"email": "...", "password": "...", "handle": "optional"}
// RESPONSE: {"account": {...}, "token": "...", "created": bool}
func (h *AuthHandler) HandleLocalLogin(w http.ResponseWriter, r *http.Request) {
	var cred service.LocalCredential
	if err := decodeJSON(w, r, &cred); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.identity.ResolveLocal(r.Context(), cred)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.setSession(w, res.Token)
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// HandleLogout clears the session cookie. Tokens are stateless, so one
// already copied elsewhere stays valid until it expires.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the signed-in account.
//
// HTTP: GET /api/me (RequireAuth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	accountID, _ := auth.AccountIDFromContext(r.Context())
	acc, err := h.identity.GetAccount(r.Context(), accountID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *AuthHandler) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
