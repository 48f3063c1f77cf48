package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/sakif/linkbio/internal/model"
)

const googleIssuer = "https://accounts.google.com"

// GoogleProvider signs users in with Google over OpenID Connect. Unlike the
// GitHub flow there is no profile API call: the identity comes from the
// signed ID token returned alongside the access token.
type GoogleProvider struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

var _ Provider = (*GoogleProvider)(nil)

// NewGoogleProvider fetches Google's discovery document, so it needs
// network access at startup.
func NewGoogleProvider(ctx context.Context, clientID, clientSecret, callbackURL string) (*GoogleProvider, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("auth: discovering Google OIDC provider: %w", err)
	}

	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (p *GoogleProvider) Name() model.Provider { return model.ProviderGoogle }

func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*model.ExternalIdentity, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging Google code: %w", err)
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return nil, errors.New("auth: Google response has no id_token")
	}
	return p.identityFromIDToken(ctx, raw)
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// identityFromIDToken verifies signature, issuer, audience and expiry, then
// requires a verified email.
func (p *GoogleProvider) identityFromIDToken(ctx context.Context, raw string) (*model.ExternalIdentity, error) {
	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("auth: verifying Google ID token: %w", err)
	}

	var c googleClaims
	if err := idToken.Claims(&c); err != nil {
		return nil, fmt.Errorf("auth: decoding Google claims: %w", err)
	}
	if c.Email == "" || !c.EmailVerified {
		return nil, errors.New("auth: Google account email is not verified")
	}

	return &model.ExternalIdentity{
		Provider:   model.ProviderGoogle,
		ExternalID: idToken.Subject,
		Email:      strings.ToLower(c.Email),
		Name:       c.Name,
	}, nil
}
