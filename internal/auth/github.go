package auth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/sakif/linkbio/internal/model"
)

const githubAPI = "https://api.github.com"

// githubUser is the subset of GitHub's /user response we use.
type githubUser struct {
	ID    int64  `json:"id"` // stable numeric id; logins can be renamed
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"` // empty when the user hides it
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubProvider signs users in with GitHub OAuth.
//
// FLOW:
//  1. AuthURL sends the browser to GitHub with our client id and a state.
//  2. GitHub redirects back with a one-time code.
//  3. Exchange trades the code for an access token (server to server, so
//     the client secret never reaches the browser) and calls the API.
type GitHubProvider struct {
	config  *oauth2.Config
	apiBase string
}

var _ Provider = (*GitHubProvider)(nil)

func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiBase: githubAPI,
	}
}

func (p *GitHubProvider) Name() model.Provider { return model.ProviderGitHub }

func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*model.ExternalIdentity, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging GitHub code: %w", err)
	}
	// config.Client attaches the bearer token to every request.
	return p.fetchIdentity(ctx, p.config.Client(ctx, tok))
}

// fetchIdentity reads /user and, when the public email is hidden, falls back
// to the primary verified address from /user/emails.
func (p *GitHubProvider) fetchIdentity(ctx context.Context, hc *http.Client) (*model.ExternalIdentity, error) {
	rc := resty.NewWithClient(hc).
		SetBaseURL(p.apiBase).
		SetHeader("Accept", "application/vnd.github+json")

	var u githubUser
	resp, err := rc.R().SetContext(ctx).SetResult(&u).Get("/user")
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("auth: GitHub /user returned status %d", resp.StatusCode())
	}
	if u.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	email := u.Email
	if email == "" {
		var emails []githubEmail
		resp, err := rc.R().SetContext(ctx).SetResult(&emails).Get("/user/emails")
		if err != nil {
			return nil, fmt.Errorf("auth: calling GitHub /user/emails: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("auth: GitHub /user/emails returned status %d", resp.StatusCode())
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
	}
	if email == "" {
		return nil, fmt.Errorf("auth: GitHub account %s has no verified email", u.Login)
	}

	name := u.Name
	if name == "" {
		name = u.Login
	}
	return &model.ExternalIdentity{
		Provider:   model.ProviderGitHub,
		ExternalID: strconv.FormatInt(u.ID, 10),
		Email:      strings.ToLower(email),
		Name:       name,
	}, nil
}
