// Package client talks to a running linkbio server over its JSON API. It
// backs the operator commands and lets a draft.Session save against a live
// server.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/draft"
	"github.com/sakif/linkbio/internal/enrich"
	"github.com/sakif/linkbio/internal/model"
)

type Client struct {
	http *resty.Client
}

var _ draft.Saver = (*Client)(nil)

// New returns a client for the server at baseURL. token may be empty for
// the public endpoints; Login sets it.
func New(baseURL, token string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	if token != "" {
		c.SetAuthToken(token)
	}
	return &Client{http: c}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("client: server returned %d", e.Status)
	}
	return fmt.Sprintf("client: %s (%d): %s", e.Code, e.Status, e.Message)
}

// Unwrap lets callers use errors.Is with the apperror sentinels.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "handle_taken":
		return apperror.ErrHandleTaken
	case "handle_reserved":
		return apperror.ErrHandleReserved
	case "handle_immutable":
		return apperror.ErrHandleImmutable
	case "duplicate_email":
		return apperror.ErrDuplicateEmail
	case "provider_conflict":
		return apperror.ErrProviderConflict
	case "invalid_credential":
		return apperror.ErrInvalidCredential
	case "account_missing":
		return apperror.ErrAccountMissing
	}
	switch e.Status {
	case http.StatusBadRequest:
		return apperror.ErrValidation
	case http.StatusUnauthorized:
		return apperror.ErrUnauthorized
	case http.StatusForbidden:
		return apperror.ErrForbidden
	case http.StatusNotFound:
		return apperror.ErrNotFound
	case http.StatusConflict:
		return apperror.ErrConflict
	}
	return nil
}

// do sends req, decoding a success body into result when non-nil.
func (c *Client) do(req *resty.Request, method, path string, result any) error {
	apiErr := &APIError{}
	req.SetError(apiErr)
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		return apiErr
	}
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Handle   string `json:"handle,omitempty"`
}

type authResponse struct {
	Account *model.Account `json:"account"`
	Token   string         `json:"token"`
	Created bool           `json:"created"`
}

// Login signs in with email and password, or signs up when handle is set
// and the email is new. The session token is kept for later calls.
func (c *Client) Login(ctx context.Context, email, password, handle string) (*model.Account, error) {
	var out authResponse
	req := c.http.R().SetContext(ctx).SetBody(loginRequest{Email: email, Password: password, Handle: handle})
	if err := c.do(req, http.MethodPost, "/auth/login", &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, errors.New("client: login response carried no token")
	}
	c.http.SetAuthToken(out.Token)
	return out.Account, nil
}

// Token returns the bearer token in use, if any.
func (c *Client) Token() string { return c.http.Token }

func (c *Client) Me(ctx context.Context) (*model.Account, error) {
	var acc model.Account
	if err := c.do(c.http.R().SetContext(ctx), http.MethodGet, "/api/me", &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// FetchOwnProfile returns the signed-in owner's full profile, the starting
// point for a draft.Session.
func (c *Client) FetchOwnProfile(ctx context.Context) (*model.Profile, error) {
	var p model.Profile
	if err := c.do(c.http.R().SetContext(ctx), http.MethodGet, "/api/me/profile", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProfile replaces the editable fields of the profile at handle.
func (c *Client) SaveProfile(ctx context.Context, handle string, fields model.EditableFields) (*model.Profile, error) {
	var p model.Profile
	req := c.http.R().SetContext(ctx).SetBody(fields)
	if err := c.do(req, http.MethodPut, "/api/profiles/"+url.PathEscape(handle), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PublicProfile returns what a visitor sees at handle.
func (c *Client) PublicProfile(ctx context.Context, handle string) (*model.Projection, error) {
	var p model.Projection
	if err := c.do(c.http.R().SetContext(ctx), http.MethodGet, "/api/profiles/"+url.PathEscape(handle), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) CheckHandle(ctx context.Context, handle string) (*model.HandleAvailability, error) {
	var out model.HandleAvailability
	req := c.http.R().SetContext(ctx).SetBody(map[string]string{"handle": handle})
	if err := c.do(req, http.MethodPost, "/api/handles/check", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClaimHandle runs onboarding for the signed-in account.
func (c *Client) ClaimHandle(ctx context.Context, handle string) (*model.Account, error) {
	var acc model.Account
	req := c.http.R().SetContext(ctx).SetBody(map[string]string{"handle": handle})
	if err := c.do(req, http.MethodPost, "/api/onboarding", &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// Import asks the server to enrich from sourceURL.
func (c *Client) Import(ctx context.Context, sourceURL string) (enrich.Result, error) {
	var out enrich.Response
	req := c.http.R().SetContext(ctx).SetBody(map[string]string{"url": sourceURL})
	if err := c.do(req, http.MethodPost, "/api/import", &out); err != nil {
		return enrich.Result{}, err
	}
	return out.Result(), nil
}

// RecordClick reports one visitor click. The server acknowledges before
// the counter moves.
func (c *Client) RecordClick(ctx context.Context, ev model.ClickEvent) error {
	return c.do(c.http.R().SetContext(ctx).SetBody(ev), http.MethodPost, "/api/analytics/click", nil)
}
