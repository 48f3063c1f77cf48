package auth

import (
	"context"

	"github.com/sakif/linkbio/internal/model"
)

// Provider is an external sign-in method driven by the OAuth
// authorization-code flow.
type Provider interface {
	Name() model.Provider

	// AuthURL is where the browser is sent to approve the sign-in. state is
	// echoed back on the callback for CSRF protection.
	AuthURL(state string) string

	// Exchange trades the callback code for a verified identity with an
	// email address.
	Exchange(ctx context.Context, code string) (*model.ExternalIdentity, error)
}
