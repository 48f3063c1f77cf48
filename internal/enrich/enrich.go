// Package enrich pulls starter content for a profile out of an existing page
// elsewhere. Callers only see a tagged Result; HTML never leaves here.
package enrich

import (
	"context"
	"errors"
)

// Kind tags where an import result came from.
type Kind string

const (
	// KindReal was parsed from the source page.
	KindReal Kind = "real"
	// KindMock is placeholder content returned because the source could not
	// be fetched. It must be shown to the operator as such and never merged
	// silently.
	KindMock Kind = "mock"
	// KindFailed carries no content, only Err.
	KindFailed Kind = "failed"
)

// MaxLinks caps how many links one import returns.
const MaxLinks = 10

type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Profile is the partial profile an import can produce.
type Profile struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Links       []Link `json:"links"`
}

// Result is the outcome of one import.
type Result struct {
	Kind    Kind    `json:"kind"`
	Profile Profile `json:"data"`
	Err     error   `json:"-"`
}

func (r Result) IsMock() bool { return r.Kind == KindMock }

// Importer fetches and parses a source URL.
//
// The returned error is reserved for unusable input (wrong host, malformed
// URL). Anything that goes wrong upstream is reported in the Result.
type Importer interface {
	Import(ctx context.Context, rawURL string) (Result, error)
}

// Response is the JSON form of a Result sent to API clients. Error carries
// a generic message only; upstream details stay in the server log.
type Response struct {
	Kind   Kind    `json:"kind"`
	IsMock bool    `json:"isMock"`
	Data   Profile `json:"data"`
	Error  string  `json:"error,omitempty"`
}

func NewResponse(r Result) Response {
	resp := Response{Kind: r.Kind, IsMock: r.IsMock(), Data: r.Profile}
	if r.Err != nil {
		resp.Error = "the source page could not be fetched"
	}
	if resp.Data.Links == nil {
		resp.Data.Links = []Link{}
	}
	return resp
}

// Result converts the wire form back.
func (r Response) Result() Result {
	res := Result{Kind: r.Kind, Profile: r.Data}
	if r.Error != "" {
		res.Err = errors.New(r.Error)
	}
	return res
}
