package enrich

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html"

	"github.com/sakif/linkbio/internal/apperror"
)

var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.5",
}

// Linktree imports a public linktr.ee page.
type Linktree struct {
	client       *resty.Client
	mockFallback bool
	logger       *slog.Logger

	// hosts accepted as a source, matched against the URL hostname.
	hosts []string
}

var _ Importer = (*Linktree)(nil)

// NewLinktree returns an importer whose fetches give up after timeout. When
// mockFallback is set, an unreachable page yields a KindMock placeholder
// instead of KindFailed.
func NewLinktree(timeout time.Duration, mockFallback bool, logger *slog.Logger) *Linktree {
	c := resty.New().
		SetTimeout(timeout).
		SetHeaders(browserHeaders).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	return &Linktree{
		client:       c,
		mockFallback: mockFallback,
		logger:       logger,
		hosts:        []string{"linktr.ee", "www.linktr.ee"},
	}
}

func (l *Linktree) Import(ctx context.Context, rawURL string) (Result, error) {
	u, err := l.sourceURL(rawURL)
	if err != nil {
		return Result{}, err
	}

	body, err := l.fetch(ctx, u)
	if err != nil {
		l.logger.Warn("import fetch failed",
			slog.String("url", u),
			slog.String("error", err.Error()),
		)
		if l.mockFallback {
			return Result{Kind: KindMock, Profile: placeholder(), Err: err}, nil
		}
		return Result{Kind: KindFailed, Err: err}, nil
	}

	p, err := parsePage(body)
	if err != nil {
		return Result{Kind: KindFailed, Err: err}, nil
	}
	return Result{Kind: KindReal, Profile: p}, nil
}

func (l *Linktree) sourceURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperror.ValidationFailed("url", "url is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", apperror.ValidationFailed("url", "url must be an http(s) address")
	}
	if !l.acceptsHost(u.Hostname()) {
		return "", apperror.ValidationFailed("url", "only Linktree URLs are supported")
	}
	return u.String(), nil
}

func (l *Linktree) acceptsHost(host string) bool {
	host = strings.ToLower(host)
	for _, h := range l.hosts {
		if host == h {
			return true
		}
	}
	return false
}

func (l *Linktree) fetch(ctx context.Context, u string) ([]byte, error) {
	resp, err := l.client.R().SetContext(ctx).Get(u)
	if err != nil {
		return nil, fmt.Errorf("enrich: fetching %s: %w", u, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("enrich: fetching %s: status %d", u, resp.StatusCode())
	}
	return resp.Body(), nil
}

// page is what one pass over the document collects.
type page struct {
	meta     map[string]string
	title    string
	links    []Link
	nextData string
}

func parsePage(body []byte) (Profile, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return Profile{}, fmt.Errorf("enrich: parsing page: %w", err)
	}

	pg := &page{meta: make(map[string]string)}
	pg.walk(doc)

	p := Profile{
		Title:       firstNonEmpty(pg.meta["og:title"], pg.title),
		Description: pg.meta["og:description"],
		Image:       pg.meta["og:image"],
		Links:       pg.links,
	}

	// Pages rendered client-side carry their data in __NEXT_DATA__ instead.
	if len(p.Links) == 0 && pg.nextData != "" {
		fromNextData(pg.nextData, &p)
	}

	if len(p.Links) > MaxLinks {
		p.Links = p.Links[:MaxLinks]
	}
	if p.Links == nil {
		p.Links = []Link{}
	}
	return p, nil
}

func (pg *page) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "meta":
			if prop := attr(n, "property"); strings.HasPrefix(prop, "og:") {
				if _, seen := pg.meta[prop]; !seen {
					pg.meta[prop] = strings.TrimSpace(attr(n, "content"))
				}
			}
		case "title":
			if pg.title == "" {
				pg.title = strings.TrimSpace(textOf(n))
			}
		case "a":
			if link, ok := anchorLink(n); ok {
				pg.links = append(pg.links, link)
			}
			return
		case "script":
			if attr(n, "id") == "__NEXT_DATA__" {
				pg.nextData = textOf(n)
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		pg.walk(c)
	}
}

// anchorLink keeps outbound links with a plausible label. Footer and cookie
// links tend to be very short or very long.
func anchorLink(n *html.Node) (Link, bool) {
	href := strings.TrimSpace(attr(n, "href"))
	u, ok := webURL(href)
	if !ok || isLinktreeHost(u.Hostname()) {
		return Link{}, false
	}
	text := strings.Join(strings.Fields(textOf(n)), " ")
	if size := len([]rune(text)); size < 3 || size > 49 {
		return Link{}, false
	}
	return Link{Title: text, URL: href}, true
}

func fromNextData(raw string, p *Profile) {
	props := gjson.Get(raw, "props.pageProps")
	if !props.Exists() {
		return
	}

	props.Get("links").ForEach(func(_, v gjson.Result) bool {
		title := strings.TrimSpace(v.Get("title").String())
		u := strings.TrimSpace(v.Get("url").String())
		if _, ok := webURL(u); title != "" && ok {
			p.Links = append(p.Links, Link{Title: title, URL: u})
		}
		return len(p.Links) < MaxLinks
	})

	account := props.Get("account")
	p.Title = firstNonEmpty(p.Title, account.Get("pageTitle").String(), account.Get("username").String())
	p.Description = firstNonEmpty(p.Description, account.Get("description").String())
	p.Image = firstNonEmpty(p.Image, account.Get("profilePictureUrl").String())
}

// webURL parses raw and reports whether it is an absolute http(s) URL with a
// host. Anything else would be refused when the profile is saved.
func webURL(raw string) (*url.URL, bool) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, false
	}
	return u, true
}

func isLinktreeHost(host string) bool {
	host = strings.ToLower(host)
	return host == "linktr.ee" || strings.HasSuffix(host, ".linktr.ee")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// placeholder is the content shown when the source page is unreachable.
func placeholder() Profile {
	return Profile{
		Title:       "Sample Creator (Mock)",
		Description: "Placeholder content. The source page could not be fetched.",
		Links: []Link{
			{Title: "My Website", URL: "https://example.com"},
			{Title: "Newsletter", URL: "https://example.com/newsletter"},
			{Title: "Podcast", URL: "https://example.com/podcast"},
		},
	}
}
