// Package handler is the HTTP layer: it parses requests, calls services and
// writes responses. Business rules live in internal/service.
package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// accents gives each theme its button colour.
var accents = map[string]string{
	"verdant": "#059669",
	"indigo":  "#4f46e5",
	"purple":  "#7c3aed",
	"rose":    "#e11d48",
	"amber":   "#d97706",
	"cyan":    "#0891b2",
}

// PageHandler renders the server-side HTML pages.
//
// TEMPLATE COMPOSITION:
// base.html holds the page shell and calls {{template "content" .}}. Each
// page file defines "content". Every page is parsed together with base into
// its own set once at startup, so "content" never clashes between pages.
type PageHandler struct {
	pages     map[string]*template.Template
	reads     *service.ReadPath
	profiles  *service.ProfileService
	providers []string
	logger    *slog.Logger
}

// NewPageHandler parses the embedded templates. providers lists the
// sign-in buttons shown on the home page.
func NewPageHandler(reads *service.ReadPath, profiles *service.ProfileService, providers []string, logger *slog.Logger) (*PageHandler, error) {
	funcs := template.FuncMap{"safeImage": safeImage}

	pages := make(map[string]*template.Template)
	for _, name := range []string{"profile", "notfound", "home", "onboarding"} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, err
		}
		pages[name] = t
	}

	return &PageHandler{
		pages:     pages,
		reads:     reads,
		profiles:  profiles,
		providers: providers,
		logger:    logger,
	}, nil
}

type pageData struct {
	Title  string
	Accent string

	Profile   *model.Projection
	Handle    string
	Claimable bool
	Providers []string
	Error     string
}

func (h *PageHandler) render(w http.ResponseWriter, status int, page string, data pageData) {
	if data.Accent == "" {
		data.Accent = accents[model.DefaultTheme]
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.pages[page].ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
	}
}

// HandleProfile renders the public page.
//
// HTTP: GET /{handle}
//
// An unknown handle gets a 404 page that offers the handle for claiming
// when it is valid and free.
func (h *PageHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "handle")
	proj, ok, err := h.reads.Render(r.Context(), raw)
	if err != nil {
		h.logger.Error("rendering profile failed", slog.String("handle", raw), slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if !ok {
		data := pageData{Title: "Not found"}
		if avail, err := h.profiles.CheckHandle(r.Context(), raw); err == nil {
			data.Handle, data.Claimable = avail.Handle, avail.Available
		}
		h.render(w, http.StatusNotFound, "notfound", data)
		return
	}

	h.render(w, http.StatusOK, "profile", pageData{
		Title:   proj.DisplayTitle,
		Accent:  accents[proj.Theme],
		Profile: proj,
	})
}

// HandleHome renders the landing page with the enabled sign-in options.
//
// HTTP: GET /
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "linkbio", Providers: h.providers}
	if r.URL.Query().Get("error") == "provider_conflict" {
		data.Error = "This email is already registered with a different sign-in method. Please use that one."
	}
	h.render(w, http.StatusOK, "home", data)
}

// HandleOnboarding renders the handle picker.
//
// HTTP: GET /onboarding
func (h *PageHandler) HandleOnboarding(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "onboarding", pageData{
		Title:  "Pick your handle",
		Handle: r.URL.Query().Get("handle"),
	})
}

// safeImage lets inline image data URIs through html/template, which
// otherwise rewrites every data: URL to "#ZgotmplZ". Anything that is
// neither an inline image nor http(s) is dropped.
func safeImage(src string) template.URL {
	switch {
	case strings.HasPrefix(src, "data:image/"):
		return template.URL(src)
	case safeRedirect(src):
		return template.URL(src)
	}
	return ""
}

// safeRedirect accepts only absolute http(s) URLs.
func safeRedirect(target string) bool {
	if target == "" {
		return false
	}
	u, err := url.Parse(target)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
