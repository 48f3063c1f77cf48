package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/service"
)

// AnalyticsHandler takes visitor clicks. Nothing here waits on storage.
type AnalyticsHandler struct {
	clicks *service.ClickAccumulator
	reads  *service.ReadPath
	logger *slog.Logger
}

func NewAnalyticsHandler(clicks *service.ClickAccumulator, reads *service.ReadPath, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{clicks: clicks, reads: reads, logger: logger}
}

// clickRequest also accepts the older "username" and "type" keys.
type clickRequest struct {
	Handle   string `json:"handle"`
	Username string `json:"username"`
	ItemID   string `json:"itemId"`
	ItemKind string `json:"itemKind"`
	Type     string `json:"type"`
}

func (c clickRequest) normalize() (handle, itemID, kind string) {
	handle, kind = c.Handle, c.ItemKind
	if handle == "" {
		handle = c.Username
	}
	if kind == "" {
		kind = c.Type
	}
	return handle, c.ItemID, kind
}

// HandleClick records one click.
//
// HTTP: POST /api/analytics/click
// REQUEST BODY: {"handle": "alice", "itemId": "...", "itemKind": "link"}
// RESPONSE: 202 {"ok": true}
//
// The 202 only acknowledges receipt. The counter moves later, or not at all
// if the item is unknown or storage is unavailable.
func (h *AnalyticsHandler) HandleClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	handle, itemID, kind := req.normalize()
	if err := h.clicks.RecordClick(handle, itemID, kind); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

// HandleRedirect records a click and sends the visitor on to the item.
//
// HTTP: GET /go/{handle}/{kind}/{itemID}
//
// The redirect never depends on the click being recorded. An unknown item
// or a bad kind goes back to the profile page.
func (h *AnalyticsHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	kind := chi.URLParam(r, "kind")
	itemID := chi.URLParam(r, "itemID")

	back := "/" + handle
	proj, ok, err := h.reads.Render(r.Context(), handle)
	if err != nil || !ok {
		http.Redirect(w, r, back, http.StatusFound)
		return
	}

	target := ""
	switch model.ItemKind(kind) {
	case model.ItemLink:
		if l, found := proj.FindLink(itemID); found {
			target = l.URL
		}
	case model.ItemStore:
		if s, found := proj.FindStoreItem(itemID); found {
			target = s.URL
		}
	}
	if !safeRedirect(target) {
		http.Redirect(w, r, "/"+proj.Handle, http.StatusFound)
		return
	}

	if err := h.clicks.RecordClick(proj.Handle, itemID, kind); err != nil {
		h.logger.Debug("click not recorded", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, target, http.StatusFound)
}
