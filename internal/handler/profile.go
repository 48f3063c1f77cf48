package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/auth"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/service"
)

// ProfileHandler serves the handle namespace and profile JSON.
type ProfileHandler struct {
	profiles *service.ProfileService
	reads    *service.ReadPath
	logger   *slog.Logger
}

func NewProfileHandler(profiles *service.ProfileService, reads *service.ReadPath, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, reads: reads, logger: logger}
}

type handleRequest struct {
	Handle string `json:"handle"`
}

// notFoundResponse tells the caller whether the missing handle could be
// claimed, so a UI can offer that instead of a dead end.
type notFoundResponse struct {
	ErrorResponse
	Handle    string `json:"handle,omitempty"`
	Claimable bool   `json:"claimable"`
}

// HandleCheck answers "could I claim this handle right now?".
//
// HTTP: POST /api/handles/check
// REQUEST BODY: {"handle": "Alice"}
// RESPONSE: {"handle": "alice", "available": false, "reason": "taken"}
func (h *ProfileHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	var req handleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	avail, err := h.profiles.CheckHandle(r.Context(), req.Handle)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, avail)
}

// HandleOnboarding claims a handle for the signed-in account.
//
// HTTP: POST /api/onboarding (RequireAuth)
func (h *ProfileHandler) HandleOnboarding(w http.ResponseWriter, r *http.Request) {
	var req handleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	accountID, _ := auth.AccountIDFromContext(r.Context())
	acc, err := h.profiles.ClaimHandle(r.Context(), accountID, req.Handle)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// HandleGetPublic returns the visitor projection.
//
// HTTP: GET /api/profiles/{handle}
//
// An unknown handle is a normal 404 carrying "claimable".
func (h *ProfileHandler) HandleGetPublic(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "handle")
	proj, ok, err := h.reads.Render(r.Context(), raw)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !ok {
		resp := notFoundResponse{
			ErrorResponse: ErrorResponse{Error: "not_found", Message: "no profile at this handle"},
		}
		resp.Handle, resp.Claimable = h.claimable(r, raw)
		writeJSON(w, http.StatusNotFound, resp)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

func (h *ProfileHandler) claimable(r *http.Request, raw string) (string, bool) {
	avail, err := h.profiles.CheckHandle(r.Context(), raw)
	if err != nil {
		return "", false
	}
	return avail.Handle, avail.Available
}

// HandleGetOwn returns the signed-in owner's full profile.
//
// HTTP: GET /api/me/profile (RequireAuth)
func (h *ProfileHandler) HandleGetOwn(w http.ResponseWriter, r *http.Request) {
	accountID, _ := auth.AccountIDFromContext(r.Context())
	p, err := h.profiles.GetOwnProfile(r.Context(), accountID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleSave replaces the editable fields of the caller's own profile.
//
// HTTP: PUT /api/profiles/{handle} (RequireAuth)
// REQUEST BODY: model.EditableFields. Unknown keys, counters and anything
// else the owner does not control are ignored by decoding.
func (h *ProfileHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var fields model.EditableFields
	if err := decodeJSON(w, r, &fields); err != nil {
		writeError(w, h.logger, err)
		return
	}
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("valid authentication required"))
		return
	}

	saved, err := h.profiles.Save(r.Context(), accountID, chi.URLParam(r, "handle"), fields)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
