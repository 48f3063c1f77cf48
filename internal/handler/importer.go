package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/linkbio/internal/auth"
	"github.com/sakif/linkbio/internal/enrich"
	"github.com/sakif/linkbio/internal/service"
)

type ImportHandler struct {
	imports *service.ImportService
	logger  *slog.Logger
}

func NewImportHandler(imports *service.ImportService, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{imports: imports, logger: logger}
}

// HandleImport enriches from a source URL for the signed-in owner.
//
// HTTP: POST /api/import (RequireAuth)
// REQUEST BODY: {"url": "https://linktr.ee/alice"}
// RESPONSE: {"kind": "real|mock|failed", "isMock": bool, "data": {...}, "error": "..."}
//
// Upstream trouble is still a 200: the body says what happened. isMock
// marks placeholder content the owner must not mistake for their own.
func (h *ImportHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	accountID, _ := auth.AccountIDFromContext(r.Context())
	res, err := h.imports.Import(r.Context(), accountID, req.URL)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, enrich.NewResponse(res))
}
