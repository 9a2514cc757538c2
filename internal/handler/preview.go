package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Dhrumilshah777/imageDrop/internal/apperror"
	"github.com/Dhrumilshah777/imageDrop/internal/auth"
	"github.com/Dhrumilshah777/imageDrop/internal/preview"
)

// PreviewHandler serves local previews of selected files to their owner.
type PreviewHandler struct {
	previews *preview.Registry
}

func NewPreviewHandler(previews *preview.Registry) *PreviewHandler {
	return &PreviewHandler{previews: previews}
}

// HandleGet writes the preview bytes. Other users' previews are reported
// as missing.
//
// HTTP: GET /previews/{token}
func (h *PreviewHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	userID, _ := auth.UserIDFromContext(r.Context())

	p, ok := h.previews.Get(token)
	if !ok || p.Owner != userID {
		writeError(w, apperror.NotFound("preview", token))
		return
	}

	w.Header().Set("Content-Type", p.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Data)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	w.Write(p.Data)
}
