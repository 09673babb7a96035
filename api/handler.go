// Package api serves the read-only REST surface used by browser front-ends
// for status polling and thumbnails.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/traineemgr/server/gallery"
	"github.com/traineemgr/server/logger"
	"github.com/traineemgr/server/service"
)

type GalleryHandler struct {
	svc *service.Service
}

func NewGalleryHandler(svc *service.Service) *GalleryHandler {
	return &GalleryHandler{svc: svc}
}

func (h *GalleryHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", h.HandleStatus)
	mux.HandleFunc("GET /api/images", h.HandleImages)
	mux.HandleFunc("GET /api/images/{name}", h.HandleImage)
}

func (h *GalleryHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *GalleryHandler) HandleImages(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Gallery(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if snap.Images == nil {
		snap.Images = []gallery.Image{}
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleImage serves the image bytes of one gallery entry.
func (h *GalleryHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	img, err := h.svc.Image(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, img.Path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.NewRequestLogger().Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, gallery.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrNoGallery):
		status = http.StatusConflict
	default:
		logger.NewRequestLogger().Error("api request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
