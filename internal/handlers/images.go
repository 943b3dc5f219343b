package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/adboard/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// ImageHandler serves stored media by storage path.
type ImageHandler struct {
	media *services.MediaStore
}

func NewImageHandler(media *services.MediaStore) *ImageHandler {
	return &ImageHandler{media: media}
}

// ImageRouter registers image routes on the given router.
func ImageRouter(r chi.Router, media *services.MediaStore) {
	handler := NewImageHandler(media)

	r.Get("/*", handler.GetImage)
}

func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	// chi matches on the escaped path when the client's escaping differs
	// from Go's, so the wildcard may still carry %XX sequences.
	p, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		writeServiceError(w, r, services.ErrAssetNotFound, "failed to fetch image")
		return
	}
	asset, err := h.media.Fetch(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err, "failed to fetch image")
		return
	}

	w.Header().Set("Content-Type", asset.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(asset.Data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if !asset.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", asset.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(asset.Data)
}
