package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/adboard/apiserver/internal/services"
	"github.com/adboard/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// AdHandler provides HTTP handlers for ads.
type AdHandler struct {
	adService *services.AdService
	identity  *services.IdentityResolver
	maxUpload int64
}

// NewAdHandler constructs a handler with the provided services.
func NewAdHandler(adService *services.AdService, identity *services.IdentityResolver, maxUpload int64) *AdHandler {
	return &AdHandler{
		adService: adService,
		identity:  identity,
		maxUpload: uploadLimit(maxUpload),
	}
}

// AdRouter registers ad routes on the given router. Reading, changing and
// deleting a single ad is limited to admins and the ad's author.
func AdRouter(
	r chi.Router,
	adService *services.AdService,
	policy *services.OwnershipPolicy,
	identity *services.IdentityResolver,
	authMiddleware func(http.Handler) http.Handler,
	maxUpload int64,
) {
	handler := NewAdHandler(adService, identity, maxUpload)
	guard := requireRule(identity, adOwnerRule(policy))

	r.Get("/", handler.ListAds)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", handler.CreateAd)
		r.Get("/me", handler.ListMyAds)
		r.With(guard).Get("/{adID}", handler.GetAd)
		r.With(guard).Patch("/{adID}", handler.UpdateAd)
		r.With(guard).Delete("/{adID}", handler.DeleteAd)
		r.With(guard).Patch("/{adID}/image", handler.UpdateAdImage)
	})
}

func (h *AdHandler) ListAds(w http.ResponseWriter, r *http.Request) {
	ads, err := h.adService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to list ads")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(ads))
}

func (h *AdHandler) ListMyAds(w http.ResponseWriter, r *http.Request) {
	principal, err := h.identity.CurrentPrincipal(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to list ads")
		return
	}

	ads, err := h.adService.ListByAuthor(r.Context(), principal)
	if err != nil {
		writeServiceError(w, r, err, "failed to list ads")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(ads))
}

func (h *AdHandler) GetAd(w http.ResponseWriter, r *http.Request) {
	id, err := parseAdID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ad, err := h.adService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "failed to fetch ad")
		return
	}
	writeJSON(w, http.StatusOK, ad)
}

// CreateAd accepts a multipart form with an "image" file and a
// "properties" JSON document, sent either as a field or as a file part.
func (h *AdHandler) CreateAd(w http.ResponseWriter, r *http.Request) {
	principal, err := h.identity.CurrentPrincipal(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to create ad")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	props, err := parseAdProperties(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	image, err := parseImageFile(r.MultipartForm, h.maxUpload, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.adService.Create(r.Context(), principal, props, image)
	if err != nil {
		writeServiceError(w, r, err, "failed to create ad")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *AdHandler) UpdateAd(w http.ResponseWriter, r *http.Request) {
	id, err := parseAdID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var props types.AdProperties
	if err := decodeJSON(r, &props); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.adService.Update(r.Context(), id, props)
	if err != nil {
		writeServiceError(w, r, err, "failed to update ad")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *AdHandler) UpdateAdImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseAdID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	image, err := parseImageFile(r.MultipartForm, h.maxUpload, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.adService.UpdateImage(r.Context(), id, *image)
	if err != nil {
		writeServiceError(w, r, err, "failed to update ad image")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *AdHandler) DeleteAd(w http.ResponseWriter, r *http.Request) {
	id, err := parseAdID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.adService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "failed to delete ad")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseAdProperties(r *http.Request) (types.AdProperties, error) {
	raw := strings.TrimSpace(r.FormValue(formFieldProperties))
	if raw == "" {
		data, err := readPropertiesPart(r.MultipartForm)
		if err != nil {
			return types.AdProperties{}, err
		}
		raw = strings.TrimSpace(string(data))
	}
	if raw == "" {
		return types.AdProperties{}, errors.New("properties are required")
	}

	var props types.AdProperties
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return types.AdProperties{}, errors.New("invalid properties")
	}
	return props, nil
}

func readPropertiesPart(form *multipart.Form) ([]byte, error) {
	if form == nil || len(form.File[formFieldProperties]) == 0 {
		return nil, nil
	}
	file, err := form.File[formFieldProperties][0].Open()
	if err != nil {
		return nil, errors.New("failed to read properties")
	}
	defer file.Close()
	return io.ReadAll(io.LimitReader(file, 64<<10))
}
