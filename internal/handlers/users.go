package handlers

import (
	"net/http"

	"github.com/adboard/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// UserHandler provides profile endpoints for the authenticated user.
type UserHandler struct {
	userService *services.UserService
	identity    *services.IdentityResolver
	maxUpload   int64
}

func NewUserHandler(userService *services.UserService, identity *services.IdentityResolver, maxUpload int64) *UserHandler {
	return &UserHandler{
		userService: userService,
		identity:    identity,
		maxUpload:   uploadLimit(maxUpload),
	}
}

// UserRouter registers user routes on the given router.
func UserRouter(
	r chi.Router,
	userService *services.UserService,
	identity *services.IdentityResolver,
	authMiddleware func(http.Handler) http.Handler,
	maxUpload int64,
) {
	handler := NewUserHandler(userService, identity, maxUpload)

	r.Use(authMiddleware)
	r.Get("/me", handler.GetMe)
	r.Patch("/me", handler.UpdateMe)
	r.Post("/set_password", handler.SetPassword)
	r.Patch("/me/image", handler.UpdateMyImage)
}

type SetPasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.identity.CurrentUser(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	principal, err := h.identity.CurrentPrincipal(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to update user")
		return
	}

	var req services.Profile
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), principal, req)
	if err != nil {
		writeServiceError(w, r, err, "failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	principal, err := h.identity.CurrentPrincipal(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to change password")
		return
	}

	var req SetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	if err := h.userService.ChangePassword(r.Context(), principal, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err, "failed to change password")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) UpdateMyImage(w http.ResponseWriter, r *http.Request) {
	principal, err := h.identity.CurrentPrincipal(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to update image")
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

	user, err := h.userService.UpdateImage(r.Context(), principal, *image)
	if err != nil {
		writeServiceError(w, r, err, "failed to update image")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
