package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/adboard/apiserver/internal/services"
	"github.com/adboard/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
)

const (
	defaultMaxUploadBytes = 10 << 20
	maxMultipartMemory    = 32 << 20
	formFieldImage        = "image"
	formFieldProperties   = "properties"
)

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListResponse wraps a collection with its size.
type ListResponse[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

func newListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Count: len(items), Results: items}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps service errors onto HTTP statuses. fallback is the
// message used for unexpected failures, which are logged.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, services.ErrUserNotFound):
		// The token outlived its account.
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, services.ErrAdNotFound):
		writeError(w, http.StatusNotFound, "ad not found")
	case errors.Is(err, services.ErrCommentNotFound):
		writeError(w, http.StatusNotFound, "comment not found")
	case errors.Is(err, services.ErrAssetNotFound):
		writeError(w, http.StatusNotFound, "image not found")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidMedia):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidPassword):
		writeError(w, http.StatusForbidden, "invalid password")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, services.ErrUserExists):
		writeError(w, http.StatusConflict, "user already exists")
	default:
		slog.ErrorContext(r.Context(), fallback, "error", err, "method", r.Method, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func parseIDParam(r *http.Request, param, name string) (int, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s id", name)
	}
	return id, nil
}

func parseAdID(r *http.Request) (int, error) {
	return parseIDParam(r, "adID", "ad")
}

func parseCommentID(r *http.Request) (int, error) {
	return parseIDParam(r, "commentID", "comment")
}

func decodeJSON(r *http.Request, value any) error {
	if err := json.NewDecoder(r.Body).Decode(value); err != nil {
		return errors.New("invalid request")
	}
	return nil
}

// parseImageFile reads the single image part of a parsed multipart form.
// It returns nil when the part is absent and required is false.
func parseImageFile(form *multipart.Form, limit int64, required bool) (*services.Upload, error) {
	if form == nil {
		return nil, errors.New("missing form data")
	}

	files := form.File[formFieldImage]
	if len(files) == 0 {
		if required {
			return nil, errors.New("image file is required")
		}
		return nil, nil
	}
	if len(files) > 1 {
		return nil, errors.New("only one image file is allowed")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}

	data, err := readFileLimited(file, limit)
	_ = file.Close()
	if err != nil {
		return nil, err
	}

	return &services.Upload{
		Filename:    fileHeader.Filename,
		ContentType: strings.TrimSpace(fileHeader.Header.Get("Content-Type")),
		Data:        data,
	}, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}

func uploadLimit(limit int64) int64 {
	if limit <= 0 {
		return defaultMaxUploadBytes
	}
	return limit
}
