package services

import (
	"errors"
	"fmt"

	"github.com/adboard/apiserver/internal/store"
)

var (
	// ErrNotAuthenticated is returned when no principal is attached to the
	// request.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrForbidden is returned when the principal is neither an admin nor
	// the owner of the resource.
	ErrForbidden = errors.New("forbidden")

	// Not-found variants. Each matches store.ErrNotFound with errors.Is.
	ErrUserNotFound    = fmt.Errorf("user %w", store.ErrNotFound)
	ErrAdNotFound      = fmt.Errorf("ad %w", store.ErrNotFound)
	ErrCommentNotFound = fmt.Errorf("comment %w", store.ErrNotFound)
	ErrAssetNotFound   = fmt.Errorf("media asset %w", store.ErrNotFound)

	// ErrStorageIO wraps blob store failures during an upload.
	ErrStorageIO = errors.New("storage io error")

	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidMedia       = errors.New("invalid media")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// notFoundAs maps a repository not-found error onto the given variant and
// passes every other error through.
func notFoundAs(err, variant error) error {
	if errors.Is(err, store.ErrNotFound) {
		return variant
	}
	return err
}
