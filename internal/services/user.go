package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/adboard/apiserver/internal/store"
	"github.com/adboard/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	SetImagePath(ctx context.Context, id int, path string) error
}

// Registration holds the fields of a new account.
type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// Profile holds the user-editable profile fields.
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo     UserRepository
	identity *IdentityResolver
	media    *MediaStore
}

func NewUserService(repo UserRepository, identity *IdentityResolver, media *MediaStore) *UserService {
	return &UserService{
		repo:     repo,
		identity: identity,
		media:    media,
	}
}

// Register creates a USER account. The email is the login name.
func (s *UserService) Register(ctx context.Context, req Registration) (types.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !strings.Contains(email, "@") {
		return types.User{}, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if err := validatePassword(req.Password); err != nil {
		return types.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         types.RoleUser,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, ErrUserExists
		}
		return types.User{}, err
	}
	slog.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Authenticate checks the credentials and returns the matching user. An
// unknown email and a wrong password are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) Me(ctx context.Context, principal types.Principal) (types.User, error) {
	return s.identity.UserFor(ctx, principal)
}

func (s *UserService) UpdateProfile(ctx context.Context, principal types.Principal, profile Profile) (types.User, error) {
	user, err := s.identity.UserFor(ctx, principal)
	if err != nil {
		return types.User{}, err
	}
	user.FirstName = strings.TrimSpace(profile.FirstName)
	user.LastName = strings.TrimSpace(profile.LastName)
	user.Phone = strings.TrimSpace(profile.Phone)

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, notFoundAs(err, ErrUserNotFound)
	}
	return updated, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, principal types.Principal, current, next string) error {
	user, err := s.identity.UserFor(ctx, principal)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return ErrInvalidPassword
	}
	if err := validatePassword(next); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	if _, err := s.repo.Update(ctx, user); err != nil {
		return notFoundAs(err, ErrUserNotFound)
	}
	slog.InfoContext(ctx, "password changed", "user_id", user.ID)
	return nil
}

// UpdateImage replaces principal's avatar.
func (s *UserService) UpdateImage(ctx context.Context, principal types.Principal, image Upload) (types.User, error) {
	user, err := s.identity.UserFor(ctx, principal)
	if err != nil {
		return types.User{}, err
	}
	owner := types.MediaOwner{Kind: types.OwnerUser, Ref: user.ID, Key: user.Email}
	path, storeErr := s.media.Store(ctx, owner, image.Filename, image.ContentType, image.Data)
	if path == "" {
		return user, storeErr
	}
	if err := s.repo.SetImagePath(ctx, user.ID, path); err != nil {
		return user, notFoundAs(err, ErrUserNotFound)
	}
	user.ImagePath = path
	return user, storeErr
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	return nil
}
