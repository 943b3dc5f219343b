package services

import (
	"context"
	"strings"

	"github.com/adboard/apiserver/types"
)

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p. Only the authentication
// middleware should call it; everything below the handlers receives the
// principal as an explicit argument.
func WithPrincipal(ctx context.Context, p types.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// UserLookup finds user records by login name.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (types.User, error)
}

// IdentityResolver maps the caller of a request onto a principal and a
// user record. It performs lookups only.
type IdentityResolver struct {
	users UserLookup
}

func NewIdentityResolver(users UserLookup) *IdentityResolver {
	return &IdentityResolver{users: users}
}

// CurrentPrincipal returns the principal attached to ctx.
func (r *IdentityResolver) CurrentPrincipal(ctx context.Context) (types.Principal, error) {
	p, ok := ctx.Value(principalKey{}).(types.Principal)
	if !ok || strings.TrimSpace(p.Username) == "" {
		return types.Principal{}, ErrNotAuthenticated
	}
	return p, nil
}

// CurrentUser resolves the principal attached to ctx to its user record.
func (r *IdentityResolver) CurrentUser(ctx context.Context) (types.User, error) {
	p, err := r.CurrentPrincipal(ctx)
	if err != nil {
		return types.User{}, err
	}
	return r.UserFor(ctx, p)
}

// UserFor resolves p to its user record. A token can outlive its account,
// in which case ErrUserNotFound is returned.
func (r *IdentityResolver) UserFor(ctx context.Context, p types.Principal) (types.User, error) {
	username := strings.TrimSpace(p.Username)
	if username == "" {
		return types.User{}, ErrNotAuthenticated
	}
	user, err := r.users.GetByEmail(ctx, username)
	if err != nil {
		return types.User{}, notFoundAs(err, ErrUserNotFound)
	}
	return user, nil
}
