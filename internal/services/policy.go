package services

import (
	"context"

	"github.com/adboard/apiserver/types"
)

// AdLookup loads ads by id.
type AdLookup interface {
	Get(ctx context.Context, id int) (types.Ad, error)
}

// CommentLister lists the comments of an ad.
type CommentLister interface {
	ListByAd(ctx context.Context, adID int) ([]types.Comment, error)
}

// OwnershipPolicy answers whether a principal is an admin or the author of
// an ad or comment. It reads live state on every call and holds no locks;
// authorship never changes after creation, so only existence can race, and
// a concurrent delete surfaces as a not-found error.
//
// It does not decide whether the principal is authenticated.
type OwnershipPolicy struct {
	ads      AdLookup
	comments CommentLister
	identity *IdentityResolver
}

func NewOwnershipPolicy(ads AdLookup, comments CommentLister, identity *IdentityResolver) *OwnershipPolicy {
	return &OwnershipPolicy{
		ads:      ads,
		comments: comments,
		identity: identity,
	}
}

// CanAccessAd reports whether principal may read or modify the ad. The ad
// must exist (ErrAdNotFound otherwise); then admins are allowed, and
// anyone else only if they authored it.
func (p *OwnershipPolicy) CanAccessAd(ctx context.Context, principal types.Principal, adID int) (bool, error) {
	ad, err := p.ads.Get(ctx, adID)
	if err != nil {
		return false, notFoundAs(err, ErrAdNotFound)
	}
	if principal.IsAdmin() {
		return true, nil
	}
	return p.isAuthor(ctx, principal, ad.AuthorID)
}

// CanMutateComment reports whether principal may edit or delete the
// comment. The comment is found by id among the ad's comments.
func (p *OwnershipPolicy) CanMutateComment(ctx context.Context, principal types.Principal, adID, commentID int) (bool, error) {
	if _, err := p.ads.Get(ctx, adID); err != nil {
		return false, notFoundAs(err, ErrAdNotFound)
	}

	comments, err := p.comments.ListByAd(ctx, adID)
	if err != nil {
		return false, err
	}

	var (
		comment types.Comment
		found   bool
	)
	for _, c := range comments {
		if c.ID == commentID {
			comment, found = c, true
			break
		}
	}
	if !found {
		return false, ErrCommentNotFound
	}

	if principal.IsAdmin() {
		return true, nil
	}
	return p.isAuthor(ctx, principal, comment.AuthorID)
}

func (p *OwnershipPolicy) isAuthor(ctx context.Context, principal types.Principal, authorID int) (bool, error) {
	user, err := p.identity.UserFor(ctx, principal)
	if err != nil {
		return false, err
	}
	return user.ID == authorID, nil
}

// AdAccess is CanAccessAd as a Rule.
func (p *OwnershipPolicy) AdAccess(adID int) Rule {
	return func(ctx context.Context, principal types.Principal) (bool, error) {
		return p.CanAccessAd(ctx, principal, adID)
	}
}

// CommentMutation is CanMutateComment as a Rule.
func (p *OwnershipPolicy) CommentMutation(adID, commentID int) Rule {
	return func(ctx context.Context, principal types.Principal) (bool, error) {
		return p.CanMutateComment(ctx, principal, adID, commentID)
	}
}

// Rule is a single authorization decision for a principal.
type Rule func(ctx context.Context, principal types.Principal) (bool, error)

// HasRole grants when the principal holds role.
func HasRole(role types.Role) Rule {
	return func(_ context.Context, principal types.Principal) (bool, error) {
		return principal.Roles.Has(role), nil
	}
}

// AnyOf grants when any rule grants. Rules run in order and stop at the
// first grant; if none grants, the first error seen is returned.
func AnyOf(rules ...Rule) Rule {
	return func(ctx context.Context, principal types.Principal) (bool, error) {
		var firstErr error
		for _, rule := range rules {
			ok, err := rule(ctx, principal)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if ok {
				return true, nil
			}
		}
		return false, firstErr
	}
}

// AllOf grants when every rule grants. It stops at the first denial or
// error.
func AllOf(rules ...Rule) Rule {
	return func(ctx context.Context, principal types.Principal) (bool, error) {
		if len(rules) == 0 {
			return false, nil
		}
		for _, rule := range rules {
			ok, err := rule(ctx, principal)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
}

// Authorize evaluates rule and turns a denial into ErrForbidden.
func Authorize(ctx context.Context, principal types.Principal, rule Rule) error {
	ok, err := rule(ctx, principal)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
