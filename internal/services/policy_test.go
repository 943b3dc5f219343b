package services

import (
	"context"
	"errors"
	"testing"

	"github.com/adboard/apiserver/internal/store"
	"github.com/adboard/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type policyFixture struct {
	policy   *OwnershipPolicy
	ads      *fakeAds
	comments *fakeComments
	users    *fakeUsers

	alice types.Principal
	bob   types.Principal
	admin types.Principal
}

func newPolicyFixture() policyFixture {
	users := newFakeUsers(
		types.User{ID: 1, Email: "alice@example.com", Role: types.RoleUser},
		types.User{ID: 2, Email: "bob@example.com", Role: types.RoleUser},
		types.User{ID: 3, Email: "root@example.com", Role: types.RoleAdmin},
	)
	ads := newFakeAds(
		types.Ad{ID: 10, AuthorID: 1, Title: "Bike"},
		types.Ad{ID: 11, AuthorID: 2, Title: "Lamp"},
	)
	comments := newFakeComments(
		types.Comment{ID: 100, AdID: 10, AuthorID: 2, Text: "still available?"},
		types.Comment{ID: 103, AdID: 10, AuthorID: 1, Text: "yes"},
		types.Comment{ID: 104, AdID: 11, AuthorID: 1, Text: "nice lamp"},
	)
	return policyFixture{
		policy:   NewOwnershipPolicy(ads, comments, NewIdentityResolver(users)),
		ads:      ads,
		comments: comments,
		users:    users,
		alice:    asPrincipal("alice@example.com", types.RoleUser),
		bob:      asPrincipal("bob@example.com", types.RoleUser),
		admin:    asPrincipal("root@example.com", types.RoleAdmin),
	}
}

func TestCanAccessAd(t *testing.T) {
	f := newPolicyFixture()
	ctx := context.Background()

	ok, err := f.policy.CanAccessAd(ctx, f.alice, 10)
	require.NoError(t, err)
	assert.True(t, ok, "author")

	ok, err = f.policy.CanAccessAd(ctx, f.bob, 10)
	require.NoError(t, err)
	assert.False(t, ok, "other user")

	ok, err = f.policy.CanAccessAd(ctx, f.admin, 11)
	require.NoError(t, err)
	assert.True(t, ok, "admin")
}

func TestCanAccessAdMissingAd(t *testing.T) {
	f := newPolicyFixture()

	for name, p := range map[string]types.Principal{"user": f.alice, "admin": f.admin} {
		ok, err := f.policy.CanAccessAd(context.Background(), p, 999)
		assert.False(t, ok, name)
		assert.ErrorIs(t, err, ErrAdNotFound, name)
		assert.ErrorIs(t, err, store.ErrNotFound, name)
	}
}

func TestCanAccessAdUnknownAccount(t *testing.T) {
	f := newPolicyFixture()

	_, err := f.policy.CanAccessAd(context.Background(), asPrincipal("gone@example.com", types.RoleUser), 10)
	assert.ErrorIs(t, err, ErrUserNotFound)

	// Admins are decided from the principal alone.
	ok, err := f.policy.CanAccessAd(context.Background(), asPrincipal("gone@example.com", types.RoleAdmin), 10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanAccessAdIsReadOnly(t *testing.T) {
	f := newPolicyFixture()
	before, _ := f.ads.List(context.Background())

	_, _ = f.policy.CanAccessAd(context.Background(), f.bob, 10)
	_, _ = f.policy.CanAccessAd(context.Background(), f.admin, 11)

	after, _ := f.ads.List(context.Background())
	assert.Equal(t, before, after)
}

func TestCanMutateComment(t *testing.T) {
	f := newPolicyFixture()
	ctx := context.Background()

	ok, err := f.policy.CanMutateComment(ctx, f.bob, 10, 100)
	require.NoError(t, err)
	assert.True(t, ok, "comment author")

	ok, err = f.policy.CanMutateComment(ctx, f.alice, 10, 100)
	require.NoError(t, err)
	assert.False(t, ok, "ad author is not the comment author")

	ok, err = f.policy.CanMutateComment(ctx, f.admin, 10, 103)
	require.NoError(t, err)
	assert.True(t, ok, "admin")
}

func TestCanMutateCommentNotFound(t *testing.T) {
	f := newPolicyFixture()
	ctx := context.Background()

	_, err := f.policy.CanMutateComment(ctx, f.bob, 10, 101)
	assert.ErrorIs(t, err, ErrCommentNotFound)

	// The comment exists but belongs to another ad.
	_, err = f.policy.CanMutateComment(ctx, f.alice, 10, 104)
	assert.ErrorIs(t, err, ErrCommentNotFound)

	_, err = f.policy.CanMutateComment(ctx, f.admin, 999, 100)
	assert.ErrorIs(t, err, ErrAdNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCanMutateCommentListError(t *testing.T) {
	f := newPolicyFixture()
	boom := errors.New("db down")
	f.comments.ListByAdFn = func(context.Context, int) ([]types.Comment, error) {
		return nil, boom
	}

	_, err := f.policy.CanMutateComment(context.Background(), f.admin, 10, 100)
	assert.ErrorIs(t, err, boom)
}

func TestPolicyAfterConcurrentDelete(t *testing.T) {
	f := newPolicyFixture()
	ctx := context.Background()

	ok, err := f.policy.CanAccessAd(ctx, f.alice, 10)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.ads.Delete(ctx, 10)
	require.NoError(t, err)

	_, err = f.policy.CanAccessAd(ctx, f.alice, 10)
	assert.ErrorIs(t, err, ErrAdNotFound)
}

func TestRuleCombinators(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	calls := 0
	grant := func(context.Context, types.Principal) (bool, error) { calls++; return true, nil }
	deny := func(context.Context, types.Principal) (bool, error) { calls++; return false, nil }
	fail := func(context.Context, types.Principal) (bool, error) { calls++; return false, boom }
	p := asPrincipal("alice@example.com", types.RoleUser)

	ok, err := HasRole(types.RoleUser)(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = HasRole(types.RoleAdmin)(ctx, p)
	assert.False(t, ok)

	calls = 0
	ok, err = AnyOf(grant, fail)(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, calls, "AnyOf stops at the first grant")

	ok, err = AnyOf(fail, grant)(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok, "a later grant wins over an earlier error")

	ok, err = AnyOf(deny, fail)(ctx, p)
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)

	calls = 0
	ok, err = AllOf(deny, grant)(ctx, p)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, calls, "AllOf stops at the first denial")

	ok, err = AllOf(grant, grant)(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = AllOf(grant, fail)(ctx, p)
	assert.ErrorIs(t, err, boom)

	ok, _ = AllOf()(ctx, p)
	assert.False(t, ok)
}

func TestAuthorizeAdRoute(t *testing.T) {
	f := newPolicyFixture()
	ctx := context.Background()
	guard := func(adID int) Rule {
		return AnyOf(
			HasRole(types.RoleAdmin),
			AllOf(HasRole(types.RoleUser), f.policy.AdAccess(adID)),
		)
	}

	assert.NoError(t, Authorize(ctx, f.alice, guard(10)))
	assert.ErrorIs(t, Authorize(ctx, f.bob, guard(10)), ErrForbidden)
	assert.NoError(t, Authorize(ctx, f.admin, guard(10)))
	assert.ErrorIs(t, Authorize(ctx, f.alice, guard(999)), ErrAdNotFound)

	noRoles := asPrincipal("alice@example.com")
	assert.ErrorIs(t, Authorize(ctx, noRoles, guard(10)), ErrForbidden)
}

func TestAuthorizeCommentRoute(t *testing.T) {
	f := newPolicyFixture()
	ctx := context.Background()

	assert.NoError(t, Authorize(ctx, f.bob, f.policy.CommentMutation(10, 100)))
	assert.ErrorIs(t, Authorize(ctx, f.alice, f.policy.CommentMutation(10, 100)), ErrForbidden)
	assert.ErrorIs(t, Authorize(ctx, f.alice, f.policy.CommentMutation(10, 555)), ErrCommentNotFound)
}
