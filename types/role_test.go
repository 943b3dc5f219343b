package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"USER":       RoleUser,
		"user":       RoleUser,
		" ADMIN ":    RoleAdmin,
		"ROLE_ADMIN": RoleAdmin,
		"Role_User":  RoleUser,
	}
	for in, want := range cases {
		got, err := ParseRole(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseRole("superuser")
	assert.Error(t, err)
	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestRoleSet(t *testing.T) {
	set := NewRoleSet(RoleUser)
	assert.True(t, set.Has(RoleUser))
	assert.False(t, set.Has(RoleAdmin))
	assert.False(t, set.Has(Role(0)))
	assert.Equal(t, []string{"USER"}, set.Strings())

	both := NewRoleSet(RoleAdmin, RoleUser, Role(42))
	assert.Equal(t, []Role{RoleUser, RoleAdmin}, both.Roles())
	assert.True(t, NewRoleSet().IsEmpty())
}

func TestRoleJSON(t *testing.T) {
	data, err := json.Marshal(RoleAdmin)
	require.NoError(t, err)
	assert.JSONEq(t, `"ADMIN"`, string(data))

	var r Role
	require.NoError(t, json.Unmarshal([]byte(`"user"`), &r))
	assert.Equal(t, RoleUser, r)
	assert.Error(t, json.Unmarshal([]byte(`"root"`), &r))
}

func TestRoleScanValue(t *testing.T) {
	var r Role
	require.NoError(t, r.Scan([]byte("ADMIN")))
	assert.Equal(t, RoleAdmin, r)

	v, err := RoleUser.Value()
	require.NoError(t, err)
	assert.Equal(t, "USER", v)

	_, err = Role(0).Value()
	assert.Error(t, err)
	assert.Error(t, r.Scan(12))
}

func TestOwnerKind(t *testing.T) {
	assert.Equal(t, "ads", OwnerAd.Dir())
	assert.Equal(t, "users", OwnerUser.Dir())

	var k OwnerKind
	require.NoError(t, k.Scan("USER"))
	assert.Equal(t, OwnerUser, k)
	assert.Error(t, k.Scan("GROUP"))

	v, err := OwnerAd.Value()
	require.NoError(t, err)
	assert.Equal(t, "AD", v)
}
