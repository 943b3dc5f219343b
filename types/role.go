package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the closed set of authorization levels a user can hold.
type Role int

// Supported roles.
const (
	// RoleUser is granted to every registered account.
	RoleUser Role = iota + 1

	// RoleAdmin may read and modify any ad or comment.
	RoleAdmin
)

// String returns the canonical upper-case role name stored in the database
// and carried in tokens.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "USER"
	case RoleAdmin:
		return "ADMIN"
	default:
		return "UNKNOWN"
	}
}

// ParseRole converts a role name into a Role. Matching is case-insensitive
// and tolerates a "ROLE_" prefix.
func ParseRole(s string) (Role, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, "ROLE_")
	switch name {
	case "USER":
		return RoleUser, nil
	case "ADMIN":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value implements driver.Valuer.
func (r Role) Value() (driver.Value, error) {
	if r != RoleUser && r != RoleAdmin {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return r.String(), nil
}

// Scan implements sql.Scanner.
func (r *Role) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Role", src)
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// RoleSet is an immutable set of roles held by a principal.
type RoleSet struct {
	bits uint8
}

// NewRoleSet builds a set from the given roles. Unknown values are ignored.
func NewRoleSet(roles ...Role) RoleSet {
	var set RoleSet
	for _, r := range roles {
		if r == RoleUser || r == RoleAdmin {
			set.bits |= 1 << uint(r)
		}
	}
	return set
}

// Has reports whether the set contains role.
func (s RoleSet) Has(role Role) bool {
	if role != RoleUser && role != RoleAdmin {
		return false
	}
	return s.bits&(1<<uint(role)) != 0
}

// Roles lists the set's members in ascending order.
func (s RoleSet) Roles() []Role {
	var roles []Role
	for _, r := range []Role{RoleUser, RoleAdmin} {
		if s.Has(r) {
			roles = append(roles, r)
		}
	}
	return roles
}

// Strings lists the set's members by name, for token claims.
func (s RoleSet) Strings() []string {
	roles := s.Roles()
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.String())
	}
	return names
}

// IsEmpty reports whether no role is present.
func (s RoleSet) IsEmpty() bool {
	return s.bits == 0
}
