package types

// Principal is the authenticated identity making a request. It is derived
// from the bearer token on every request and never persisted.
type Principal struct {
	// Username is the login name of the caller, which is the user's email.
	Username string

	// Roles is the set of roles the token was issued with.
	Roles RoleSet
}

// IsZero reports whether the principal carries no identity.
func (p Principal) IsZero() bool {
	return p.Username == ""
}

// IsAdmin is shorthand for p.Roles.Has(RoleAdmin).
func (p Principal) IsAdmin() bool {
	return p.Roles.Has(RoleAdmin)
}
