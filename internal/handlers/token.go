package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/adboard/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "adboard"

var errMissingBearer = errors.New("missing bearer token")

// tokenClaims carries the principal: the subject is the account email and
// Roles lists role names.
type tokenClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

func issueToken(user types.User, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Roles: types.NewRoleSet(user.Role).Strings(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// parseToken verifies signature, issuer and expiry and rebuilds the
// principal. Unknown role names are dropped.
func parseToken(raw string, secret []byte) (types.Principal, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return types.Principal{}, err
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return types.Principal{}, errors.New("token has no subject")
	}

	roles := make([]types.Role, 0, len(claims.Roles))
	for _, name := range claims.Roles {
		if role, err := types.ParseRole(name); err == nil {
			roles = append(roles, role)
		}
	}
	return types.Principal{Username: subject, Roles: types.NewRoleSet(roles...)}, nil
}

func bearerToken(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errMissingBearer
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", errMissingBearer
	}
	return token, nil
}
