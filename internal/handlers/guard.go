package handlers

import (
	"net/http"

	"github.com/adboard/apiserver/internal/services"
	"github.com/adboard/apiserver/types"
)

// ruleFor builds the authorization rule for a request, usually from its
// URL parameters.
type ruleFor func(r *http.Request) (services.Rule, error)

// requireRule admits the request only when the rule grants access to the
// authenticated principal. It must run after the auth middleware.
func requireRule(identity *services.IdentityResolver, build ruleFor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := identity.CurrentPrincipal(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			rule, err := build(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}

			if err := services.Authorize(r.Context(), principal, rule); err != nil {
				writeServiceError(w, r, err, "failed to authorize request")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// adOwnerRule grants admins and the author of the ad in the URL. Ownership
// alone is enough; no user role is required.
func adOwnerRule(policy *services.OwnershipPolicy) ruleFor {
	return func(r *http.Request) (services.Rule, error) {
		adID, err := parseAdID(r)
		if err != nil {
			return nil, err
		}
		return services.AnyOf(services.HasRole(types.RoleAdmin), policy.AdAccess(adID)), nil
	}
}

// commentAuthorRule grants admins and the author of the comment in the URL.
func commentAuthorRule(policy *services.OwnershipPolicy) ruleFor {
	return func(r *http.Request) (services.Rule, error) {
		adID, err := parseAdID(r)
		if err != nil {
			return nil, err
		}
		commentID, err := parseCommentID(r)
		if err != nil {
			return nil, err
		}
		return services.AnyOf(services.HasRole(types.RoleAdmin), policy.CommentMutation(adID, commentID)), nil
	}
}
