package http

import (
	"context"
	"net/http"

	"essay-grader/internal/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

// RequireUser validates the Bearer JWT and stashes the claims in the request
// context.
func RequireUser(tokens *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("Authorization")
			if len(got) < 8 || got[:7] != "Bearer " {
				writeJSON(w, http.StatusUnauthorized, errResp{"missing bearer token"})
				return
			}
			claims, err := tokens.Verify(got[7:])
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errResp{"invalid token"})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

func userFrom(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
	return claims
}
