package middleware

import (
	"context"
	"net/http"
	"strings"
)

// TokenValidator resolves an access token to the ID of the user it was issued
// for.
type TokenValidator interface {
	Validate(ctx context.Context, accessToken string) (int, error)
}

// AccessTokenAuth gates protected routes on a valid bearer access token and
// stores the resolved user ID in the request context under "userID".
func AccessTokenAuth(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			userID, err := tokens.Validate(r.Context(), parts[1])
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), "userID", userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
