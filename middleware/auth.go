package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"go-storefront/models"
	"go-storefront/utils"
)

// Key type for context
type contextKey string

const UserContextKey = contextKey("user")

// ClaimsFrom returns the authenticated claims attached to ctx, if any
func ClaimsFrom(ctx context.Context) (*utils.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*utils.Claims)
	return claims, ok && claims != nil
}

// WithClaims attaches claims to ctx
func WithClaims(ctx context.Context, claims *utils.Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

// AuthMiddleware verifies JWT tokens and attaches user information to the context
func AuthMiddleware(tokens utils.Tokens) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := bearerClaims(r, tokens)
			if err != nil {
				utils.WriteError(w, nil, err)
				return
			}
			if claims == nil {
				utils.WriteError(w, nil, utils.UnauthorizedError("Authorization header missing"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth attaches claims when a valid bearer token is sent and lets
// anonymous requests through. A malformed or expired token is still rejected.
func OptionalAuth(tokens utils.Tokens) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := bearerClaims(r, tokens)
			if err != nil {
				utils.WriteError(w, nil, err)
				return
			}
			if claims != nil {
				r = r.WithContext(WithClaims(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminMiddleware ensures that the user has admin privileges
func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFrom(r.Context())
		if !ok || claims.Role != models.RoleAdmin {
			utils.WriteError(w, nil, utils.ForbiddenError("Forbidden: Admins only"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerClaims(r *http.Request, tokens utils.Tokens) (*utils.Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, nil
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, utils.UnauthorizedError("Invalid Authorization header format")
	}
	claims, err := tokens.Parse(parts[1])
	if err != nil {
		return nil, utils.UnauthorizedError("Invalid token")
	}
	return claims, nil
}
