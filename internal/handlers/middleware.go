package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/avelora/clinic-scheduler/internal/booking"
	"github.com/avelora/clinic-scheduler/libs/auth"
)

type callerKey struct{}

// RequireAuth verifies the bearer token and puts the resolved caller in the
// request context. 401 covers a missing, malformed or expired token and a
// role outside the known set.
func RequireAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token"})
				return
			}
			claims, err := auth.ParseAndVerifyHS256(strings.TrimPrefix(header, "Bearer "), secret)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token"})
				return
			}
			role, ok := booking.ParseRole(claims.Role)
			if !ok || claims.Sub == "" {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token"})
				return
			}

			caller := booking.Caller{ID: claims.Sub, Role: role}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
		})
	}
}

// CallerFrom returns the authenticated caller stored by RequireAuth.
func CallerFrom(ctx context.Context) (booking.Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(booking.Caller)
	return caller, ok
}

// ContextWithCaller injects a caller directly, bypassing token parsing.
// Used by tests.
func ContextWithCaller(ctx context.Context, caller booking.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}
