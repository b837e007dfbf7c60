// Package middleware provides net/http wrappers around the engine's
// authentication operations.
package middleware

import (
	"context"
	"net/http"
	"strings"

	authcore "github.com/halcyondev/authcore"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the claims a Guard-wrapped handler runs under.
func ClaimsFromContext(ctx context.Context) (*authcore.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*authcore.Claims)
	return claims, ok
}

// Guard rejects requests without a valid bearer access token and a live
// backing session, and injects the token claims into the request context.
func Guard(engine *authcore.Engine, opts authcore.AuthenticateOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := engine.Authenticate(r.Context(), token, opts)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CSRFHeader is the request header checked by [CSRFGuard].
const CSRFHeader = "X-CSRF-Token"

// CSRFGuard verifies the CSRF header against the authenticated session for
// state-changing methods. It must run inside [Guard], which provides the
// session id via the request claims.
func CSRFGuard(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			valid, err := engine.CheckCSRF(r.Context(), claims.SessionID, r.Header.Get(CSRFHeader))
			if err != nil || !valid {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
