package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/verita-sec/verita/internal/api/presenter"
	"github.com/verita-sec/verita/internal/core"
	"github.com/verita-sec/verita/internal/token"
)

// AuthCookieName is the HttpOnly cookie browsers authenticate with.
// Service-to-service callers use the Authorization header instead; the
// cookie wins when both are present.
const AuthCookieName = "auth_token"

type authKeyType struct{}

var authKey authKeyType

// AuthFromContext returns the verified principal, if any.
func AuthFromContext(ctx context.Context) (core.AuthResult, bool) {
	auth, ok := ctx.Value(authKey).(core.AuthResult)
	return auth, ok
}

// ExtractToken pulls the raw bearer token from the request without
// verifying it. Checked cookie first, then the Authorization header.
func ExtractToken(r *http.Request) (string, error) {
	if c, err := r.Cookie(AuthCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if tok := strings.TrimPrefix(auth, "Bearer "); tok != "" {
			return tok, nil
		}
	}
	return "", core.ErrNoToken
}

// Authenticate verifies the bearer token and stores the resulting
// principal in the request context. Requests without a valid token are
// rejected with a collapsed 401.
func Authenticate(verifier *token.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := ExtractToken(r)
			if err != nil {
				presenter.Error(w, r, err)
				return
			}

			claims, err := verifier.Verify(r.Context(), raw)
			if err != nil {
				log.Ctx(r.Context()).Debug().Err(err).Msg("token verification failed")
				presenter.Error(w, r, err)
				return
			}

			auth := core.AuthResult{
				CustomerID: claims.CustomerID,
				RawToken:   raw,
				Claims:     claims,
			}
			ctx := context.WithValue(r.Context(), authKey, auth)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
