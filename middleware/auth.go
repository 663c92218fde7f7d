package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"tulisin/apperr"
	"tulisin/auth"
	"tulisin/respond"
)

// TokenVerifier turns a bearer token into the caller it was issued to.
type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// RequireAuth rejects requests without a valid "Authorization: Bearer" token
// and stores the caller in the request context.
func RequireAuth(tokens TokenVerifier, rs respond.Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r.Header.Get("Authorization"))
			if tokenStr == "" {
				rs.Error(w, r, apperr.Authentication("Access token required"))
				return
			}

			principal, err := tokens.Verify(tokenStr)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected access token")
				rs.Error(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}

// UserFromContext returns the authenticated caller. It is only absent on
// routes not wrapped by RequireAuth.
func UserFromContext(ctx context.Context) (auth.Principal, bool) {
	return auth.PrincipalFrom(ctx)
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
