package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/lockbridge/gateway/pkg/apierr"
	"github.com/lockbridge/gateway/pkg/httpx"
)

// requireBearer authenticates the request's access token and stashes the
// client ID and session in the request context. All failures are 401s
// with deliberately coarse descriptions.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			apierr.ErrNoAuthHeader.Write(w)
			return
		}

		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			apierr.ErrMalformedAuthHeader.Write(w)
			return
		}

		claims, session, err := s.tokens.ValidateAccessToken(r.Context(), token)
		if err != nil {
			apierr.ErrInvalidToken.Write(w)
			return
		}

		ctx := context.WithValue(r.Context(), httpx.CtxKeyClientID, claims.Subject)
		ctx = context.WithValue(ctx, httpx.CtxKeySession, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
