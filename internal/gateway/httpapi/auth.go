package httpapi

import (
	"errors"
	"net/http"

	"github.com/lockbridge/gateway/internal/gateway/service"
	"github.com/lockbridge/gateway/pkg/apierr"
	"github.com/lockbridge/gateway/pkg/httpx"
	"github.com/lockbridge/gateway/pkg/slogx"
)

// Grant types the auth endpoints implement.
const (
	GrantClientCredentials = "client_credentials"
	GrantRefreshToken      = "refresh_token"
)

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
}

// handleToken implements POST /auth/token.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		apierr.ErrInvalidRequest.Write(w)
		return
	}
	if req.ClientID == "" || req.ClientSecret == "" {
		apierr.ErrInvalidRequest.Write(w)
		return
	}
	if req.GrantType != GrantClientCredentials {
		apierr.ErrUnsupportedGrantType.Write(w)
		return
	}

	client, err := s.tokens.Authenticate(r.Context(), req.ClientID, req.ClientSecret)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			apierr.ErrInvalidClient.Write(w)
			return
		}
		s.serverError(w, r, err)
		return
	}

	pair, err := s.tokens.IssueTokenPair(r.Context(), client)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	GrantType    string `json:"grant_type"`
}

// handleRefresh implements POST /auth/refresh. grant_type is optional on
// this endpoint but rejected when it names anything but refresh_token.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		apierr.ErrInvalidRequest.Write(w)
		return
	}
	if req.GrantType != "" && req.GrantType != GrantRefreshToken {
		apierr.ErrUnsupportedGrantType.Write(w)
		return
	}

	pair, err := s.tokens.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			apierr.ErrInvalidGrant.Write(w)
			return
		}
		s.serverError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, pair)
}

type revokeRequest struct {
	Token string `json:"token"`
}

// handleRevoke implements POST /auth/revoke. It answers 200 regardless of
// whether the token existed, so the endpoint cannot be used as an oracle.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Token == "" {
		apierr.ErrInvalidRequest.Write(w)
		return
	}

	if err := s.tokens.Revoke(r.Context(), req.Token); err != nil {
		// Still a 200; the client can do nothing useful with the failure.
		slogx.FromContext(r.Context()).Error("revoke failed", "error", err)
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "token revoked"})
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	slogx.FromContext(r.Context()).Error("request failed", "error", err)
	apierr.ErrServerError.Write(w)
}
