// Package httpapi exposes the gateway over HTTP: the token endpoints,
// the webhook receiver and the authenticated proxy surface. Handlers
// decode, call the service layer and map sentinel errors onto the wire
// vocabulary; no business logic lives here.
package httpapi

import (
	"net/http"

	"github.com/lockbridge/gateway/internal/gateway/service"
	"github.com/lockbridge/gateway/internal/gateway/store"
	"github.com/lockbridge/gateway/pkg/httpx"
)

// Server holds the handler dependencies.
type Server struct {
	tokens   *service.TokenService
	webhooks *service.WebhookService
	proxy    *service.ProxyDispatcher
	store    store.Store
}

// NewServer wires the HTTP surface over the service layer.
func NewServer(tokens *service.TokenService, webhooks *service.WebhookService, proxy *service.ProxyDispatcher, st store.Store) *Server {
	return &Server{
		tokens:   tokens,
		webhooks: webhooks,
		proxy:    proxy,
		store:    st,
	}
}

// Routes builds the route table. Token endpoints are rate limited hard,
// webhooks moderately; the proxy surface sits behind bearer auth plus a
// per-client limit.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /auth/token", httpx.Chain(
		http.HandlerFunc(s.handleToken),
		httpx.RateLimitByIP(httpx.StrictLimit),
	))
	mux.Handle("POST /auth/refresh", httpx.Chain(
		http.HandlerFunc(s.handleRefresh),
		httpx.RateLimitByIP(httpx.StrictLimit),
	))
	mux.Handle("POST /auth/revoke", httpx.Chain(
		http.HandlerFunc(s.handleRevoke),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	))

	mux.Handle("POST /webhooks/{integration}", httpx.Chain(
		http.HandlerFunc(s.handleWebhook),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	))
	mux.Handle("POST /webhooks/{integration}/{event}", httpx.Chain(
		http.HandlerFunc(s.handleWebhook),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	))

	mux.Handle("GET /proxy/integrations", httpx.Chain(
		http.HandlerFunc(s.handleListIntegrations),
		httpx.RateLimitByIP(httpx.LenientLimit),
	))
	mux.Handle("GET /proxy/{integration}/status", s.authed(s.handleIntegrationStatus))

	for _, method := range []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	} {
		mux.Handle(method+" /proxy/{integration}/{endpoint}", s.authed(s.handleProxy))
	}

	mux.HandleFunc("GET /livez", s.handleLivez)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	return mux
}

func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return httpx.Chain(
		h,
		s.requireBearer,
		httpx.RateLimitByClient(httpx.LenientLimit),
	)
}
