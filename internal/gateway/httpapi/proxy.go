package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/lockbridge/gateway/internal/gateway/service"
	"github.com/lockbridge/gateway/internal/gateway/transform"
	"github.com/lockbridge/gateway/pkg/apierr"
	"github.com/lockbridge/gateway/pkg/httpx"
)

// maxProxyBodyBytes bounds inbound proxy request bodies.
const maxProxyBodyBytes = 10 << 20

// handleListIntegrations implements GET /proxy/integrations. Public: the
// response carries names only, never credentials or secrets.
func (s *Server) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"integrations": s.proxy.ListIntegrations(),
	})
}

// handleIntegrationStatus implements GET /proxy/{integration}/status.
func (s *Server) handleIntegrationStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.proxy.Status(r.Context(), r.PathValue("integration"))
	if err != nil {
		if errors.Is(err, service.ErrIntegrationNotFound) {
			apierr.ErrIntegrationNotFound.Write(w)
			return
		}
		s.serverError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, status)
}

// handleProxy implements {GET,POST,PUT,PATCH,DELETE} /proxy/{integration}/{endpoint}.
// Query parameters become path parameters for placeholder substitution;
// the upstream reply is relayed with its original status and body.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	integration := r.PathValue("integration")
	endpoint := r.PathValue("endpoint")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBodyBytes))
	if err != nil {
		apierr.ErrInvalidRequest.Write(w)
		return
	}

	pathParams := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			pathParams[key] = values[0]
		}
	}

	resp, err := s.proxy.Dispatch(r.Context(), integration, endpoint, pathParams, body)
	if err != nil {
		s.writeDispatchError(w, r, err)
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func (s *Server) writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	var terr *service.TransformationError
	var uerr *service.UpstreamError

	switch {
	case errors.Is(err, service.ErrIntegrationNotFound):
		apierr.ErrIntegrationNotFound.Write(w)
	case errors.Is(err, service.ErrEndpointNotFound):
		apierr.ErrEndpointNotFound.Write(w)
	case errors.As(err, &terr):
		// Validation failures carry their reason; anything else stays vague.
		description := "request payload could not be transformed"
		var verr *transform.ValidationError
		if errors.As(err, &verr) {
			description = verr.Reason
		}
		apierr.New(http.StatusBadRequest, apierr.CodeTransformationError, description).Write(w)
	case errors.As(err, &uerr):
		apierr.New(http.StatusBadGateway, apierr.CodeProxyError, "integration did not answer").Write(w)
	default:
		s.serverError(w, r, err)
	}
}
