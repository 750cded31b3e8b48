package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/lockbridge/gateway/internal/gateway/service"
	"github.com/lockbridge/gateway/pkg/apierr"
	"github.com/lockbridge/gateway/pkg/httpx"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Webhook-Signature"

// maxWebhookBytes bounds how much of a delivery the gateway will read.
const maxWebhookBytes = 1 << 20

// handleWebhook implements POST /webhooks/{integration} and
// POST /webhooks/{integration}/{event}. The signature is computed over
// the raw body bytes, so the body is read before anything parses it.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	integration := r.PathValue("integration")
	event := r.PathValue("event")

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes+1))
	if err != nil {
		apierr.ErrInvalidRequest.Write(w)
		return
	}
	if len(payload) > maxWebhookBytes {
		apierr.New(http.StatusRequestEntityTooLarge, apierr.CodeInvalidRequest, "request body too large").Write(w)
		return
	}

	receipt, err := s.webhooks.Authenticate(r.Context(), integration, event, r.Header.Get(SignatureHeader), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrIntegrationNotFound):
			apierr.ErrIntegrationNotFound.Write(w)
		case errors.Is(err, service.ErrWebhooksDisabled):
			apierr.ErrWebhooksDisabled.Write(w)
		case errors.Is(err, service.ErrEventNotAllowed):
			apierr.ErrEventNotAllowed.Write(w)
		case errors.Is(err, service.ErrInvalidSignature):
			apierr.ErrInvalidSignature.Write(w)
		default:
			s.serverError(w, r, err)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"integration": receipt.Integration,
		"event":       receipt.Event,
	})
}
