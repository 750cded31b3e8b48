package service

import (
	"context"

	"github.com/lockbridge/gateway/internal/gateway/registry"
	"github.com/lockbridge/gateway/pkg/slogx"
)

// WebhookService authenticates inbound webhook deliveries against the
// integration catalog.
type WebhookService struct {
	registry *registry.Registry
}

// NewWebhookService wires a WebhookService over the catalog.
func NewWebhookService(reg *registry.Registry) *WebhookService {
	return &WebhookService{registry: reg}
}

// Receipt describes an accepted webhook delivery.
type Receipt struct {
	Integration string `json:"integration"`
	Event       string `json:"event,omitempty"`
	Bytes       int    `json:"bytes"`
}

// Authenticate checks a delivery in order: integration exists and is
// enabled, webhooks are enabled for it, the event is allowed, and the
// signature verifies. When a secret is configured, a delivery without a
// signature is rejected outright. When no secret is configured the
// delivery is accepted unverified, with a warning, since there is nothing
// to verify against.
func (s *WebhookService) Authenticate(ctx context.Context, integration, event, signature string, payload []byte) (Receipt, error) {
	ic, ok := s.registry.Resolve(integration)
	if !ok || !ic.Enabled {
		return Receipt{}, ErrIntegrationNotFound
	}
	if ic.Webhook == nil || !ic.Webhook.Enabled {
		return Receipt{}, ErrWebhooksDisabled
	}
	if event != "" && !ic.EventAllowed(event) {
		return Receipt{}, ErrEventNotAllowed
	}

	log := slogx.FromContext(ctx)

	if ic.Webhook.Secret == "" {
		log.Warn("webhook accepted without verification, no secret configured",
			"integration", integration,
			"event", event,
		)
	} else {
		if signature == "" {
			log.Info("webhook rejected, signature missing",
				"integration", integration,
				"event", event,
			)
			return Receipt{}, ErrInvalidSignature
		}
		if !s.registry.VerifyWebhookSignature(integration, payload, signature) {
			log.Info("webhook rejected, signature mismatch",
				"integration", integration,
				"event", event,
			)
			return Receipt{}, ErrInvalidSignature
		}
	}

	log.Info("webhook accepted",
		"integration", integration,
		"event", event,
		"bytes", len(payload),
	)
	return Receipt{Integration: integration, Event: event, Bytes: len(payload)}, nil
}
