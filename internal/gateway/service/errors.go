package service

import "errors"

// Sentinel errors the HTTP layer maps onto wire error codes. Credential
// and token failures are deliberately coarse so callers can't distinguish
// unknown clients from wrong secrets or revoked tokens from expired ones.
var (
	ErrInvalidCredentials = errors.New("invalid client credentials")
	ErrInvalidToken       = errors.New("invalid or expired access token")
	ErrInvalidRefresh     = errors.New("invalid or expired refresh token")

	ErrIntegrationNotFound = errors.New("integration not found")
	ErrEndpointNotFound    = errors.New("endpoint not found")
	ErrWebhooksDisabled    = errors.New("webhooks disabled for integration")
	ErrEventNotAllowed     = errors.New("event not allowed for integration")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
)
