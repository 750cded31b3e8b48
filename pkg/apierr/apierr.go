// Package apierr defines the gateway's external error vocabulary. Every
// failure leaving the HTTP surface is one of these codes, serialized as
// {"error": code, "error_description": message}.
package apierr

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error codes. Authentication failures are intentionally underspecified so
// callers cannot distinguish "unknown client" from "wrong secret".
const (
	CodeInvalidRequest       = "invalid_request"
	CodeInvalidClient        = "invalid_client"
	CodeInvalidGrant         = "invalid_grant"
	CodeUnsupportedGrantType = "unsupported_grant_type"
	CodeUnauthorized         = "unauthorized"
	CodeIntegrationNotFound  = "integration_not_found"
	CodeEndpointNotFound     = "endpoint_not_found"
	CodeWebhooksDisabled     = "webhooks_disabled"
	CodeEventNotAllowed      = "event_not_allowed"
	CodeInvalidSignature     = "invalid_signature"
	CodeTransformationError  = "transformation_error"
	CodeProxyError           = "proxy_error"
	CodeServerError          = "server_error"
)

// Error is an API error with an HTTP status, a stable code, and a
// human-readable description. It implements the error interface.
type Error struct {
	// StatusCode is the HTTP status code for this error.
	StatusCode int `json:"-"`

	// Code is the stable error code (e.g. "invalid_grant").
	Code string `json:"error"`

	// Description is a human-readable description of the error.
	Description string `json:"error_description"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Write serializes the error to an HTTP response.
func (e *Error) Write(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

// New creates an Error with a custom description.
func New(statusCode int, code, description string) *Error {
	return &Error{StatusCode: statusCode, Code: code, Description: description}
}

var (
	// ErrInvalidRequest covers malformed bodies and missing fields.
	ErrInvalidRequest = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        CodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrUnsupportedGrantType is returned for any grant_type the token
	// endpoint does not implement.
	ErrUnsupportedGrantType = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        CodeUnsupportedGrantType,
		Description: "grant type not supported",
	}

	// ErrInvalidClient is returned when client authentication failed,
	// regardless of why.
	ErrInvalidClient = &Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        CodeInvalidClient,
		Description: "client authentication failed",
	}

	// ErrInvalidGrant is returned when a refresh token is unknown,
	// expired, revoked, or already consumed.
	ErrInvalidGrant = &Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        CodeInvalidGrant,
		Description: "invalid credentials",
	}

	// ErrNoAuthHeader is returned when the Authorization header is absent.
	ErrNoAuthHeader = &Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        CodeUnauthorized,
		Description: "No authorization header provided",
	}

	// ErrMalformedAuthHeader is returned for a non-Bearer scheme.
	ErrMalformedAuthHeader = &Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        CodeUnauthorized,
		Description: "Authorization header must use the Bearer scheme",
	}

	// ErrInvalidToken covers invalid, expired and revoked access tokens.
	ErrInvalidToken = &Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        CodeUnauthorized,
		Description: "Invalid or expired access token",
	}

	// ErrIntegrationNotFound is returned for unknown or disabled integrations.
	ErrIntegrationNotFound = &Error{
		StatusCode:  http.StatusNotFound,
		Code:        CodeIntegrationNotFound,
		Description: "integration is not configured or disabled",
	}

	// ErrEndpointNotFound is returned for an unknown endpoint name.
	ErrEndpointNotFound = &Error{
		StatusCode:  http.StatusNotFound,
		Code:        CodeEndpointNotFound,
		Description: "endpoint is not configured for this integration",
	}

	// ErrWebhooksDisabled is returned when the integration has no enabled
	// webhook descriptor.
	ErrWebhooksDisabled = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        CodeWebhooksDisabled,
		Description: "webhooks are not enabled for this integration",
	}

	// ErrEventNotAllowed is returned when the event is excluded by the
	// integration's allow-list.
	ErrEventNotAllowed = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        CodeEventNotAllowed,
		Description: "event is not in the integration's allowed list",
	}

	// ErrInvalidSignature is returned on webhook signature mismatch or a
	// missing signature when a secret is configured.
	ErrInvalidSignature = &Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        CodeInvalidSignature,
		Description: "webhook signature verification failed",
	}

	// ErrServerError is the fallback for unexpected conditions.
	ErrServerError = &Error{
		StatusCode:  http.StatusInternalServerError,
		Code:        CodeServerError,
		Description: "internal server error",
	}
)
