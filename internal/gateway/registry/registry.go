// Package registry holds the config-driven catalog of named external
// systems and answers resolution, URL building, outbound auth-header
// synthesis and inbound webhook signature questions about them.
package registry

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout applies when an integration declares none.
const DefaultTimeout = 30 * time.Second

// DefaultRetryCount is the number of retries beyond the first attempt.
const DefaultRetryCount = 3

// Registry is an immutable catalog of integrations, constructed once at
// startup and injected wherever needed. No shared mutable process state.
type Registry struct {
	integrations map[string]IntegrationConfig
}

// New builds a Registry from a validated catalog, applying timeout and
// retry defaults.
func New(integrations []IntegrationConfig) *Registry {
	m := make(map[string]IntegrationConfig, len(integrations))
	for _, ic := range integrations {
		if ic.Timeout <= 0 {
			ic.Timeout = DefaultTimeout
		}
		if ic.RetryCount < 0 {
			ic.RetryCount = DefaultRetryCount
		}
		if ic.RetryCount == 0 {
			ic.RetryCount = DefaultRetryCount
		}
		m[ic.Name] = ic
	}
	return &Registry{integrations: m}
}

// Resolve returns the integration config by name.
func (r *Registry) Resolve(name string) (IntegrationConfig, bool) {
	ic, ok := r.integrations[name]
	return ic, ok
}

// IsEnabled reports whether the integration exists and is enabled.
func (r *Registry) IsEnabled(name string) bool {
	ic, ok := r.integrations[name]
	return ok && ic.Enabled
}

// Enabled returns every enabled integration, for the public catalog listing.
func (r *Registry) Enabled() []IntegrationConfig {
	var out []IntegrationConfig
	for _, ic := range r.integrations {
		if ic.Enabled {
			out = append(out, ic)
		}
	}
	return out
}

// ResolveEndpoint returns the named endpoint of the named integration.
func (r *Registry) ResolveEndpoint(integration, endpoint string) (EndpointConfig, bool) {
	ic, ok := r.integrations[integration]
	if !ok {
		return EndpointConfig{}, false
	}
	ep, ok := ic.Endpoints[endpoint]
	return ep, ok
}

// BuildURL joins the integration base address with the endpoint path,
// substituting {key} placeholders with URL-escaped values. Returns false
// when the integration or endpoint is unknown.
func (r *Registry) BuildURL(integration, endpoint string, pathParams map[string]string) (string, bool) {
	ic, ok := r.integrations[integration]
	if !ok {
		return "", false
	}
	ep, ok := ic.Endpoints[endpoint]
	if !ok {
		return "", false
	}

	path := ep.Path
	for key, value := range pathParams {
		path = strings.ReplaceAll(path, "{"+key+"}", url.PathEscape(value))
	}

	return strings.TrimRight(ic.BaseURL, "/") + "/" + strings.TrimLeft(path, "/"), true
}

// BuildAuthHeaders synthesizes outbound headers from the auth descriptor.
// none and oauth2 (token acquisition happens out of band) contribute only
// static headers. Static headers always win over synthesized ones.
func (r *Registry) BuildAuthHeaders(integration string) map[string]string {
	headers := make(map[string]string)

	ic, ok := r.integrations[integration]
	if !ok {
		return headers
	}

	switch ic.Auth.Kind {
	case AuthBearer:
		if ic.Auth.Token != "" {
			headers["Authorization"] = "Bearer " + ic.Auth.Token
		}
	case AuthBasic:
		creds := base64.StdEncoding.EncodeToString([]byte(ic.Auth.Username + ":" + ic.Auth.Password))
		headers["Authorization"] = "Basic " + creds
	case AuthAPIKey:
		header := ic.Auth.APIKeyHeader
		if header == "" {
			header = DefaultAPIKeyHeader
		}
		headers[header] = ic.Auth.APIKey
	}

	for k, v := range ic.Auth.StaticHeaders {
		headers[k] = v
	}
	return headers
}

// VerifyWebhookSignature computes the hex HMAC-SHA256 of the raw payload
// bytes under the integration's shared secret and compares it to the
// provided signature in constant time. Returns false, never an error, when
// no secret is configured or the integration is unknown.
func (r *Registry) VerifyWebhookSignature(integration string, payload []byte, signature string) bool {
	ic, ok := r.integrations[integration]
	if !ok || ic.Webhook == nil || ic.Webhook.Secret == "" {
		return false
	}

	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(ic.Webhook.Secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), provided)
}

// SignWebhookPayload produces the hex signature a sender would attach.
// Exposed for tests and for replaying stored deliveries.
func SignWebhookPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// EventAllowed reports whether the integration admits this webhook event.
// An empty allow-list admits everything.
func (ic IntegrationConfig) EventAllowed(event string) bool {
	if ic.Webhook == nil || len(ic.Webhook.Events) == 0 {
		return true
	}
	for _, allowed := range ic.Webhook.Events {
		if allowed == event {
			return true
		}
	}
	return false
}
