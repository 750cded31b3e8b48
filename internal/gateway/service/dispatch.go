package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lockbridge/gateway/internal/gateway/registry"
	"github.com/lockbridge/gateway/internal/gateway/transform"
	"github.com/lockbridge/gateway/internal/gateway/upstream"
	"github.com/lockbridge/gateway/pkg/slogx"
)

// TransformationError marks a request payload that could not be mapped to
// the integration's wire shape. The HTTP layer turns it into a client error.
type TransformationError struct {
	Err error
}

func (e *TransformationError) Error() string { return fmt.Sprintf("transformation: %v", e.Err) }
func (e *TransformationError) Unwrap() error { return e.Err }

// UpstreamError marks a call that failed at the integration after all
// retries, mapped to a 502 at the boundary.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("upstream: %v", e.Err) }
func (e *UpstreamError) Unwrap() error { return e.Err }

// ProxyDispatcher routes authenticated proxy requests: resolve the
// endpoint, transform the payload when the endpoint names a transformer,
// call the integration and relay the reply.
type ProxyDispatcher struct {
	registry     *registry.Registry
	transformers *transform.Registry
	upstream     *upstream.Gateway
}

// NewProxyDispatcher wires a dispatcher.
func NewProxyDispatcher(reg *registry.Registry, tr *transform.Registry, up *upstream.Gateway) *ProxyDispatcher {
	return &ProxyDispatcher{registry: reg, transformers: tr, upstream: up}
}

// IntegrationSummary is the public catalog entry: names only, never auth
// material or webhook secrets.
type IntegrationSummary struct {
	Name      string   `json:"name"`
	Endpoints []string `json:"endpoints"`
	Webhooks  bool     `json:"webhooks"`
}

// ListIntegrations returns summaries of every enabled integration.
func (d *ProxyDispatcher) ListIntegrations() []IntegrationSummary {
	enabled := d.registry.Enabled()
	out := make([]IntegrationSummary, 0, len(enabled))
	for _, ic := range enabled {
		endpoints := make([]string, 0, len(ic.Endpoints))
		for name := range ic.Endpoints {
			endpoints = append(endpoints, name)
		}
		sort.Strings(endpoints)
		out = append(out, IntegrationSummary{
			Name:      ic.Name,
			Endpoints: endpoints,
			Webhooks:  ic.Webhook != nil && ic.Webhook.Enabled,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IntegrationStatus reports whether an integration's base address answers,
// plus its configured surface.
type IntegrationStatus struct {
	Name          string   `json:"name"`
	Enabled       bool     `json:"enabled"`
	Reachable     bool     `json:"reachable"`
	LatencyMS     int64    `json:"latency_ms"`
	Endpoints     []string `json:"endpoints"`
	WebhookEvents []string `json:"webhook_events,omitempty"`
}

// Status probes the named integration once.
func (d *ProxyDispatcher) Status(ctx context.Context, integration string) (IntegrationStatus, error) {
	ic, ok := d.registry.Resolve(integration)
	if !ok {
		return IntegrationStatus{}, ErrIntegrationNotFound
	}

	status := IntegrationStatus{
		Name:      ic.Name,
		Enabled:   ic.Enabled,
		Endpoints: make([]string, 0, len(ic.Endpoints)),
	}
	for name := range ic.Endpoints {
		status.Endpoints = append(status.Endpoints, name)
	}
	sort.Strings(status.Endpoints)
	if ic.Webhook != nil && ic.Webhook.Enabled {
		status.WebhookEvents = ic.Webhook.Events
	}

	if !ic.Enabled {
		return status, nil
	}

	reachable, latency, err := d.upstream.Probe(ctx, integration)
	if err != nil {
		return IntegrationStatus{}, fmt.Errorf("probe %s: %w", integration, err)
	}
	status.Reachable = reachable
	status.LatencyMS = latency.Milliseconds()
	return status, nil
}

// Dispatch forwards one proxy request. The request body is transformed
// when the endpoint names a transformer; the upstream reply is mapped
// back when that transformer can reverse, and relayed verbatim otherwise.
func (d *ProxyDispatcher) Dispatch(ctx context.Context, integration, endpoint string, pathParams map[string]string, body []byte) (*upstream.Response, error) {
	ic, ok := d.registry.Resolve(integration)
	if !ok || !ic.Enabled {
		return nil, ErrIntegrationNotFound
	}
	ep, ok := d.registry.ResolveEndpoint(integration, endpoint)
	if !ok {
		return nil, ErrEndpointNotFound
	}

	outBody := body
	if ep.Transformer != "" && len(body) > 0 {
		mapped, err := d.transformForward(ctx, ep.Transformer, body)
		if err != nil {
			return nil, err
		}
		outBody = mapped
	}

	resp, err := d.upstream.Call(ctx, integration, endpoint, pathParams, outBody)
	if err != nil {
		if errors.Is(err, upstream.ErrUnknownIntegration) {
			return nil, ErrIntegrationNotFound
		}
		if errors.Is(err, upstream.ErrUnknownEndpoint) {
			return nil, ErrEndpointNotFound
		}
		return nil, &UpstreamError{Err: err}
	}

	if ep.Transformer != "" && isJSONSuccess(resp) {
		if mapped, ok := d.transformReverse(ctx, ep.Transformer, resp.Body); ok {
			resp.Body = mapped
		}
	}

	slogx.FromContext(ctx).Info("proxy request dispatched",
		"integration", integration,
		"endpoint", endpoint,
		"status", resp.StatusCode,
	)
	return resp, nil
}

func (d *ProxyDispatcher) transformForward(ctx context.Context, transformer string, body []byte) ([]byte, error) {
	var payload transform.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &TransformationError{Err: fmt.Errorf("decode request body: %w", err)}
	}

	mapped, err := d.transformers.Execute(ctx, transformer, payload)
	if err != nil {
		return nil, &TransformationError{Err: err}
	}

	out, err := json.Marshal(mapped)
	if err != nil {
		return nil, &TransformationError{Err: fmt.Errorf("encode request body: %w", err)}
	}
	return out, nil
}

// transformReverse best-effort maps a JSON success reply back to the
// canonical shape. Replies stay verbatim when the transformer has no
// reverse mapping or the body doesn't decode.
func (d *ProxyDispatcher) transformReverse(ctx context.Context, transformer string, body []byte) ([]byte, bool) {
	var payload transform.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false
	}

	mapped, err := d.transformers.ExecuteReverse(ctx, transformer, payload)
	if err != nil {
		if !errors.Is(err, transform.ErrNoReverse) {
			slogx.FromContext(ctx).Warn("reverse transform failed, relaying verbatim",
				"transformer", transformer,
				"error", err,
			)
		}
		return nil, false
	}

	out, err := json.Marshal(mapped)
	if err != nil {
		return nil, false
	}
	return out, true
}

func isJSONSuccess(resp *upstream.Response) bool {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || len(resp.Body) == 0 {
		return false
	}
	ct := resp.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/json")
}
