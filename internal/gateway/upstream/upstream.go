// Package upstream performs the actual HTTP calls to integrations. Each
// integration gets its own http.Client honoring the configured timeout,
// and failed calls are retried with exponential backoff.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lockbridge/gateway/internal/gateway/registry"
	"github.com/lockbridge/gateway/pkg/slogx"
)

// ErrUnknownIntegration is returned when the integration is not in the catalog.
var ErrUnknownIntegration = errors.New("unknown integration")

// ErrUnknownEndpoint is returned when the integration has no such endpoint.
var ErrUnknownEndpoint = errors.New("unknown endpoint")

// ErrUpstream wraps transport failures that survived all retries.
var ErrUpstream = errors.New("upstream call failed")

// Response is the upstream reply, relayed to the caller verbatim.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// maxResponseBytes bounds how much of an upstream body the gateway buffers.
const maxResponseBytes = 10 << 20

const initialBackoffInterval = 250 * time.Millisecond

// Gateway calls integration endpoints. Clients are built lazily, one per
// integration, so each integration's timeout applies to its own calls.
type Gateway struct {
	registry *registry.Registry

	mu      sync.Mutex
	clients map[string]*http.Client
}

// New returns a Gateway over the given catalog.
func New(reg *registry.Registry) *Gateway {
	return &Gateway{
		registry: reg,
		clients:  make(map[string]*http.Client),
	}
}

func (g *Gateway) client(ic registry.IntegrationConfig) *http.Client {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[ic.Name]; ok {
		return c
	}
	c := &http.Client{Timeout: ic.Timeout}
	g.clients[ic.Name] = c
	return c
}

// Call invokes the named endpoint with the given path parameters and body.
// Network errors and 5xx responses are retried up to the integration's
// retry count with exponential backoff; any other status is returned to
// the caller as-is, body included.
func (g *Gateway) Call(ctx context.Context, integration, endpoint string, pathParams map[string]string, body []byte) (*Response, error) {
	ic, ok := g.registry.Resolve(integration)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIntegration, integration)
	}
	ep, ok := g.registry.ResolveEndpoint(integration, endpoint)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownEndpoint, integration, endpoint)
	}
	target, _ := g.registry.BuildURL(integration, endpoint, pathParams)

	headers := g.registry.BuildAuthHeaders(integration)
	client := g.client(ic)
	log := slogx.FromContext(ctx)

	attempt := 0
	var lastServerError *Response
	operation := func() (*Response, error) {
		attempt++
		req, err := http.NewRequestWithContext(ctx, ep.Method, target, bytes.NewReader(body))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if len(body) > 0 {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			log.Warn("upstream attempt failed",
				"integration", integration,
				"endpoint", endpoint,
				"attempt", attempt,
				"error", err,
			)
			return nil, err
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 500 {
			log.Warn("upstream server error",
				"integration", integration,
				"endpoint", endpoint,
				"attempt", attempt,
				"status", resp.StatusCode,
			)
			lastServerError = &Response{
				StatusCode: resp.StatusCode,
				Header:     resp.Header.Clone(),
				Body:       payload,
			}
			return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
		}

		return &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       payload,
		}, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialBackoffInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(ic.RetryCount)), ctx)

	resp, err := backoff.RetryWithData(operation, policy)
	if err != nil {
		// Exhausted retries on server errors still have a concrete upstream
		// reply; relay it so callers see the real status and body.
		if lastServerError != nil {
			return lastServerError, nil
		}
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrUpstream, integration, endpoint, err)
	}
	return resp, nil
}

// Probe checks whether the integration's base address answers at all.
// One attempt, no retries; used by the status endpoint.
func (g *Gateway) Probe(ctx context.Context, integration string) (bool, time.Duration, error) {
	ic, ok := g.registry.Resolve(integration)
	if !ok {
		return false, 0, fmt.Errorf("%w: %s", ErrUnknownIntegration, integration)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, ic.BaseURL, nil)
	if err != nil {
		return false, 0, err
	}
	for k, v := range g.registry.BuildAuthHeaders(integration) {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := g.client(ic).Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return false, elapsed, nil
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	return resp.StatusCode < 500, elapsed, nil
}
