package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lockbridge/gateway/internal/gateway/domain"
	"github.com/lockbridge/gateway/internal/gateway/registry"
	"github.com/lockbridge/gateway/internal/gateway/service"
	"github.com/lockbridge/gateway/internal/gateway/store/drivers/sqlite"
	"github.com/lockbridge/gateway/internal/gateway/transform"
	"github.com/lockbridge/gateway/internal/gateway/upstream"
	"github.com/lockbridge/gateway/pkg/cryptox"
	"github.com/lockbridge/gateway/pkg/jwtx"
)

type testEnv struct {
	handler  http.Handler
	tokens   *service.TokenService
	upstream *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	hash, err := cryptox.HashSecret("s3cr3t")
	require.NoError(t, err)
	require.NoError(t, st.Clients().CreateClient(context.Background(), domain.Client{
		ID:         "acme",
		Name:       "Acme Corp",
		SecretHash: hash,
		Active:     true,
	}))

	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/":
			w.WriteHeader(http.StatusOK)
		case "/items/i1":
			w.Write([]byte(`{"id":"i1","name":"widget"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"no such item"}`))
		}
	}))
	t.Cleanup(up.Close)

	reg := registry.New([]registry.IntegrationConfig{{
		Name:    "inventory",
		Enabled: true,
		BaseURL: up.URL,
		Endpoints: map[string]registry.EndpointConfig{
			"get_item": {Path: "/items/{id}", Method: http.MethodGet},
		},
		Timeout:    2 * time.Second,
		RetryCount: 1,
		Webhook: &registry.WebhookConfig{
			Enabled: true,
			Secret:  "whsec",
			Events:  []string{"item.updated"},
		},
	}})

	signer, err := jwtx.NewEphemeralSigner()
	require.NoError(t, err)

	tokens := service.NewTokenService(st, signer, "gateway-test", time.Minute)
	tr := transform.NewRegistry()
	tr.Register(context.Background(), transform.BookingV2{})
	proxy := service.NewProxyDispatcher(reg, tr, upstream.New(reg))
	webhooks := service.NewWebhookService(reg)

	return &testEnv{
		handler:  NewServer(tokens, webhooks, proxy, st).Routes(),
		tokens:   tokens,
		upstream: up,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range header {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) issueToken(t *testing.T) domain.TokenPair {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/auth/token", map[string]string{
		"client_id":     "acme",
		"client_secret": "s3cr3t",
		"grant_type":    "client_credentials",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var pair domain.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	return pair
}

func errCode(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()

	var body struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error, body.Description
}

func TestTokenEndpoint(t *testing.T) {
	env := newTestEnv(t)

	pair := env.issueToken(t)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "Bearer", pair.TokenType)
	require.EqualValues(t, 60, pair.ExpiresIn)

	t.Run("no-store on token responses", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/token", map[string]string{
			"client_id":     "acme",
			"client_secret": "s3cr3t",
			"grant_type":    "client_credentials",
		}, nil)
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	})

	t.Run("wrong secret", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/token", map[string]string{
			"client_id":     "acme",
			"client_secret": "wrong",
			"grant_type":    "client_credentials",
		}, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		code, _ := errCode(t, rec)
		require.Equal(t, "invalid_client", code)
	})

	t.Run("unsupported grant", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/token", map[string]string{
			"client_id":     "acme",
			"client_secret": "s3cr3t",
			"grant_type":    "password",
		}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		code, _ := errCode(t, rec)
		require.Equal(t, "unsupported_grant_type", code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/token", map[string]string{
			"client_id": "acme",
		}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		code, _ := errCode(t, rec)
		require.Equal(t, "invalid_request", code)
	})
}

func TestRefreshEndpoint(t *testing.T) {
	env := newTestEnv(t)
	pair := env.issueToken(t)

	rec := env.do(t, http.MethodPost, "/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var next domain.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &next))
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	t.Run("consumed token rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/refresh", map[string]string{
			"refresh_token": pair.RefreshToken,
		}, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		code, _ := errCode(t, rec)
		require.Equal(t, "invalid_grant", code)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/refresh", map[string]string{}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRevokeEndpointAlways200(t *testing.T) {
	env := newTestEnv(t)
	pair := env.issueToken(t)

	for _, token := range []string{pair.AccessToken, pair.AccessToken, "never-issued"} {
		rec := env.do(t, http.MethodPost, "/auth/revoke", map[string]string{"token": token}, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "token revoked", body["message"])
	}

	// The revoked access token no longer opens the proxy surface.
	rec := env.do(t, http.MethodGet, "/proxy/inventory/get_item?id=i1", nil, map[string]string{
		"Authorization": "Bearer " + pair.AccessToken,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerAuth(t *testing.T) {
	env := newTestEnv(t)
	pair := env.issueToken(t)

	t.Run("missing header", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/proxy/inventory/get_item?id=i1", nil, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		code, desc := errCode(t, rec)
		require.Equal(t, "unauthorized", code)
		require.Equal(t, "No authorization header provided", desc)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/proxy/inventory/get_item?id=i1", nil, map[string]string{
			"Authorization": "Basic Zm9vOmJhcg==",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/proxy/inventory/get_item?id=i1", nil, map[string]string{
			"Authorization": "Bearer not-a-jwt",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		code, desc := errCode(t, rec)
		require.Equal(t, "unauthorized", code)
		require.Equal(t, "Invalid or expired access token", desc)
	})

	t.Run("valid token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/proxy/inventory/get_item?id=i1", nil, map[string]string{
			"Authorization": "Bearer " + pair.AccessToken,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"id":"i1","name":"widget"}`, rec.Body.String())
	})
}

func TestProxyEndpoints(t *testing.T) {
	env := newTestEnv(t)
	pair := env.issueToken(t)
	auth := map[string]string{"Authorization": "Bearer " + pair.AccessToken}

	t.Run("list is public", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/proxy/integrations", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Integrations []service.IntegrationSummary `json:"integrations"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Integrations, 1)
		require.Equal(t, "inventory", body.Integrations[0].Name)
	})

	t.Run("status requires auth", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/proxy/inventory/status", nil, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("status", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/proxy/inventory/status", nil, auth)
		require.Equal(t, http.StatusOK, rec.Code)

		var status service.IntegrationStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		require.True(t, status.Reachable)
	})

	t.Run("unknown integration", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/proxy/missing/get_item", nil, auth)
		require.Equal(t, http.StatusNotFound, rec.Code)
		code, _ := errCode(t, rec)
		require.Equal(t, "integration_not_found", code)
	})

	t.Run("unknown endpoint", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/proxy/inventory/missing", nil, auth)
		require.Equal(t, http.StatusNotFound, rec.Code)
		code, _ := errCode(t, rec)
		require.Equal(t, "endpoint_not_found", code)
	})

	t.Run("upstream error relayed verbatim", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/proxy/inventory/get_item?id=missing", nil, auth)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.JSONEq(t, `{"error":"no such item"}`, rec.Body.String())
	})
}

func TestWebhookEndpoint(t *testing.T) {
	env := newTestEnv(t)
	payload := []byte(`{"item_id":"i1"}`)
	sig := registry.SignWebhookPayload("whsec", payload)

	post := func(t *testing.T, path, signature string, body []byte) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
		if signature != "" {
			req.Header.Set(SignatureHeader, signature)
		}
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("accepted", func(t *testing.T) {
		rec := post(t, "/webhooks/inventory/item.updated", sig, payload)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown integration", func(t *testing.T) {
		rec := post(t, "/webhooks/missing", sig, payload)
		require.Equal(t, http.StatusNotFound, rec.Code)
		code, _ := errCode(t, rec)
		require.Equal(t, "integration_not_found", code)
	})

	t.Run("event not allowed", func(t *testing.T) {
		rec := post(t, "/webhooks/inventory/item.deleted", sig, payload)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		code, _ := errCode(t, rec)
		require.Equal(t, "event_not_allowed", code)
	})

	t.Run("bad signature", func(t *testing.T) {
		rec := post(t, "/webhooks/inventory/item.updated", registry.SignWebhookPayload("other", payload), payload)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		code, _ := errCode(t, rec)
		require.Equal(t, "invalid_signature", code)
	})

	t.Run("missing signature", func(t *testing.T) {
		rec := post(t, "/webhooks/inventory/item.updated", "", payload)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/livez", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestFullClientLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// Authenticate, call, refresh, call with the new token, revoke, observe 401.
	pair := env.issueToken(t)

	rec := env.do(t, http.MethodGet, "/proxy/inventory/get_item?id=i1", nil, map[string]string{
		"Authorization": "Bearer " + pair.AccessToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	refreshed := env.do(t, http.MethodPost, "/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, refreshed.Code)

	var next domain.TokenPair
	require.NoError(t, json.Unmarshal(refreshed.Body.Bytes(), &next))

	rec = env.do(t, http.MethodGet, "/proxy/inventory/get_item?id=i1", nil, map[string]string{
		"Authorization": "Bearer " + next.AccessToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/revoke", map[string]string{"token": next.AccessToken}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/proxy/inventory/get_item?id=i1", nil, map[string]string{
		"Authorization": "Bearer " + next.AccessToken,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
