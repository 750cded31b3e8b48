package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lockbridge/gateway/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestIPKeyExtractor(t *testing.T) {
	t.Run("extracts from RemoteAddr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"

		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(req))
	})

	t.Run("prefers X-Forwarded-For", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Forwarded-For", "203.0.113.1, 192.168.1.1")

		require.Equal(t, "203.0.113.1", httpx.IPKeyExtractor(req))
	})

	t.Run("uses X-Real-IP if X-Forwarded-For absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Real-IP", "203.0.113.2")

		require.Equal(t, "203.0.113.2", httpx.IPKeyExtractor(req))
	})
}

func TestClientIDKeyExtractor(t *testing.T) {
	t.Run("reads the authenticated client", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := context.WithValue(req.Context(), httpx.CtxKeyClientID, "acme")

		require.Equal(t, "acme", httpx.ClientIDKeyExtractor(req.WithContext(ctx)))
	})

	t.Run("empty when unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		require.Equal(t, "", httpx.ClientIDKeyExtractor(req))
	})
}

func TestCompositeKeyExtractor(t *testing.T) {
	t.Run("combines multiple extractors", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		ctx := context.WithValue(req.Context(), httpx.CtxKeyClientID, "acme")

		extractor := httpx.CompositeKeyExtractor(":",
			httpx.ClientIDKeyExtractor,
			httpx.IPKeyExtractor,
		)
		require.Equal(t, "acme:192.168.1.1", extractor(req.WithContext(ctx)))
	})

	t.Run("skips empty values", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"

		extractor := httpx.CompositeKeyExtractor(":",
			httpx.ClientIDKeyExtractor,
			httpx.IPKeyExtractor,
		)
		require.Equal(t, "192.168.1.1", extractor(req))
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	newLimited := func(config httpx.RateLimitConfig) http.Handler {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		return httpx.RateLimitMiddleware(config, httpx.IPKeyExtractor)(handler)
	}

	do := func(h http.Handler, remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("allows requests under limit", func(t *testing.T) {
		h := newLimited(httpx.RateLimitConfig{
			RequestsPerWindow: 5,
			Window:            time.Second,
			Burst:             5,
		})

		for i := 0; i < 5; i++ {
			require.Equal(t, http.StatusOK, do(h, "192.168.1.1:12345"))
		}
	})

	t.Run("rejects requests over limit", func(t *testing.T) {
		h := newLimited(httpx.RateLimitConfig{
			RequestsPerWindow: 2,
			Window:            time.Minute,
			Burst:             2,
		})

		require.Equal(t, http.StatusOK, do(h, "192.168.1.2:12345"))
		require.Equal(t, http.StatusOK, do(h, "192.168.1.2:12345"))
		require.Equal(t, http.StatusTooManyRequests, do(h, "192.168.1.2:12345"))
	})

	t.Run("limits keys independently", func(t *testing.T) {
		h := newLimited(httpx.RateLimitConfig{
			RequestsPerWindow: 1,
			Window:            time.Minute,
			Burst:             1,
		})

		require.Equal(t, http.StatusOK, do(h, "192.168.1.3:12345"))
		require.Equal(t, http.StatusTooManyRequests, do(h, "192.168.1.3:12345"))
		require.Equal(t, http.StatusOK, do(h, "192.168.1.4:12345"))
	})

	t.Run("sets Retry-After on rejection", func(t *testing.T) {
		h := newLimited(httpx.RateLimitConfig{
			RequestsPerWindow: 1,
			Window:            time.Minute,
			Burst:             1,
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.5:12345"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
	})
}
