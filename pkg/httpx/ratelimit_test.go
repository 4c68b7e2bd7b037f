package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFromIP(ip string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	r.RemoteAddr = ip + ":54321"
	return r
}

func TestRateLimitByIPBlocksAfterBudget(t *testing.T) {
	t.Parallel()

	h := RateLimitByIP(StrictLimit)(okHandler())

	for i := 0; i < StrictLimit.Burst; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFromIP("10.0.0.1"))
		require.Equal(t, http.StatusOK, rec.Code, "request %d within budget", i+1)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFromIP("10.0.0.1"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimitKeysAreIndependent(t *testing.T) {
	t.Parallel()

	h := RateLimitByIP(StrictLimit)(okHandler())

	for i := 0; i < StrictLimit.Burst; i++ {
		h.ServeHTTP(httptest.NewRecorder(), requestFromIP("10.0.0.2"))
	}

	// A different client is unaffected by the exhausted bucket.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFromIP("10.0.0.3"))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestIPKeyExtractorHonoursForwardedFor(t *testing.T) {
	t.Parallel()

	r := requestFromIP("192.0.2.1")
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "203.0.113.9", IPKeyExtractor(r))

	r = requestFromIP("192.0.2.1")
	require.Equal(t, "192.0.2.1", IPKeyExtractor(r))
}
