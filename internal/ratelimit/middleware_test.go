package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareEnforcesLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	handler := Handler{
		Limiter: Limiter{Client: client, Prefix: "ratelimit:"},
		Config: Config{
			Key:    func(*http.Request) string { return "static" },
			Window: time.Second,
			Max:    1,
		},
		Log: zerolog.Nop(),
	}
	wrapped := handler.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/create-payment", nil)
	first := httptest.NewRecorder()
	wrapped.ServeHTTP(first, req.Clone(req.Context()))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	wrapped.ServeHTTP(second, req.Clone(req.Context()))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.Equal(t, "1", second.Header().Get("X-RateLimit-Limit"))
	require.NotEmpty(t, second.Header().Get("Retry-After"))
	require.Contains(t, second.Body.String(), "RATE_LIMITED")
}

func TestMiddlewareKeysByClientIPByDefault(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	handler := Handler{
		Limiter: Limiter{Client: client, Prefix: "ratelimit:"},
		Config:  Config{Window: time.Second, Max: 1},
		Log:     zerolog.Nop(),
	}
	wrapped := handler.Middleware(okHandler())

	reqA := httptest.NewRequest(http.MethodPost, "/create-payment", nil)
	reqA.RemoteAddr = "10.0.0.1:1111"
	reqB := httptest.NewRequest(http.MethodPost, "/create-payment", nil)
	reqB.RemoteAddr = "10.0.0.2:2222"

	for _, req := range []*http.Request{reqA, reqB} {
		rr := httptest.NewRecorder()
		wrapped.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, reqA.Clone(reqA.Context()))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestMiddlewareFailsOpenWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer func() { _ = client.Close() }()

	handler := Handler{
		Limiter: Limiter{Client: client, Prefix: "ratelimit:"},
		Config:  Config{Window: time.Second, Max: 1},
		Log:     zerolog.Nop(),
	}
	wrapped := handler.Middleware(okHandler())

	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/create-payment", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestLimiterDisabledWithoutClient(t *testing.T) {
	l := Limiter{}
	allowed, _, _, err := l.Allow(t.Context(), "k", time.Second, 5)
	require.NoError(t, err)
	require.True(t, allowed)
}
