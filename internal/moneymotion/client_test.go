package moneymotion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, baseURL, apiKey string) *Client {
	t.Helper()
	return NewClient(Config{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		SuccessURL: "https://shop.example.com/payment-success",
		CancelURL:  "https://shop.example.com/payment-cancelled",
		Currency:   "usd",
		Timeout:    2 * time.Second,
	}, zerolog.Nop())
}

func TestCreateSessionSuccess(t *testing.T) {
	var captured sessionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, sessionsPath, r.URL.Path)
		require.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":  "cs_test_abc",
			"url": "https://pay.moneymotion.io/cs_test_abc",
		})
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, "sk_test_123")
	session, err := client.CreateSession(context.Background(), "alice", 500)
	require.NoError(t, err)
	require.Equal(t, "cs_test_abc", session.ID)
	require.Equal(t, "https://pay.moneymotion.io/cs_test_abc", session.URL)

	require.Equal(t, int64(500), captured.Amount)
	require.Equal(t, "usd", captured.Currency)
	require.Equal(t, "alice", captured.Metadata["username"])
	require.Equal(t, "https://shop.example.com/payment-success", captured.SuccessURL)
	require.Equal(t, "https://shop.example.com/payment-cancelled", captured.CancelURL)
}

func TestCreateSessionNotConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected without an api key")
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, "")
	_, err := client.CreateSession(context.Background(), "alice", 500)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestCreateSessionInvalidInput(t *testing.T) {
	client := testClient(t, "http://localhost:1", "sk_test_123")

	_, err := client.CreateSession(context.Background(), "", 500)
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = client.CreateSession(context.Background(), "alice", 0)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCreateSessionProviderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"card declined"}}`))
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, "sk_test_123")
	_, err := client.CreateSession(context.Background(), "alice", 500)
	require.ErrorIs(t, err, ErrProviderRejected)
}

func TestCreateSessionMissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"cs_no_url"}`))
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, "sk_test_123")
	_, err := client.CreateSession(context.Background(), "alice", 500)
	require.ErrorIs(t, err, ErrProviderRejected)
}

func TestCreateSessionUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := testClient(t, srv.URL, "sk_test_123")
	_, err := client.CreateSession(context.Background(), "alice", 500)
	require.ErrorIs(t, err, ErrProviderUnreachable)
}
