package moneymotion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nextlevel/funds-api/internal/resilience"
)

const sessionsPath = "/v1/checkout/sessions"

// Config carries everything the provider client needs. An empty APIKey is
// legal and keeps the process bootable; session requests then fail with
// ErrNotConfigured without touching the network.
type Config struct {
	APIKey     string
	BaseURL    string
	SuccessURL string
	CancelURL  string
	Currency   string
	Timeout    time.Duration
}

// Session is the subset of the provider checkout session the deposit flow
// consumes.
type Session struct {
	ID  string
	URL string
}

// Client creates hosted checkout sessions against the MoneyMotion API.
type Client struct {
	cfg   Config
	httpc resilience.HTTPClient
	log   zerolog.Logger
}

// NewClient builds a Client with tracing-instrumented transport. Session
// creation is never retried; a retried create could mint two live payment
// links for one deposit.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	breaker := resilience.NewBreaker(5, 0.6, 30*time.Second).
		WithTarget("moneymotion").
		WithLogger(log)
	return &Client{
		cfg: cfg,
		httpc: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     breaker,
			MaxAttempts: 1,
			Timeout:     timeout,
			Target:      "moneymotion",
		},
		log: log.With().Str("component", "moneymotion").Logger(),
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

type sessionRequest struct {
	Amount     int64             `json:"amount"`
	Currency   string            `json:"currency"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
	Metadata   map[string]string `json:"metadata"`
}

type sessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateSession opens a hosted checkout session for the given account and
// minor-unit amount and returns the payment URL the browser should follow.
func (c *Client) CreateSession(ctx context.Context, username string, amountMinor int64) (Session, error) {
	if !c.Configured() {
		return Session{}, ErrNotConfigured
	}
	username = strings.TrimSpace(username)
	if username == "" || amountMinor <= 0 {
		return Session{}, ErrInvalidRequest
	}

	payload := sessionRequest{
		Amount:     amountMinor,
		Currency:   c.cfg.Currency,
		SuccessURL: c.cfg.SuccessURL,
		CancelURL:  c.cfg.CancelURL,
		Metadata:   map[string]string{"username": username},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + sessionsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(ctx, req)
	if err != nil {
		c.log.Error().Err(err).Str("username", username).Msg("checkout session request failed")
		return Session{}, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error().
			Int("status", resp.StatusCode).
			Str("username", username).
			Str("body", truncate(string(respBody), 512)).
			Msg("provider rejected checkout session")
		return Session{}, fmt.Errorf("%w: status %d", ErrProviderRejected, resp.StatusCode)
	}

	var session sessionResponse
	if err := json.Unmarshal(respBody, &session); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrProviderRejected, err)
	}
	if session.URL == "" {
		return Session{}, fmt.Errorf("%w: response missing checkout url", ErrProviderRejected)
	}
	return Session{ID: session.ID, URL: session.URL}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
