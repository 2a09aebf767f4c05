package deposit

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nextlevel/funds-api/internal/common"
	"github.com/nextlevel/funds-api/internal/moneymotion"
	"github.com/nextlevel/funds-api/internal/obs"
)

// ReplayGuard suppresses duplicate webhook deliveries before they reach the
// database. The ledger's event_id key remains the source of truth; the guard
// only saves a round trip on hot retries.
type ReplayGuard struct {
	R   *redis.Client
	TTL time.Duration
}

// Acquire returns true when this delivery is the first for the event key.
func (g ReplayGuard) Acquire(ctx context.Context, key string) (bool, error) {
	ttl := g.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return g.R.SetNX(ctx, "webhook:evt:"+key, "1", ttl).Result()
}

// Release drops the marker so a provider retry can re-process an event that
// failed mid-flight.
func (g ReplayGuard) Release(ctx context.Context, key string) {
	_ = g.R.Del(ctx, "webhook:evt:"+key).Err()
}

// WebhookHandler terminates the provider's webhook callbacks.
type WebhookHandler struct {
	Verifier   moneymotion.WebhookVerifier
	Reconciler *Reconciler
	Replay     *ReplayGuard
	Log        zerolog.Logger
}

// ServeHTTP authenticates the delivery, suppresses replays and applies the
// event. App-level outcomes always acknowledge with 200 so the provider
// stops retrying; only authentication and persistence failures surface as
// errors.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		count(obs.DepositWebhookTotal, "read_error")
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read request body.")
		return
	}

	ev, err := h.Verifier.Verify(r.Header.Get(moneymotion.SignatureHeader), body)
	if errors.Is(err, moneymotion.ErrSignatureInvalid) {
		count(obs.DepositWebhookTotal, "signature_invalid")
		h.Log.Warn().Err(err).Str("remote", common.ClientIP(r)).Msg("rejected webhook delivery")
		common.JSONError(w, http.StatusUnauthorized, "SIGNATURE_INVALID", "Invalid webhook signature.")
		return
	}
	if errors.Is(err, moneymotion.ErrMalformedEvent) {
		count(obs.DepositWebhookTotal, "malformed")
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "Malformed event payload.")
		return
	}
	if err != nil {
		count(obs.DepositWebhookTotal, "error")
		h.Log.Error().Err(err).Msg("webhook verification failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "Could not process event.")
		return
	}

	key := ev.Key()
	if h.Replay != nil && key != "" {
		first, err := h.Replay.Acquire(r.Context(), key)
		if err != nil {
			// Redis trouble must not drop a credit; fall through to the
			// database idempotency key.
			h.Log.Warn().Err(err).Str("event_id", key).Msg("replay guard unavailable")
		} else if !first {
			count(obs.DepositWebhookTotal, "duplicate")
			h.Log.Info().Str("event_id", key).Msg("duplicate webhook delivery suppressed")
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	outcome, err := h.Reconciler.Apply(r.Context(), ev, body)
	if err != nil {
		if h.Replay != nil && key != "" {
			h.Replay.Release(r.Context(), key)
		}
		count(obs.DepositWebhookTotal, "error")
		h.Log.Error().Err(err).Str("event_id", key).Msg("webhook processing failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "Could not process event.")
		return
	}

	count(obs.DepositWebhookTotal, string(outcome))
	w.WriteHeader(http.StatusOK)
}
