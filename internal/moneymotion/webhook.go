package moneymotion

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the webhook signature in the form
// "t=<unix seconds>,v1=<hex hmac-sha256 of "<t>.<body>">".
const SignatureHeader = "MoneyMotion-Signature"

// DefaultFreshnessWindow bounds how far a signed timestamp may drift from
// server time before the payload is treated as a replay.
const DefaultFreshnessWindow = 5 * time.Minute

// WebhookVerifier authenticates incoming webhook payloads. An empty Secret
// rejects every payload.
type WebhookVerifier struct {
	Secret          string
	FreshnessWindow time.Duration
	Now             func() time.Time
}

// ComputeSignature returns the hex HMAC-SHA256 of "<ts>.<body>" under the
// given secret. Exported for signing test payloads and outbound calls.
func ComputeSignature(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureFor renders a complete header value for the given timestamp and
// body.
func SignatureFor(secret string, ts int64, body []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", ts, ComputeSignature(secret, ts, body))
}

// Verify authenticates the raw body against the signature header and decodes
// it into an Event. Authentication failures return ErrSignatureInvalid; a
// correctly signed but undecodable body returns ErrMalformedEvent.
func (v WebhookVerifier) Verify(header string, body []byte) (Event, error) {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return Event{}, fmt.Errorf("%w: webhook secret not configured", ErrSignatureInvalid)
	}

	ts, provided, err := parseSignatureHeader(header)
	if err != nil {
		return Event{}, err
	}

	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}
	window := v.FreshnessWindow
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	drift := now.Sub(time.Unix(ts, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > window {
		return Event{}, fmt.Errorf("%w: timestamp outside freshness window", ErrSignatureInvalid)
	}

	expected := ComputeSignature(secret, ts, body)
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return Event{}, fmt.Errorf("%w: digest mismatch", ErrSignatureInvalid)
	}

	return ParseEvent(body)
}

func parseSignatureHeader(header string) (ts int64, v1 string, err error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, "", fmt.Errorf("%w: missing signature header", ErrSignatureInvalid)
	}
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts, err = strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("%w: bad timestamp", ErrSignatureInvalid)
			}
		case "v1":
			v1 = strings.ToLower(strings.TrimSpace(value))
		}
	}
	if ts == 0 || v1 == "" {
		return 0, "", fmt.Errorf("%w: incomplete signature header", ErrSignatureInvalid)
	}
	return ts, v1, nil
}
