package moneymotion

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventCheckoutCompleted is the only event type that moves money.
const EventCheckoutCompleted = "checkout.session.completed"

// CompletedSession carries the fields the reconciler needs from a
// checkout.session.completed event.
type CompletedSession struct {
	SessionID   string
	Username    string
	AmountTotal int64
}

// Event is a verified webhook event. Completed is non-nil only when Type is
// EventCheckoutCompleted; any other type is acknowledged and ignored.
type Event struct {
	ID        string
	Type      string
	Completed *CompletedSession
}

// Key returns the identifier used for replay suppression and the ledger
// idempotency key. It falls back to the session id for providers that omit a
// top-level event id.
func (e Event) Key() string {
	if e.ID != "" {
		return e.ID
	}
	if e.Completed != nil && e.Completed.SessionID != "" {
		return "session:" + e.Completed.SessionID
	}
	return ""
}

type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID          string `json:"id"`
			AmountTotal int64  `json:"amount_total"`
			Metadata    struct {
				Username string `json:"username"`
			} `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a verified webhook body into an Event. Unknown event
// types parse successfully with a nil Completed so callers can acknowledge
// them without special cases.
func ParseEvent(body []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Type == "" {
		return Event{}, fmt.Errorf("%w: missing event type", ErrMalformedEvent)
	}
	ev := Event{ID: env.ID, Type: env.Type}
	if env.Type == EventCheckoutCompleted {
		ev.Completed = &CompletedSession{
			SessionID:   env.Data.Object.ID,
			Username:    strings.TrimSpace(env.Data.Object.Metadata.Username),
			AmountTotal: env.Data.Object.AmountTotal,
		}
	}
	return ev, nil
}
