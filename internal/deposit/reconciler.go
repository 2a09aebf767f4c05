package deposit

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/nextlevel/funds-api/internal/moneymotion"
	"github.com/nextlevel/funds-api/internal/obs"
)

// Outcome classifies what a verified webhook event did to the ledger.
type Outcome string

const (
	// OutcomeApplied means this event credited the balance.
	OutcomeApplied Outcome = "applied"
	// OutcomeAlreadyApplied means the event id was seen before; the balance
	// did not move again.
	OutcomeAlreadyApplied Outcome = "already_applied"
	// OutcomeIgnored covers event types that carry no money movement.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeUnattributed means the event was authentic but could not be tied
	// to an account; it was dead-lettered for operator review.
	OutcomeUnattributed Outcome = "unattributed"
)

// Ledger is the persistence surface the reconciler drives.
type Ledger interface {
	CreditOnce(ctx context.Context, username, eventID string, amountMinor int64) (bool, error)
	RecordUnattributed(ctx context.Context, eventID, reason string, payload []byte) error
}

// Reconciler turns verified provider events into ledger movements.
type Reconciler struct {
	Ledger Ledger
	Log    zerolog.Logger
}

// Apply processes one verified event. Non-nil errors mean the event was not
// durably handled and the caller should let the provider retry it.
func (r *Reconciler) Apply(ctx context.Context, ev moneymotion.Event, raw []byte) (Outcome, error) {
	if ev.Completed == nil {
		r.Log.Debug().Str("event_type", ev.Type).Msg("ignoring non-deposit event")
		return OutcomeIgnored, nil
	}

	key := ev.Key()
	if key == "" {
		r.Log.Warn().Msg("completed event without event or session id")
		return OutcomeIgnored, nil
	}

	session := ev.Completed
	if session.Username == "" {
		if err := r.Ledger.RecordUnattributed(ctx, key, "missing username metadata", raw); err != nil {
			return OutcomeUnattributed, fmt.Errorf("deposit: dead-letter event %s: %w", key, err)
		}
		return OutcomeUnattributed, nil
	}
	if session.AmountTotal <= 0 {
		if err := r.Ledger.RecordUnattributed(ctx, key, fmt.Sprintf("non-positive amount %d", session.AmountTotal), raw); err != nil {
			return OutcomeUnattributed, fmt.Errorf("deposit: dead-letter event %s: %w", key, err)
		}
		return OutcomeUnattributed, nil
	}

	applied, err := r.Ledger.CreditOnce(ctx, session.Username, key, session.AmountTotal)
	if err != nil {
		count(obs.LedgerCreditTotal, "error")
		return "", fmt.Errorf("deposit: credit event %s: %w", key, err)
	}
	if !applied {
		count(obs.LedgerCreditTotal, "already_applied")
		r.Log.Info().Str("event_id", key).Str("username", session.Username).Msg("deposit already applied")
		return OutcomeAlreadyApplied, nil
	}

	count(obs.LedgerCreditTotal, "applied")
	r.Log.Info().
		Str("event_id", key).
		Str("username", session.Username).
		Int64("amount_minor", session.AmountTotal).
		Msg("deposit applied")
	return OutcomeApplied, nil
}

// count tolerates unregistered collectors so unit tests need no registry.
func count(vec *prometheus.CounterVec, result string) {
	if vec != nil {
		vec.WithLabelValues(result).Inc()
	}
}
