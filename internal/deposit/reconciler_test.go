package deposit

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nextlevel/funds-api/internal/moneymotion"
)

type stubLedger struct {
	credits      []string
	applied      bool
	creditErr    error
	unattributed []string
	deadErr      error
}

func (s *stubLedger) CreditOnce(_ context.Context, username, eventID string, amountMinor int64) (bool, error) {
	s.credits = append(s.credits, eventID)
	return s.applied, s.creditErr
}

func (s *stubLedger) RecordUnattributed(_ context.Context, eventID, reason string, _ []byte) error {
	s.unattributed = append(s.unattributed, eventID+": "+reason)
	return s.deadErr
}

func completedEvent(username string, amount int64) moneymotion.Event {
	return moneymotion.Event{
		ID:   "evt_1",
		Type: moneymotion.EventCheckoutCompleted,
		Completed: &moneymotion.CompletedSession{
			SessionID:   "cs_1",
			Username:    username,
			AmountTotal: amount,
		},
	}
}

func TestApplyCreditsOnce(t *testing.T) {
	led := &stubLedger{applied: true}
	rec := &Reconciler{Ledger: led, Log: zerolog.Nop()}

	outcome, err := rec.Apply(context.Background(), completedEvent("alice", 500), nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)
	require.Equal(t, []string{"evt_1"}, led.credits)
}

func TestApplyDuplicateIsBenign(t *testing.T) {
	led := &stubLedger{applied: false}
	rec := &Reconciler{Ledger: led, Log: zerolog.Nop()}

	outcome, err := rec.Apply(context.Background(), completedEvent("alice", 500), nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyApplied, outcome)
}

func TestApplyIgnoresOtherEventTypes(t *testing.T) {
	led := &stubLedger{}
	rec := &Reconciler{Ledger: led, Log: zerolog.Nop()}

	outcome, err := rec.Apply(context.Background(), moneymotion.Event{ID: "evt_2", Type: "invoice.paid"}, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeIgnored, outcome)
	require.Empty(t, led.credits)
}

func TestApplyDeadLettersMissingUsername(t *testing.T) {
	led := &stubLedger{}
	rec := &Reconciler{Ledger: led, Log: zerolog.Nop()}

	outcome, err := rec.Apply(context.Background(), completedEvent("", 500), []byte("{}"))
	require.NoError(t, err)
	require.Equal(t, OutcomeUnattributed, outcome)
	require.Len(t, led.unattributed, 1)
	require.Contains(t, led.unattributed[0], "missing username")
	require.Empty(t, led.credits)
}

func TestApplyDeadLettersNonPositiveAmount(t *testing.T) {
	led := &stubLedger{}
	rec := &Reconciler{Ledger: led, Log: zerolog.Nop()}

	outcome, err := rec.Apply(context.Background(), completedEvent("alice", 0), []byte("{}"))
	require.NoError(t, err)
	require.Equal(t, OutcomeUnattributed, outcome)
	require.Len(t, led.unattributed, 1)
}

func TestApplyPropagatesLedgerFailure(t *testing.T) {
	led := &stubLedger{creditErr: errors.New("db down")}
	rec := &Reconciler{Ledger: led, Log: zerolog.Nop()}

	_, err := rec.Apply(context.Background(), completedEvent("alice", 500), nil)
	require.Error(t, err)
}

func TestApplyPropagatesDeadLetterFailure(t *testing.T) {
	led := &stubLedger{deadErr: errors.New("db down")}
	rec := &Reconciler{Ledger: led, Log: zerolog.Nop()}

	_, err := rec.Apply(context.Background(), completedEvent("", 500), nil)
	require.Error(t, err)
}
