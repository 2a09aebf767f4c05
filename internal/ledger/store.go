package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ErrAccountNotFound is returned by Balance for usernames with no ledger
// account.
var ErrAccountNotFound = errors.New("ledger: account not found")

// Store persists deposit credits with event-level idempotency. The unique
// event_id key makes CreditOnce safe under provider webhook retries.
type Store struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewStore wraps an existing pool. The pool's lifecycle stays with the
// caller.
func NewStore(pool *pgxpool.Pool, log zerolog.Logger) *Store {
	return &Store{Pool: pool, log: log.With().Str("component", "ledger").Logger()}
}

// CreditOnce applies a deposit exactly once per event id. It returns true
// when this call moved the balance and false when the event was already
// applied. The event record and the balance change commit in one
// transaction.
func (s *Store) CreditOnce(ctx context.Context, username, eventID string, amountMinor int64) (bool, error) {
	if username == "" || eventID == "" {
		return false, errors.New("ledger: username and event id are required")
	}
	if amountMinor <= 0 {
		return false, fmt.Errorf("ledger: non-positive credit amount %d", amountMinor)
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`INSERT INTO ledger_events (event_id, username, amount_minor)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (event_id) DO NOTHING`,
		eventID, username, amountMinor)
	if err != nil {
		return false, fmt.Errorf("ledger: record event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO ledger_accounts (username, balance_minor)
		 VALUES ($1, $2)
		 ON CONFLICT (username) DO UPDATE
		 SET balance_minor = ledger_accounts.balance_minor + EXCLUDED.balance_minor,
		     updated_at = now()`,
		username, amountMinor); err != nil {
		return false, fmt.Errorf("ledger: credit balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("ledger: commit: %w", err)
	}
	return true, nil
}

// Balance returns the current minor-unit balance for a username.
func (s *Store) Balance(ctx context.Context, username string) (int64, error) {
	var balance int64
	err := s.Pool.QueryRow(ctx,
		`SELECT balance_minor FROM ledger_accounts WHERE username = $1`,
		username).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("ledger: query balance: %w", err)
	}
	return balance, nil
}

// RecordUnattributed dead-letters a verified event that cannot be credited,
// typically because metadata.username is missing. Duplicate event ids are
// absorbed silently.
func (s *Store) RecordUnattributed(ctx context.Context, eventID, reason string, payload []byte) error {
	if eventID == "" {
		return errors.New("ledger: event id is required")
	}
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO unattributed_events (event_id, reason, payload)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (event_id) DO NOTHING`,
		eventID, reason, payload)
	if err != nil {
		return fmt.Errorf("ledger: record unattributed event: %w", err)
	}
	s.log.Warn().Str("event_id", eventID).Str("reason", reason).Msg("dead-lettered unattributable event")
	return nil
}

// Ping reports database reachability for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}
