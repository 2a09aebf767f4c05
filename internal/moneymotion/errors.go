package moneymotion

import "errors"

var (
	// ErrNotConfigured is returned for every session request while the
	// provider API key is absent from the environment.
	ErrNotConfigured = errors.New("moneymotion: api key not configured")
	// ErrInvalidRequest flags a session request that fails the defensive
	// re-check of username and amount.
	ErrInvalidRequest = errors.New("moneymotion: invalid session request")
	// ErrProviderRejected covers non-success provider responses and success
	// responses without a usable checkout URL.
	ErrProviderRejected = errors.New("moneymotion: provider rejected session")
	// ErrProviderUnreachable covers transport-level failures.
	ErrProviderUnreachable = errors.New("moneymotion: provider unreachable")
	// ErrSignatureInvalid covers missing, malformed, stale or mismatched
	// webhook signatures.
	ErrSignatureInvalid = errors.New("moneymotion: webhook signature invalid")
	// ErrMalformedEvent flags a correctly signed payload that is not valid
	// structured data.
	ErrMalformedEvent = errors.New("moneymotion: malformed event payload")
)
