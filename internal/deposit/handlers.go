package deposit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/nextlevel/funds-api/internal/common"
	"github.com/nextlevel/funds-api/internal/ledger"
	"github.com/nextlevel/funds-api/internal/money"
	"github.com/nextlevel/funds-api/internal/moneymotion"
	"github.com/nextlevel/funds-api/internal/obs"
)

// SessionCreator abstracts the provider client for handler tests.
type SessionCreator interface {
	CreateSession(ctx context.Context, username string, amountMinor int64) (moneymotion.Session, error)
}

// BalanceReader exposes the read side of the ledger.
type BalanceReader interface {
	Balance(ctx context.Context, username string) (int64, error)
}

// Handler serves the deposit initiation and balance endpoints.
type Handler struct {
	Money    money.Normalizer
	Sessions SessionCreator
	Balances BalanceReader
	Validate *validator.Validate
	Log      zerolog.Logger
}

type createPaymentRequest struct {
	Amount   float64 `json:"amount" validate:"required"`
	Username string  `json:"username" validate:"required,min=1,max=128"`
}

type createPaymentResponse struct {
	PaymentURL string `json:"paymentUrl"`
}

// CreatePayment validates the deposit request, opens a provider checkout
// session and hands the payment URL back to the browser. Provider failure
// detail never reaches the client.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid amount or user information.")
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid amount or user information.")
		return
	}

	amountMinor, err := h.Money.Normalize(req.Amount)
	if err != nil {
		count(obs.DepositSessionTotal, "invalid_amount")
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid amount or user information.")
		return
	}

	session, err := h.Sessions.CreateSession(r.Context(), req.Username, amountMinor)
	if err != nil {
		h.writeSessionError(w, req.Username, err)
		return
	}

	count(obs.DepositSessionTotal, "created")
	h.Log.Info().
		Str("username", req.Username).
		Int64("amount_minor", amountMinor).
		Str("session_id", session.ID).
		Msg("checkout session created")
	common.JSON(w, http.StatusOK, createPaymentResponse{PaymentURL: session.URL})
}

func (h *Handler) writeSessionError(w http.ResponseWriter, username string, err error) {
	switch {
	case errors.Is(err, moneymotion.ErrNotConfigured):
		count(obs.DepositSessionTotal, "not_configured")
		h.Log.Error().Str("username", username).Msg("payment provider api key is not configured")
		common.JSONError(w, http.StatusInternalServerError, "NOT_CONFIGURED", "Payment processing is not configured.")
	case errors.Is(err, moneymotion.ErrInvalidRequest):
		count(obs.DepositSessionTotal, "invalid_request")
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid amount or user information.")
	default:
		count(obs.DepositSessionTotal, "provider_error")
		h.Log.Error().Err(err).Str("username", username).Msg("checkout session creation failed")
		common.JSONError(w, http.StatusInternalServerError, "SESSION_FAILED", "Could not create payment session.")
	}
}

// GetBalance returns the current minor-unit balance for a username.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "Username is required.")
		return
	}
	balance, err := h.Balances.Balance(r.Context(), username)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "Account not found.")
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Str("username", username).Msg("balance lookup failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "Could not read balance.")
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"username":     username,
		"balanceMinor": balance,
	})
}
