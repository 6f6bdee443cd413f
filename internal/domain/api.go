package domain

import "encoding/json"

type ApiResponse struct {
	Message string      `json:"message"`
	Success bool        `json:"success"`
	Status  int         `json:"status"`
	Data    interface{} `json:"data,omitempty"`
}

// CreateSessionRequest is the merchant-facing session creation body.
type CreateSessionRequest struct {
	OrderID    string          `json:"order_id"`
	Amount     string          `json:"amount"`
	Currency   string          `json:"currency"`
	SuccessURL string          `json:"success_url"`
	CancelURL  string          `json:"cancel_url"`
	WebhookURL string          `json:"webhook_url"`
	Customer   *Customer       `json:"customer"`
	Metadata   json.RawMessage `json:"metadata"`
}

type Customer struct {
	Email string `json:"email"`
}

// CreateSessionResponse is returned for both new (201) and reused (200)
// sessions.
type CreateSessionResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	CheckoutURL string `json:"checkout_url"`
	ExpiresAt   int64  `json:"expires_at"`
}

// SelectAssetRequest is the payer's settlement asset/network choice.
type SelectAssetRequest struct {
	CryptoCurrency string `json:"crypto_currency"`
	Network        string `json:"network"`
}

// TransitionRequest drives the payer-facing confirm/fail POST.
type TransitionRequest struct {
	Status         string `json:"status"`
	CryptoAmount   string `json:"crypto_amount"`
	CryptoCurrency string `json:"crypto_currency"`
	Network        string `json:"network"`
	TxHash         string `json:"tx_hash"`
	ExchangeRate   string `json:"exchange_rate"`
	FailureReason  string `json:"failure_reason"`
}

// CheckoutView is the payer-facing snapshot served by GET /checkout/:id.
type CheckoutView struct {
	ID              string `json:"id"`
	OrderID         string `json:"order_id"`
	Status          string `json:"status"`
	FiatAmount      string `json:"fiat_amount"`
	FiatCurrency    string `json:"fiat_currency"`
	CryptoAmount    string `json:"crypto_amount"`
	CryptoCurrency  string `json:"crypto_currency"`
	Network         string `json:"network"`
	DepositAddress  string `json:"deposit_address"`
	ExchangeRate    string `json:"exchange_rate"`
	RateLockedUntil int64  `json:"rate_locked_until,omitempty"`
	SecondsLeft     int64  `json:"seconds_left"`
	SuccessURL      string `json:"success_url"`
	CancelURL       string `json:"cancel_url"`
}
