package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SettlementStatus string

const (
	SettlementStatusPending   SettlementStatus = "pending"
	SettlementStatusCompleted SettlementStatus = "completed"
	SettlementStatusFailed    SettlementStatus = "failed"
)

// Settlement is the working payment record for a checkout session, keyed by
// the session's public id. It holds the quoted conversion and the deposit
// address the payer is expected to fund.
type Settlement struct {
	ID             string           `json:"-" db:"id"`
	SessionID      string           `json:"session_id" db:"session_id"`
	MerchantID     string           `json:"-" db:"merchant_id"`
	FiatAmount     decimal.Decimal  `json:"fiat_amount" db:"fiat_amount"`
	FiatCurrency   string           `json:"fiat_currency" db:"fiat_currency"`
	CryptoAmount   decimal.Decimal  `json:"crypto_amount" db:"crypto_amount"`
	CryptoCurrency string           `json:"crypto_currency" db:"crypto_currency"`
	Network        string           `json:"network" db:"network"`
	DepositAddress string           `json:"deposit_address" db:"deposit_address"`
	TxHash         string           `json:"tx_hash,omitempty" db:"tx_hash"`
	Status         SettlementStatus `json:"status" db:"status"`
	FailureReason  string           `json:"failure_reason,omitempty" db:"failure_reason"`
	RateLock       RateLock         `json:"rate_lock" db:"-"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// RateLock is a quoted conversion rate held valid for a short TTL that is
// independent of the session TTL. An expired lock forces a re-quote, never
// a session failure.
type RateLock struct {
	Rate     decimal.Decimal `json:"rate" db:"exchange_rate"`
	LockedAt time.Time       `json:"locked_at" db:"rate_locked_at"`
	TTL      time.Duration   `json:"-" db:"-"`
}

func (l RateLock) ExpiresAt() time.Time {
	return l.LockedAt.Add(l.TTL)
}

func (l RateLock) Expired(now time.Time) bool {
	return l.LockedAt.IsZero() || now.After(l.ExpiresAt())
}
