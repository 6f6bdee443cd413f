package domain

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	SessionStatusCreated   SessionStatus = "created"
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
	// SessionStatusExpired is a storage-level status: an open session whose
	// expires_at has passed is lazily finalized to it so a fresh session can
	// take over the (merchant, order) idempotency slot. It is never reached
	// by a checkout transition and reads treat it as not found.
	SessionStatusExpired SessionStatus = "expired"
)

// IsTerminal reports whether no further transition is permitted.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed || s == SessionStatusExpired
}

// IsOpen reports whether the session still occupies its merchant/order
// idempotency slot.
func (s SessionStatus) IsOpen() bool {
	return s == SessionStatusCreated || s == SessionStatusPending
}

// CheckoutSession is one merchant payment request, retained forever for audit.
type CheckoutSession struct {
	ID            string          `json:"-" db:"id"`
	PublicID      string          `json:"id" db:"public_id"`
	MerchantID    string          `json:"-" db:"merchant_id"`
	OrderID       string          `json:"order_id" db:"order_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Currency      string          `json:"currency" db:"currency"`
	CustomerEmail string          `json:"customer_email,omitempty" db:"customer_email"`
	Metadata      json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	Status        SessionStatus   `json:"status" db:"status"`
	SuccessURL    string          `json:"success_url" db:"success_url"`
	CancelURL     string          `json:"cancel_url" db:"cancel_url"`
	WebhookURL    string          `json:"webhook_url,omitempty" db:"webhook_url"`
	ExpiresAt     time.Time       `json:"expires_at" db:"expires_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// IsExpired checks the session TTL against now.
func (s *CheckoutSession) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// NewPublicID generates an unguessable externally-exposed session id.
func NewPublicID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic("session id entropy unavailable: " + err.Error())
	}
	return "ps_" + hex.EncodeToString(buf)
}
