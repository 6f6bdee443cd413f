package domain

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventPaymentPending   EventType = "payment.pending"
	EventPaymentCompleted EventType = "payment.completed"
	EventPaymentFailed    EventType = "payment.failed"
)

// SessionEvent is the append-only audit and delivery record for one
// lifecycle transition. The payload is the exact envelope delivered to the
// merchant; the outcome fields are written once by the dispatcher and never
// mutated afterward.
type SessionEvent struct {
	ID             string          `json:"id" db:"id"`
	SessionID      string          `json:"session_id" db:"session_id"`
	EventType      EventType       `json:"event_type" db:"event_type"`
	Payload        json.RawMessage `json:"payload" db:"payload"`
	ResponseStatus *int            `json:"response_status" db:"response_status"`
	ResponseBody   string          `json:"response_body,omitempty" db:"response_body"`
	Error          string          `json:"error,omitempty" db:"error"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// EventEnvelope is what gets persisted and delivered: the session snapshot
// wrapped under data.object with the event identity alongside.
type EventEnvelope struct {
	Type    EventType    `json:"type"`
	ID      string       `json:"id"`
	Data    EnvelopeData `json:"data"`
	Created int64        `json:"created"`
}

type EnvelopeData struct {
	Object map[string]interface{} `json:"object"`
}
