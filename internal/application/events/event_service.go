package events

import (
	"context"

	"github.com/arsmhmt/unifiedgw/internal/domain"
)

// IEventService records lifecycle transitions and notifies the merchant.
type IEventService interface {
	// RecordAndDispatch persists the transition event, then makes a single
	// best-effort delivery attempt to the merchant webhook. The returned
	// error covers persistence only; delivery outcome lives on the event.
	RecordAndDispatch(ctx context.Context, session domain.CheckoutSession, eventType domain.EventType, overrides map[string]interface{}) (*domain.SessionEvent, error)
	ListBySession(ctx context.Context, session domain.CheckoutSession) ([]domain.SessionEvent, error)
}
