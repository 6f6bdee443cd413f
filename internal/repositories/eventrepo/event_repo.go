package eventrepo

import (
	"context"

	"github.com/arsmhmt/unifiedgw/internal/domain"
)

type IEventRepository interface {
	// Create persists the event with a null delivery outcome. The row must
	// exist before any delivery attempt is made.
	Create(ctx context.Context, event domain.SessionEvent) (domain.SessionEvent, error)
	// RecordOutcome writes the single delivery outcome update. A nil status
	// with error text records a transport failure; a status code with body
	// records a received response and clears the error.
	RecordOutcome(ctx context.Context, eventID string, status *int, responseBody, errText string) error
	// ListBySession returns events newest-first.
	ListBySession(ctx context.Context, sessionID string) ([]domain.SessionEvent, error)
}
