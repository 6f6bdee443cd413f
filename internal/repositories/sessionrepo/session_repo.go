package sessionrepo

import (
	"context"

	"github.com/arsmhmt/unifiedgw/internal/domain"
)

type ISessionRepository interface {
	// Create inserts a new session. ErrDuplicateOpenSession is returned when
	// another open session already holds the (merchant, order) slot.
	Create(ctx context.Context, session domain.CheckoutSession) (domain.CheckoutSession, error)
	GetByPublicID(ctx context.Context, publicID string) (domain.CheckoutSession, error)
	GetForMerchant(ctx context.Context, merchantID, publicID string) (domain.CheckoutSession, error)
	FindOpenByOrder(ctx context.Context, merchantID, orderID string) (domain.CheckoutSession, error)
	// FinalizeExpired moves expired open sessions for the (merchant, order)
	// slot to the stored 'expired' status, freeing the slot for a fresh
	// insert. Returns the number of rows finalized.
	FinalizeExpired(ctx context.Context, merchantID, orderID string) (int64, error)
	// TransitionStatus performs a compare-and-swap status update guarded by
	// the allowed predecessor statuses. Returns false when zero rows matched.
	TransitionStatus(ctx context.Context, publicID string, to domain.SessionStatus, from ...domain.SessionStatus) (bool, error)
}
