package sessions

import (
	"context"

	"github.com/arsmhmt/unifiedgw/internal/domain"
)

// ISessionService owns checkout-session creation and the merchant-facing
// read surface.
type ISessionService interface {
	// CreateOrReuse returns the open session for (merchant, order_id) when
	// one exists, otherwise creates a fresh one. reused distinguishes the
	// 200 from the 201 outcome.
	CreateOrReuse(ctx context.Context, cred domain.SigningCredential, req domain.CreateSessionRequest) (resp domain.CreateSessionResponse, reused bool, err error)
	GetForMerchant(ctx context.Context, cred domain.SigningCredential, publicID string) (domain.CheckoutSession, error)
	ListEvents(ctx context.Context, cred domain.SigningCredential, publicID string) ([]domain.SessionEvent, error)
}
