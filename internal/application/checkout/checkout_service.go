package checkout

import (
	"context"

	"github.com/arsmhmt/unifiedgw/internal/domain"
)

// ICheckoutService drives the payer-facing session state machine:
// created -> pending -> {completed | failed}.
type ICheckoutService interface {
	// View renders the payer-facing snapshot with a live quote for the
	// requested (or default) settlement asset.
	View(ctx context.Context, publicID, cryptoCurrency, network string) (domain.CheckoutView, error)
	// Select locks a quote and deposit address for the chosen asset and
	// moves the session to pending, emitting payment.pending.
	Select(ctx context.Context, publicID string, req domain.SelectAssetRequest) (domain.Settlement, error)
	// Confirm finalizes the settlement and completes the session, emitting
	// payment.completed.
	Confirm(ctx context.Context, publicID string, req domain.TransitionRequest) (domain.CheckoutSession, error)
	// Fail moves any non-terminal session to failed, emitting payment.failed.
	Fail(ctx context.Context, publicID string, req domain.TransitionRequest) (domain.CheckoutSession, error)
}
