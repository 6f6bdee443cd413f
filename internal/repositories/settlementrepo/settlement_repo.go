package settlementrepo

import (
	"context"

	"github.com/arsmhmt/unifiedgw/internal/domain"
)

type ISettlementRepository interface {
	// Upsert inserts or refreshes the settlement keyed by session public id,
	// replacing the quote, deposit address and rate lock.
	Upsert(ctx context.Context, settlement domain.Settlement) (domain.Settlement, error)
	GetBySessionID(ctx context.Context, sessionID string) (domain.Settlement, error)
	MarkCompleted(ctx context.Context, sessionID string, update domain.Settlement) error
	MarkFailed(ctx context.Context, sessionID, reason string) error
}
