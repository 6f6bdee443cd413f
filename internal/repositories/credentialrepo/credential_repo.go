package credentialrepo

import (
	"context"

	"github.com/arsmhmt/unifiedgw/internal/domain"
)

type ICredentialRepository interface {
	GetByKey(ctx context.Context, key string) (domain.SigningCredential, error)
	GetActiveByMerchant(ctx context.Context, merchantID string) (domain.SigningCredential, error)
}
