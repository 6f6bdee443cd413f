package credentialrepo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/arsmhmt/unifiedgw/internal/domain"
	"github.com/arsmhmt/unifiedgw/internal/infrastructure/database"
)

type credentialRepositoryImpl struct {
	db     *sql.DB
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) ICredentialRepository {
	return &credentialRepositoryImpl{
		db:     db.Db,
		logger: logger,
	}
}

const credentialColumns = `id, merchant_id, key, secret_key, allowed_ips, is_active, expires_at, created_at`

func (r *credentialRepositoryImpl) GetByKey(ctx context.Context, key string) (domain.SigningCredential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM client_api_keys WHERE key = $1`, key)

	cred, err := r.scanCredential(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.SigningCredential{}, domain.ErrUnauthenticated
		}
		r.logger.Error().Err(err).Msg("Failed to get credential by key")
		return domain.SigningCredential{}, fmt.Errorf("failed to get credential: %w", err)
	}

	return cred, nil
}

func (r *credentialRepositoryImpl) GetActiveByMerchant(ctx context.Context, merchantID string) (domain.SigningCredential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM client_api_keys
		 WHERE merchant_id = $1 AND is_active
		 ORDER BY created_at DESC LIMIT 1`, merchantID)

	cred, err := r.scanCredential(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.SigningCredential{}, domain.ErrNotFound
		}
		r.logger.Error().Err(err).Str("merchant_id", merchantID).Msg("Failed to get active credential")
		return domain.SigningCredential{}, fmt.Errorf("failed to get active credential: %w", err)
	}

	return cred, nil
}

func (r *credentialRepositoryImpl) scanCredential(row *sql.Row) (domain.SigningCredential, error) {
	var cred domain.SigningCredential
	var allowedIPs pq.StringArray
	var expiresAt sql.NullTime

	if err := row.Scan(
		&cred.ID,
		&cred.MerchantID,
		&cred.Key,
		&cred.SecretKey,
		&allowedIPs,
		&cred.IsActive,
		&expiresAt,
		&cred.CreatedAt,
	); err != nil {
		return domain.SigningCredential{}, err
	}

	cred.AllowedIPs = allowedIPs
	if expiresAt.Valid {
		cred.ExpiresAt = expiresAt.Time
	}
	return cred, nil
}
