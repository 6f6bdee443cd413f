package settlementrepo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/arsmhmt/unifiedgw/internal/domain"
	"github.com/arsmhmt/unifiedgw/internal/infrastructure/database"
)

type settlementRepositoryImpl struct {
	db     *sql.DB
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) ISettlementRepository {
	return &settlementRepositoryImpl{
		db:     db.Db,
		logger: logger,
	}
}

const settlementColumns = `id, session_id, merchant_id, fiat_amount::text, fiat_currency,
	crypto_amount::text, crypto_currency, network, deposit_address, tx_hash,
	exchange_rate::text, rate_locked_at, status, failure_reason, created_at, updated_at`

func (r *settlementRepositoryImpl) Upsert(ctx context.Context, settlement domain.Settlement) (domain.Settlement, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO settlements
			(session_id, merchant_id, fiat_amount, fiat_currency, crypto_amount,
			 crypto_currency, network, deposit_address, exchange_rate, rate_locked_at, status)
		 VALUES ($1, $2, $3::numeric, $4, $5::numeric, $6, $7, $8, $9::numeric, $10, 'pending')
		 ON CONFLICT (session_id) DO UPDATE SET
			crypto_amount = EXCLUDED.crypto_amount,
			crypto_currency = EXCLUDED.crypto_currency,
			network = EXCLUDED.network,
			deposit_address = EXCLUDED.deposit_address,
			exchange_rate = EXCLUDED.exchange_rate,
			rate_locked_at = EXCLUDED.rate_locked_at,
			status = 'pending',
			updated_at = now()
		 RETURNING `+settlementColumns,
		settlement.SessionID,
		settlement.MerchantID,
		settlement.FiatAmount.String(),
		settlement.FiatCurrency,
		settlement.CryptoAmount.String(),
		settlement.CryptoCurrency,
		settlement.Network,
		settlement.DepositAddress,
		settlement.RateLock.Rate.String(),
		settlement.RateLock.LockedAt,
	)

	saved, err := r.scanSettlement(row)
	if err != nil {
		r.logger.Error().Err(err).Str("session_id", settlement.SessionID).Msg("Failed to upsert settlement")
		return domain.Settlement{}, fmt.Errorf("failed to upsert settlement: %w", err)
	}

	return saved, nil
}

func (r *settlementRepositoryImpl) GetBySessionID(ctx context.Context, sessionID string) (domain.Settlement, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+settlementColumns+` FROM settlements WHERE session_id = $1`, sessionID)

	settlement, err := r.scanSettlement(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Settlement{}, domain.ErrNotFound
		}
		r.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to get settlement")
		return domain.Settlement{}, fmt.Errorf("failed to get settlement: %w", err)
	}

	return settlement, nil
}

func (r *settlementRepositoryImpl) MarkCompleted(ctx context.Context, sessionID string, update domain.Settlement) error {
	var cryptoAmount, cryptoCurrency, network, txHash, rate sql.NullString
	if !update.CryptoAmount.IsZero() {
		cryptoAmount = sql.NullString{String: update.CryptoAmount.String(), Valid: true}
	}
	if update.CryptoCurrency != "" {
		cryptoCurrency = sql.NullString{String: update.CryptoCurrency, Valid: true}
	}
	if update.Network != "" {
		network = sql.NullString{String: update.Network, Valid: true}
	}
	if update.TxHash != "" {
		txHash = sql.NullString{String: update.TxHash, Valid: true}
	}
	if !update.RateLock.Rate.IsZero() {
		rate = sql.NullString{String: update.RateLock.Rate.String(), Valid: true}
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE settlements SET
			status = 'completed',
			crypto_amount = COALESCE($2::numeric, crypto_amount),
			crypto_currency = COALESCE($3, crypto_currency),
			network = COALESCE($4, network),
			tx_hash = COALESCE($5, tx_hash),
			exchange_rate = COALESCE($6::numeric, exchange_rate),
			updated_at = now()
		 WHERE session_id = $1`,
		sessionID, cryptoAmount, cryptoCurrency, network, txHash, rate); err != nil {
		r.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to mark settlement completed")
		return fmt.Errorf("failed to mark settlement completed: %w", err)
	}

	return nil
}

func (r *settlementRepositoryImpl) MarkFailed(ctx context.Context, sessionID, reason string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE settlements SET
			status = 'failed',
			failure_reason = NULLIF($2, ''),
			updated_at = now()
		 WHERE session_id = $1`,
		sessionID, reason); err != nil {
		r.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to mark settlement failed")
		return fmt.Errorf("failed to mark settlement failed: %w", err)
	}

	return nil
}

func (r *settlementRepositoryImpl) scanSettlement(row *sql.Row) (domain.Settlement, error) {
	var settlement domain.Settlement
	var fiatAmount string
	var cryptoAmount, cryptoCurrency, network, depositAddress, txHash, rate, failureReason sql.NullString
	var rateLockedAt sql.NullTime
	var status string

	if err := row.Scan(
		&settlement.ID,
		&settlement.SessionID,
		&settlement.MerchantID,
		&fiatAmount,
		&settlement.FiatCurrency,
		&cryptoAmount,
		&cryptoCurrency,
		&network,
		&depositAddress,
		&txHash,
		&rate,
		&rateLockedAt,
		&status,
		&failureReason,
		&settlement.CreatedAt,
		&settlement.UpdatedAt,
	); err != nil {
		return domain.Settlement{}, err
	}

	parsed, err := decimal.NewFromString(fiatAmount)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("failed to parse fiat amount: %w", err)
	}
	settlement.FiatAmount = parsed

	if cryptoAmount.Valid {
		if settlement.CryptoAmount, err = decimal.NewFromString(cryptoAmount.String); err != nil {
			return domain.Settlement{}, fmt.Errorf("failed to parse crypto amount: %w", err)
		}
	}
	if rate.Valid {
		if settlement.RateLock.Rate, err = decimal.NewFromString(rate.String); err != nil {
			return domain.Settlement{}, fmt.Errorf("failed to parse exchange rate: %w", err)
		}
	}
	if rateLockedAt.Valid {
		settlement.RateLock.LockedAt = rateLockedAt.Time.UTC()
	} else {
		settlement.RateLock.LockedAt = time.Time{}
	}

	settlement.CryptoCurrency = cryptoCurrency.String
	settlement.Network = network.String
	settlement.DepositAddress = depositAddress.String
	settlement.TxHash = txHash.String
	settlement.FailureReason = failureReason.String
	settlement.Status = domain.SettlementStatus(status)
	return settlement, nil
}
