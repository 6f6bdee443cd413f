package sessionrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sqlc-dev/pqtype"

	"github.com/arsmhmt/unifiedgw/internal/domain"
	"github.com/arsmhmt/unifiedgw/internal/infrastructure/database"
)

// ErrDuplicateOpenSession signals the open-slot unique index rejected an
// insert because an open session for the same (merchant, order) exists.
var ErrDuplicateOpenSession = errors.New("duplicate open session")

const uniqueViolation = "23505"

type sessionRepositoryImpl struct {
	db     *sql.DB
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) ISessionRepository {
	return &sessionRepositoryImpl{
		db:     db.Db,
		logger: logger,
	}
}

const sessionColumns = `id, public_id, merchant_id, order_id, amount::text, currency,
	customer_email, metadata, status, success_url, cancel_url, webhook_url,
	expires_at, created_at, updated_at`

func (r *sessionRepositoryImpl) Create(ctx context.Context, session domain.CheckoutSession) (domain.CheckoutSession, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO checkout_sessions
			(public_id, merchant_id, order_id, amount, currency, customer_email,
			 metadata, status, success_url, cancel_url, webhook_url, expires_at)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING `+sessionColumns,
		session.PublicID,
		session.MerchantID,
		session.OrderID,
		session.Amount.String(),
		session.Currency,
		sql.NullString{String: session.CustomerEmail, Valid: session.CustomerEmail != ""},
		pqtype.NullRawMessage{RawMessage: session.Metadata, Valid: session.Metadata != nil},
		string(session.Status),
		session.SuccessURL,
		session.CancelURL,
		sql.NullString{String: session.WebhookURL, Valid: session.WebhookURL != ""},
		session.ExpiresAt,
	)

	created, err := r.scanSession(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.CheckoutSession{}, ErrDuplicateOpenSession
		}
		r.logger.Error().Err(err).Str("order_id", session.OrderID).Msg("Failed to create checkout session")
		return domain.CheckoutSession{}, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return created, nil
}

func (r *sessionRepositoryImpl) GetByPublicID(ctx context.Context, publicID string) (domain.CheckoutSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM checkout_sessions WHERE public_id = $1`, publicID)

	session, err := r.scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.CheckoutSession{}, domain.ErrNotFound
		}
		r.logger.Error().Err(err).Str("public_id", publicID).Msg("Failed to get checkout session")
		return domain.CheckoutSession{}, fmt.Errorf("failed to get checkout session: %w", err)
	}

	return session, nil
}

func (r *sessionRepositoryImpl) GetForMerchant(ctx context.Context, merchantID, publicID string) (domain.CheckoutSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM checkout_sessions
		 WHERE public_id = $1 AND merchant_id = $2`, publicID, merchantID)

	session, err := r.scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.CheckoutSession{}, domain.ErrNotFound
		}
		r.logger.Error().Err(err).Str("public_id", publicID).Msg("Failed to get merchant session")
		return domain.CheckoutSession{}, fmt.Errorf("failed to get merchant session: %w", err)
	}

	return session, nil
}

func (r *sessionRepositoryImpl) FindOpenByOrder(ctx context.Context, merchantID, orderID string) (domain.CheckoutSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM checkout_sessions
		 WHERE merchant_id = $1 AND order_id = $2 AND status IN ('created', 'pending')`,
		merchantID, orderID)

	session, err := r.scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.CheckoutSession{}, domain.ErrNotFound
		}
		r.logger.Error().Err(err).Str("order_id", orderID).Msg("Failed to find open session")
		return domain.CheckoutSession{}, fmt.Errorf("failed to find open session: %w", err)
	}

	return session, nil
}

func (r *sessionRepositoryImpl) FinalizeExpired(ctx context.Context, merchantID, orderID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE checkout_sessions
		 SET status = 'expired', updated_at = now()
		 WHERE merchant_id = $1 AND order_id = $2
		   AND status IN ('created', 'pending')
		   AND expires_at < now()`,
		merchantID, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID).Msg("Failed to finalize expired sessions")
		return 0, fmt.Errorf("failed to finalize expired sessions: %w", err)
	}

	return result.RowsAffected()
}

func (r *sessionRepositoryImpl) TransitionStatus(ctx context.Context, publicID string, to domain.SessionStatus, from ...domain.SessionStatus) (bool, error) {
	predecessors := make([]string, len(from))
	for i, s := range from {
		predecessors[i] = string(s)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE checkout_sessions
		 SET status = $2, updated_at = now()
		 WHERE public_id = $1 AND status = ANY($3)`,
		publicID, string(to), pq.Array(predecessors))
	if err != nil {
		r.logger.Error().Err(err).Str("public_id", publicID).Str("status", string(to)).Msg("Failed to transition session status")
		return false, fmt.Errorf("failed to transition session status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}

func (r *sessionRepositoryImpl) scanSession(row *sql.Row) (domain.CheckoutSession, error) {
	var session domain.CheckoutSession
	var amount string
	var customerEmail, webhookURL sql.NullString
	var metadata pqtype.NullRawMessage
	var status string

	if err := row.Scan(
		&session.ID,
		&session.PublicID,
		&session.MerchantID,
		&session.OrderID,
		&amount,
		&session.Currency,
		&customerEmail,
		&metadata,
		&status,
		&session.SuccessURL,
		&session.CancelURL,
		&webhookURL,
		&session.ExpiresAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		return domain.CheckoutSession{}, err
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("failed to parse amount: %w", err)
	}

	session.Amount = parsed
	session.CustomerEmail = customerEmail.String
	session.WebhookURL = webhookURL.String
	session.Metadata = metadata.RawMessage
	session.Status = domain.SessionStatus(status)
	return session, nil
}
