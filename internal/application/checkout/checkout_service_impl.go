package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/arsmhmt/unifiedgw/internal/application/events"
	"github.com/arsmhmt/unifiedgw/internal/domain"
	"github.com/arsmhmt/unifiedgw/internal/infrastructure/clients"
	"github.com/arsmhmt/unifiedgw/internal/infrastructure/wallet"
	"github.com/arsmhmt/unifiedgw/internal/repositories/sessionrepo"
	"github.com/arsmhmt/unifiedgw/internal/repositories/settlementrepo"
	"github.com/arsmhmt/unifiedgw/pkg/config"
	"github.com/arsmhmt/unifiedgw/pkg/currency"
)

type checkoutService struct {
	sessionRepo    sessionrepo.ISessionRepository
	settlementRepo settlementrepo.ISettlementRepository
	rateProvider   clients.IRateProvider
	addressIssuer  wallet.IAddressIssuer
	eventSvc       events.IEventService
	cfg            config.CheckoutConfig
	logger         zerolog.Logger
}

func NewCheckoutService(
	sessionRepo sessionrepo.ISessionRepository,
	settlementRepo settlementrepo.ISettlementRepository,
	rateProvider clients.IRateProvider,
	addressIssuer wallet.IAddressIssuer,
	eventSvc events.IEventService,
	cfg config.CheckoutConfig,
	logger zerolog.Logger,
) ICheckoutService {
	return &checkoutService{
		sessionRepo:    sessionRepo,
		settlementRepo: settlementRepo,
		rateProvider:   rateProvider,
		addressIssuer:  addressIssuer,
		eventSvc:       eventSvc,
		cfg:            cfg,
		logger:         logger.With().Str("component", "checkout_service").Logger(),
	}
}

func (s *checkoutService) View(ctx context.Context, publicID, cryptoCurrency, network string) (domain.CheckoutView, error) {
	session, err := s.sessionRepo.GetByPublicID(ctx, publicID)
	if err != nil {
		return domain.CheckoutView{}, err
	}
	if session.Status == domain.SessionStatusExpired || session.IsExpired() {
		return domain.CheckoutView{}, domain.ErrNotFound
	}

	asset, network := s.defaults(cryptoCurrency, network)

	view := domain.CheckoutView{
		ID:             session.PublicID,
		OrderID:        session.OrderID,
		Status:         string(session.Status),
		FiatAmount:     session.Amount.String(),
		FiatCurrency:   session.Currency,
		CryptoCurrency: asset,
		Network:        network,
		SecondsLeft:    secondsLeft(session.ExpiresAt),
		SuccessURL:     session.SuccessURL,
		CancelURL:      session.CancelURL,
	}

	// A held settlement with a live rate lock is authoritative for the
	// quote; otherwise quote live for display without persisting anything.
	settlement, err := s.settlementRepo.GetBySessionID(ctx, publicID)
	if err == nil && settlement.CryptoCurrency == asset {
		settlement.RateLock.TTL = s.cfg.RateLockTTL
		if !settlement.RateLock.Expired(time.Now()) {
			view.CryptoAmount = settlement.CryptoAmount.String()
			view.DepositAddress = settlement.DepositAddress
			view.ExchangeRate = settlement.RateLock.Rate.String()
			view.RateLockedUntil = settlement.RateLock.ExpiresAt().Unix()
			return view, nil
		}
		view.DepositAddress = settlement.DepositAddress
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.CheckoutView{}, err
	}

	rate, err := s.rateProvider.GetExchangeRate(ctx, asset, session.Currency)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", publicID).Str("asset", asset).Msg("Live quote unavailable for checkout view")
		return view, nil
	}

	cryptoAmount, err := currency.FiatToCrypto(session.Amount, rate.Rate)
	if err != nil {
		return view, nil
	}

	view.CryptoAmount = cryptoAmount.String()
	view.ExchangeRate = rate.Rate.String()
	return view, nil
}

func (s *checkoutService) Select(ctx context.Context, publicID string, req domain.SelectAssetRequest) (domain.Settlement, error) {
	session, err := s.actionable(ctx, publicID)
	if err != nil {
		return domain.Settlement{}, err
	}

	asset, network := s.defaults(req.CryptoCurrency, req.Network)

	rate, err := s.rateProvider.GetExchangeRate(ctx, asset, session.Currency)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("failed to quote %s/%s: %w", asset, session.Currency, err)
	}

	cryptoAmount, err := currency.FiatToCrypto(session.Amount, rate.Rate)
	if err != nil {
		return domain.Settlement{}, err
	}

	address, err := s.addressIssuer.IssueAddress(session.MerchantID, asset, network)
	if err != nil {
		return domain.Settlement{}, err
	}

	settlement, err := s.settlementRepo.Upsert(ctx, domain.Settlement{
		SessionID:      session.PublicID,
		MerchantID:     session.MerchantID,
		FiatAmount:     session.Amount,
		FiatCurrency:   session.Currency,
		CryptoAmount:   cryptoAmount,
		CryptoCurrency: asset,
		Network:        network,
		DepositAddress: address,
		RateLock: domain.RateLock{
			Rate:     rate.Rate,
			LockedAt: time.Now(),
			TTL:      s.cfg.RateLockTTL,
		},
	})
	if err != nil {
		return domain.Settlement{}, err
	}
	settlement.RateLock.TTL = s.cfg.RateLockTTL

	if err := s.transition(ctx, &session, domain.SessionStatusPending,
		domain.SessionStatusCreated, domain.SessionStatusPending); err != nil {
		return domain.Settlement{}, err
	}

	if _, err := s.eventSvc.RecordAndDispatch(ctx, session, domain.EventPaymentPending, map[string]interface{}{
		"crypto_amount":   cryptoAmount.String(),
		"crypto_currency": asset,
		"network":         network,
		"exchange_rate":   rate.Rate.String(),
		"transaction_id":  session.PublicID,
	}); err != nil {
		return domain.Settlement{}, err
	}

	s.logger.Info().
		Str("session_id", session.PublicID).
		Str("asset", asset).
		Str("network", network).
		Str("crypto_amount", cryptoAmount.String()).
		Msg("Settlement selected, session pending")

	return settlement, nil
}

func (s *checkoutService) Confirm(ctx context.Context, publicID string, req domain.TransitionRequest) (domain.CheckoutSession, error) {
	session, err := s.actionable(ctx, publicID)
	if err != nil {
		return domain.CheckoutSession{}, err
	}

	update, err := s.settlementUpdate(session, req)
	if err != nil {
		return domain.CheckoutSession{}, err
	}

	settlement, err := s.settlementRepo.GetBySessionID(ctx, publicID)
	if errors.Is(err, domain.ErrNotFound) {
		// Confirmation can arrive before the payer ever touched the
		// selection step (upstream deposit confirmation); make the working
		// record on the fly the way a selection would have.
		settlement, err = s.settlementRepo.Upsert(ctx, update)
	}
	if err != nil {
		return domain.CheckoutSession{}, err
	}
	settlement.RateLock.TTL = s.cfg.RateLockTTL

	// The crypto amount for the completed event: explicit from the caller,
	// else the held quote while its lock is live, else a transparent
	// re-quote. Lock expiry never fails the checkout.
	cryptoAmount := update.CryptoAmount
	exchangeRate := update.RateLock.Rate
	if cryptoAmount.IsZero() {
		if !settlement.CryptoAmount.IsZero() && !settlement.RateLock.Expired(time.Now()) {
			cryptoAmount = settlement.CryptoAmount
			exchangeRate = settlement.RateLock.Rate
		} else if rate, rateErr := s.rateProvider.GetExchangeRate(ctx, update.CryptoCurrency, session.Currency); rateErr == nil {
			if amount, convErr := currency.FiatToCrypto(session.Amount, rate.Rate); convErr == nil {
				cryptoAmount = amount
				exchangeRate = rate.Rate
			}
		}
		update.CryptoAmount = cryptoAmount
		update.RateLock.Rate = exchangeRate
	}

	if err := s.transition(ctx, &session, domain.SessionStatusCompleted,
		domain.SessionStatusCreated, domain.SessionStatusPending); err != nil {
		return domain.CheckoutSession{}, err
	}

	if err := s.settlementRepo.MarkCompleted(ctx, publicID, update); err != nil {
		return domain.CheckoutSession{}, err
	}

	overrides := map[string]interface{}{
		"crypto_currency": update.CryptoCurrency,
		"network":         update.Network,
		"transaction_id":  session.PublicID,
	}
	if !cryptoAmount.IsZero() {
		overrides["crypto_amount"] = cryptoAmount.String()
	}
	if !exchangeRate.IsZero() {
		overrides["exchange_rate"] = exchangeRate.String()
	}
	if req.TxHash != "" {
		overrides["tx_hash"] = req.TxHash
	}

	if _, err := s.eventSvc.RecordAndDispatch(ctx, session, domain.EventPaymentCompleted, overrides); err != nil {
		return domain.CheckoutSession{}, err
	}

	s.logger.Info().
		Str("session_id", session.PublicID).
		Str("tx_hash", req.TxHash).
		Msg("Checkout session completed")

	return session, nil
}

func (s *checkoutService) Fail(ctx context.Context, publicID string, req domain.TransitionRequest) (domain.CheckoutSession, error) {
	session, err := s.actionable(ctx, publicID)
	if err != nil {
		return domain.CheckoutSession{}, err
	}

	if err := s.transition(ctx, &session, domain.SessionStatusFailed,
		domain.SessionStatusCreated, domain.SessionStatusPending); err != nil {
		return domain.CheckoutSession{}, err
	}

	if err := s.settlementRepo.MarkFailed(ctx, publicID, req.FailureReason); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn().Err(err).Str("session_id", publicID).Msg("Failed to mark settlement failed")
	}

	overrides := map[string]interface{}{
		"transaction_id": session.PublicID,
	}
	if req.FailureReason != "" {
		overrides["failure_reason"] = req.FailureReason
	}

	if _, err := s.eventSvc.RecordAndDispatch(ctx, session, domain.EventPaymentFailed, overrides); err != nil {
		return domain.CheckoutSession{}, err
	}

	s.logger.Info().
		Str("session_id", session.PublicID).
		Str("failure_reason", req.FailureReason).
		Msg("Checkout session failed")

	return session, nil
}

// actionable loads a session and applies the transition guards. The
// terminal check runs first, unconditionally; only then is expiry applied.
func (s *checkoutService) actionable(ctx context.Context, publicID string) (domain.CheckoutSession, error) {
	session, err := s.sessionRepo.GetByPublicID(ctx, publicID)
	if err != nil {
		return domain.CheckoutSession{}, err
	}

	switch {
	case session.Status == domain.SessionStatusCompleted || session.Status == domain.SessionStatusFailed:
		return domain.CheckoutSession{}, domain.ErrSessionFinalized
	case session.Status == domain.SessionStatusExpired || session.IsExpired():
		return domain.CheckoutSession{}, domain.ErrNotFound
	}

	return session, nil
}

// transition performs the compare-and-swap status move and re-resolves the
// losing side of a race into the correct guard error.
func (s *checkoutService) transition(ctx context.Context, session *domain.CheckoutSession, to domain.SessionStatus, from ...domain.SessionStatus) error {
	ok, err := s.sessionRepo.TransitionStatus(ctx, session.PublicID, to, from...)
	if err != nil {
		return err
	}
	if !ok {
		current, err := s.sessionRepo.GetByPublicID(ctx, session.PublicID)
		if err != nil {
			return err
		}
		if current.Status == domain.SessionStatusCompleted || current.Status == domain.SessionStatusFailed {
			return domain.ErrSessionFinalized
		}
		return domain.ErrNotFound
	}

	session.Status = to
	return nil
}

func (s *checkoutService) settlementUpdate(session domain.CheckoutSession, req domain.TransitionRequest) (domain.Settlement, error) {
	asset, network := s.defaults(req.CryptoCurrency, req.Network)

	update := domain.Settlement{
		SessionID:      session.PublicID,
		MerchantID:     session.MerchantID,
		FiatAmount:     session.Amount,
		FiatCurrency:   session.Currency,
		CryptoCurrency: asset,
		Network:        network,
		TxHash:         req.TxHash,
	}

	if req.CryptoAmount != "" {
		amount, err := decimal.NewFromString(req.CryptoAmount)
		if err != nil || !amount.IsPositive() {
			return domain.Settlement{}, domain.InvalidField("invalid_amount")
		}
		update.CryptoAmount = amount
	}
	if req.ExchangeRate != "" {
		rate, err := decimal.NewFromString(req.ExchangeRate)
		if err != nil || !rate.IsPositive() {
			return domain.Settlement{}, domain.InvalidField("invalid_exchange_rate")
		}
		update.RateLock.Rate = rate
	}

	return update, nil
}

func (s *checkoutService) defaults(cryptoCurrency, network string) (string, string) {
	asset := strings.ToUpper(strings.TrimSpace(cryptoCurrency))
	if asset == "" {
		asset = s.cfg.DefaultAsset
	}
	net := strings.ToUpper(strings.TrimSpace(network))
	if net == "" {
		net = s.cfg.DefaultNetwork
	}
	return asset, net
}

func secondsLeft(expiresAt time.Time) int64 {
	left := int64(time.Until(expiresAt).Seconds())
	if left < 0 {
		return 0
	}
	return left
}
