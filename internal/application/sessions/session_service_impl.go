package sessions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arsmhmt/unifiedgw/internal/application/events"
	"github.com/arsmhmt/unifiedgw/internal/domain"
	"github.com/arsmhmt/unifiedgw/internal/repositories/sessionrepo"
	"github.com/arsmhmt/unifiedgw/pkg/config"
	"github.com/arsmhmt/unifiedgw/pkg/currency"
)

type sessionService struct {
	sessionRepo sessionrepo.ISessionRepository
	eventSvc    events.IEventService
	cfg         config.CheckoutConfig
	logger      zerolog.Logger
}

func NewSessionService(
	sessionRepo sessionrepo.ISessionRepository,
	eventSvc events.IEventService,
	cfg config.CheckoutConfig,
	logger zerolog.Logger,
) ISessionService {
	return &sessionService{
		sessionRepo: sessionRepo,
		eventSvc:    eventSvc,
		cfg:         cfg,
		logger:      logger.With().Str("component", "session_service").Logger(),
	}
}

func (s *sessionService) CreateOrReuse(ctx context.Context, cred domain.SigningCredential, req domain.CreateSessionRequest) (domain.CreateSessionResponse, bool, error) {
	session, err := s.buildSession(cred, req)
	if err != nil {
		return domain.CreateSessionResponse{}, false, err
	}

	if existing, err := s.sessionRepo.FindOpenByOrder(ctx, cred.MerchantID, session.OrderID); err == nil {
		if !existing.IsExpired() {
			return s.response(existing), true, nil
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.CreateSessionResponse{}, false, err
	}

	// The open-slot unique index closes the lookup/insert race: two
	// concurrent creations collapse onto one row, and a stale expired row
	// is finalized before a single retry.
	for attempt := 0; attempt < 2; attempt++ {
		created, err := s.sessionRepo.Create(ctx, session)
		if err == nil {
			s.logger.Info().
				Str("session_id", created.PublicID).
				Str("merchant_id", cred.MerchantID).
				Str("order_id", created.OrderID).
				Msg("Checkout session created")
			return s.response(created), false, nil
		}
		if !errors.Is(err, sessionrepo.ErrDuplicateOpenSession) {
			return domain.CreateSessionResponse{}, false, err
		}

		winner, err := s.sessionRepo.FindOpenByOrder(ctx, cred.MerchantID, session.OrderID)
		if err == nil && !winner.IsExpired() {
			return s.response(winner), true, nil
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return domain.CreateSessionResponse{}, false, err
		}

		if _, err := s.sessionRepo.FinalizeExpired(ctx, cred.MerchantID, session.OrderID); err != nil {
			return domain.CreateSessionResponse{}, false, err
		}
	}

	return domain.CreateSessionResponse{}, false, errors.New("failed to claim session slot")
}

func (s *sessionService) GetForMerchant(ctx context.Context, cred domain.SigningCredential, publicID string) (domain.CheckoutSession, error) {
	return s.sessionRepo.GetForMerchant(ctx, cred.MerchantID, publicID)
}

func (s *sessionService) ListEvents(ctx context.Context, cred domain.SigningCredential, publicID string) ([]domain.SessionEvent, error) {
	session, err := s.sessionRepo.GetForMerchant(ctx, cred.MerchantID, publicID)
	if err != nil {
		return nil, err
	}
	return s.eventSvc.ListBySession(ctx, session)
}

func (s *sessionService) buildSession(cred domain.SigningCredential, req domain.CreateSessionRequest) (domain.CheckoutSession, error) {
	var missing []string
	if req.OrderID == "" {
		missing = append(missing, "order_id")
	}
	if req.Amount == "" {
		missing = append(missing, "amount")
	}
	if req.SuccessURL == "" {
		missing = append(missing, "success_url")
	}
	if req.CancelURL == "" {
		missing = append(missing, "cancel_url")
	}
	if len(missing) > 0 {
		return domain.CheckoutSession{}, domain.MissingFields(missing...)
	}

	amount, err := currency.ParsePositiveAmount(req.Amount)
	if err != nil {
		return domain.CheckoutSession{}, domain.InvalidField("invalid_amount")
	}

	code := strings.ToUpper(strings.TrimSpace(req.Currency))
	if code == "" {
		code = s.cfg.DefaultCurrency
	}

	var email string
	if req.Customer != nil {
		email = req.Customer.Email
	}

	return domain.CheckoutSession{
		PublicID:      domain.NewPublicID(),
		MerchantID:    cred.MerchantID,
		OrderID:       req.OrderID,
		Amount:        amount,
		Currency:      code,
		CustomerEmail: email,
		Metadata:      req.Metadata,
		Status:        domain.SessionStatusCreated,
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
		WebhookURL:    req.WebhookURL,
		ExpiresAt:     time.Now().Add(s.cfg.SessionTTL),
	}, nil
}

func (s *sessionService) response(session domain.CheckoutSession) domain.CreateSessionResponse {
	return domain.CreateSessionResponse{
		ID:          session.PublicID,
		Status:      string(session.Status),
		CheckoutURL: strings.TrimRight(s.cfg.Host, "/") + "/checkout/" + session.PublicID,
		ExpiresAt:   session.ExpiresAt.Unix(),
	}
}
