package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arsmhmt/unifiedgw/internal/domain"
	"github.com/arsmhmt/unifiedgw/internal/repositories/credentialrepo"
	"github.com/arsmhmt/unifiedgw/internal/repositories/eventrepo"
	"github.com/arsmhmt/unifiedgw/pkg/config"
	"github.com/arsmhmt/unifiedgw/pkg/signing"
)

const responseBodyLimit = 2000

type eventService struct {
	eventRepo      eventrepo.IEventRepository
	credentialRepo credentialrepo.ICredentialRepository
	httpClient     *http.Client
	logger         zerolog.Logger
}

func NewEventService(
	eventRepo eventrepo.IEventRepository,
	credentialRepo credentialrepo.ICredentialRepository,
	cfg config.WebhookConfig,
	logger zerolog.Logger,
) IEventService {
	return &eventService{
		eventRepo:      eventRepo,
		credentialRepo: credentialRepo,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With().Str("component", "event_dispatcher").Logger(),
	}
}

func (s *eventService) RecordAndDispatch(ctx context.Context, session domain.CheckoutSession, eventType domain.EventType, overrides map[string]interface{}) (*domain.SessionEvent, error) {
	envelope := domain.EventEnvelope{
		Type:    eventType,
		ID:      "evt_" + uuid.NewString(),
		Data:    domain.EnvelopeData{Object: buildSessionObject(session, overrides)},
		Created: time.Now().Unix(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize event envelope: %w", err)
	}

	event, err := s.eventRepo.Create(ctx, domain.SessionEvent{
		SessionID: session.ID,
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		return nil, err
	}

	// Delivery is best-effort-once; whatever happens past this point is
	// recorded on the event, never surfaced to the transition caller.
	s.deliver(ctx, session, &event, payload)

	return &event, nil
}

func (s *eventService) ListBySession(ctx context.Context, session domain.CheckoutSession) ([]domain.SessionEvent, error) {
	return s.eventRepo.ListBySession(ctx, session.ID)
}

func (s *eventService) deliver(ctx context.Context, session domain.CheckoutSession, event *domain.SessionEvent, payload []byte) {
	if session.WebhookURL == "" {
		return
	}

	cred, err := s.credentialRepo.GetActiveByMerchant(ctx, session.MerchantID)
	if err != nil || !cred.Usable() {
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn().Err(err).Str("merchant_id", session.MerchantID).Msg("Credential lookup failed, skipping delivery")
		}
		return
	}

	ts, sig := signing.Sign([]byte(cred.SecretKey), payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, session.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		s.recordOutcome(event, nil, "", err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gateway-Key", cred.Key)
	req.Header.Set("X-Gateway-Timestamp", ts)
	req.Header.Set("X-Gateway-Signature", sig)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("event_id", event.ID).
			Str("webhook_url", session.WebhookURL).
			Msg("Webhook delivery failed")
		s.recordOutcome(event, nil, "", err.Error())
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	s.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", string(event.EventType)).
		Int("response_status", resp.StatusCode).
		Msg("Webhook delivered")
	s.recordOutcome(event, &resp.StatusCode, string(body), "")
}

func (s *eventService) recordOutcome(event *domain.SessionEvent, status *int, responseBody, errText string) {
	// Outcome recording runs on a fresh context so a cancelled request
	// cannot lose the audit row update.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.eventRepo.RecordOutcome(ctx, event.ID, status, responseBody, errText); err != nil {
		s.logger.Error().Err(err).Str("event_id", event.ID).Msg("Failed to persist delivery outcome")
		return
	}

	event.ResponseStatus = status
	event.ResponseBody = responseBody
	event.Error = errText
}

// buildSessionObject produces the canonical session snapshot merged with
// transition-specific overrides. Nil override values are dropped.
func buildSessionObject(session domain.CheckoutSession, overrides map[string]interface{}) map[string]interface{} {
	object := map[string]interface{}{
		"id":            session.PublicID,
		"order_id":      session.OrderID,
		"status":        string(session.Status),
		"fiat_amount":   session.Amount.String(),
		"fiat_currency": session.Currency,
	}
	if session.CustomerEmail != "" {
		object["customer_email"] = session.CustomerEmail
	}
	if !session.ExpiresAt.IsZero() {
		object["expires_at"] = session.ExpiresAt.Unix()
	}
	if len(session.Metadata) > 0 {
		object["metadata"] = json.RawMessage(session.Metadata)
	}

	for key, value := range overrides {
		if value == nil {
			continue
		}
		object[key] = value
	}
	return object
}
