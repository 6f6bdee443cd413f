package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/arsmhmt/unifiedgw/internal/domain"
	"github.com/arsmhmt/unifiedgw/pkg/config"
)

type MockSessionRepository struct {
	GetByPublicIDFunc func(ctx context.Context, publicID string) (domain.CheckoutSession, error)
	TransitionFunc    func(ctx context.Context, publicID string, to domain.SessionStatus, from ...domain.SessionStatus) (bool, error)
}

func (m *MockSessionRepository) Create(ctx context.Context, session domain.CheckoutSession) (domain.CheckoutSession, error) {
	return session, nil
}

func (m *MockSessionRepository) GetByPublicID(ctx context.Context, publicID string) (domain.CheckoutSession, error) {
	if m.GetByPublicIDFunc != nil {
		return m.GetByPublicIDFunc(ctx, publicID)
	}
	return domain.CheckoutSession{}, domain.ErrNotFound
}

func (m *MockSessionRepository) GetForMerchant(ctx context.Context, merchantID, publicID string) (domain.CheckoutSession, error) {
	return domain.CheckoutSession{}, domain.ErrNotFound
}

func (m *MockSessionRepository) FindOpenByOrder(ctx context.Context, merchantID, orderID string) (domain.CheckoutSession, error) {
	return domain.CheckoutSession{}, domain.ErrNotFound
}

func (m *MockSessionRepository) FinalizeExpired(ctx context.Context, merchantID, orderID string) (int64, error) {
	return 0, nil
}

func (m *MockSessionRepository) TransitionStatus(ctx context.Context, publicID string, to domain.SessionStatus, from ...domain.SessionStatus) (bool, error) {
	if m.TransitionFunc != nil {
		return m.TransitionFunc(ctx, publicID, to, from...)
	}
	return true, nil
}

type MockSettlementRepository struct {
	UpsertFunc         func(ctx context.Context, settlement domain.Settlement) (domain.Settlement, error)
	GetBySessionIDFunc func(ctx context.Context, sessionID string) (domain.Settlement, error)
	MarkCompletedFunc  func(ctx context.Context, sessionID string, update domain.Settlement) error
	MarkFailedFunc     func(ctx context.Context, sessionID, reason string) error
}

func (m *MockSettlementRepository) Upsert(ctx context.Context, settlement domain.Settlement) (domain.Settlement, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, settlement)
	}
	return settlement, nil
}

func (m *MockSettlementRepository) GetBySessionID(ctx context.Context, sessionID string) (domain.Settlement, error) {
	if m.GetBySessionIDFunc != nil {
		return m.GetBySessionIDFunc(ctx, sessionID)
	}
	return domain.Settlement{}, domain.ErrNotFound
}

func (m *MockSettlementRepository) MarkCompleted(ctx context.Context, sessionID string, update domain.Settlement) error {
	if m.MarkCompletedFunc != nil {
		return m.MarkCompletedFunc(ctx, sessionID, update)
	}
	return nil
}

func (m *MockSettlementRepository) MarkFailed(ctx context.Context, sessionID, reason string) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, sessionID, reason)
	}
	return nil
}

type MockRateProvider struct {
	GetExchangeRateFunc func(ctx context.Context, cryptoCurrency, fiatCurrency string) (*domain.ExchangeRate, error)
}

func (m *MockRateProvider) GetExchangeRate(ctx context.Context, cryptoCurrency, fiatCurrency string) (*domain.ExchangeRate, error) {
	if m.GetExchangeRateFunc != nil {
		return m.GetExchangeRateFunc(ctx, cryptoCurrency, fiatCurrency)
	}
	return &domain.ExchangeRate{
		CryptoCurrency: cryptoCurrency,
		FiatCurrency:   fiatCurrency,
		Rate:           decimal.RequireFromString("1.0008"),
		QuotedAt:       time.Now(),
	}, nil
}

type MockAddressIssuer struct {
	IssueAddressFunc func(merchantID, cryptoCurrency, network string) (string, error)
}

func (m *MockAddressIssuer) IssueAddress(merchantID, cryptoCurrency, network string) (string, error) {
	if m.IssueAddressFunc != nil {
		return m.IssueAddressFunc(merchantID, cryptoCurrency, network)
	}
	return "TTestDepositAddress00000000000000", nil
}

type recordedEvent struct {
	Type      domain.EventType
	Overrides map[string]interface{}
}

type MockEventService struct {
	Events []recordedEvent
	Err    error
}

func (m *MockEventService) RecordAndDispatch(ctx context.Context, session domain.CheckoutSession, eventType domain.EventType, overrides map[string]interface{}) (*domain.SessionEvent, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.Events = append(m.Events, recordedEvent{Type: eventType, Overrides: overrides})
	return &domain.SessionEvent{EventType: eventType}, nil
}

func (m *MockEventService) ListBySession(ctx context.Context, session domain.CheckoutSession) ([]domain.SessionEvent, error) {
	return nil, nil
}

func testConfig() config.CheckoutConfig {
	return config.CheckoutConfig{
		Host:            "https://pay.example.com",
		SessionTTL:      30 * time.Minute,
		RateLockTTL:     15 * time.Minute,
		DefaultAsset:    "USDT",
		DefaultNetwork:  "TRC20",
		DefaultCurrency: "USD",
	}
}

func openSession(status domain.SessionStatus) domain.CheckoutSession {
	return domain.CheckoutSession{
		ID:         "11111111-1111-1111-1111-111111111111",
		PublicID:   "ps_aabbccddeeff",
		MerchantID: "merchant-1",
		OrderID:    "ORDER-1001",
		Amount:     decimal.RequireFromString("25.00"),
		Currency:   "USD",
		Status:     status,
		ExpiresAt:  time.Now().Add(20 * time.Minute),
	}
}

func newService(sessions *MockSessionRepository, settlements *MockSettlementRepository, rates *MockRateProvider, events *MockEventService) ICheckoutService {
	return NewCheckoutService(sessions, settlements, rates, &MockAddressIssuer{}, events, testConfig(), zerolog.Nop())
}

func TestSelectLocksQuoteAndMovesToPending(t *testing.T) {
	session := openSession(domain.SessionStatusCreated)
	sessions := &MockSessionRepository{
		GetByPublicIDFunc: func(ctx context.Context, publicID string) (domain.CheckoutSession, error) {
			return session, nil
		},
		TransitionFunc: func(ctx context.Context, publicID string, to domain.SessionStatus, from ...domain.SessionStatus) (bool, error) {
			if to != domain.SessionStatusPending {
				t.Errorf("transition to %q, want pending", to)
			}
			return true, nil
		},
	}
	var upserted domain.Settlement
	settlements := &MockSettlementRepository{
		UpsertFunc: func(ctx context.Context, settlement domain.Settlement) (domain.Settlement, error) {
			upserted = settlement
			return settlement, nil
		},
	}
	events := &MockEventService{}

	svc := newService(sessions, settlements, &MockRateProvider{}, events)
	settlement, err := svc.Select(context.Background(), session.PublicID, domain.SelectAssetRequest{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	if settlement.CryptoCurrency != "USDT" || settlement.Network != "TRC20" {
		t.Errorf("asset/network = %s/%s, want USDT/TRC20 defaults", settlement.CryptoCurrency, settlement.Network)
	}
	if got := upserted.CryptoAmount.String(); got != "24.98001599" {
		t.Errorf("crypto_amount = %s, want 24.98001599", got)
	}
	if upserted.RateLock.TTL != 15*time.Minute {
		t.Errorf("rate lock ttl = %s", upserted.RateLock.TTL)
	}
	if upserted.DepositAddress == "" {
		t.Error("no deposit address issued")
	}
	if len(events.Events) != 1 || events.Events[0].Type != domain.EventPaymentPending {
		t.Fatalf("events = %+v, want a single payment.pending", events.Events)
	}
	if events.Events[0].Overrides["crypto_amount"] != "24.98001599" {
		t.Errorf("event crypto_amount override = %v", events.Events[0].Overrides["crypto_amount"])
	}
}

func TestSelectHonorsRequestedAsset(t *testing.T) {
	session := openSession(domain.SessionStatusCreated)
	sessions := &MockSessionRepository{
		GetByPublicIDFunc: func(ctx context.Context, publicID string) (domain.CheckoutSession, error) {
			return session, nil
		},
	}
	var quotedAsset string
	rates := &MockRateProvider{
		GetExchangeRateFunc: func(ctx context.Context, cryptoCurrency, fiatCurrency string) (*domain.ExchangeRate, error) {
			quotedAsset = cryptoCurrency
			return &domain.ExchangeRate{Rate: decimal.RequireFromString("3500"), QuotedAt: time.Now()}, nil
		},
	}

	svc := newService(sessions, &MockSettlementRepository{}, rates, &MockEventService{})
	settlement, err := svc.Select(context.Background(), session.PublicID, domain.SelectAssetRequest{CryptoCurrency: "eth", Network: "erc20"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if quotedAsset != "ETH" {
		t.Errorf("quoted asset = %q, want upper-cased ETH", quotedAsset)
	}
	if settlement.Network != "ERC20" {
		t.Errorf("network = %q", settlement.Network)
	}
}

func TestTerminalSessionsConflictBeforeExpiry(t *testing.T) {
	// A completed session whose TTL has also lapsed must still answer with
	// the terminal conflict, never not-found.
	session := openSession(domain.SessionStatusCompleted)
	session.ExpiresAt = time.Now().Add(-time.Hour)
	sessions := &MockSessionRepository{
		GetByPublicIDFunc: func(ctx context.Context, publicID string) (domain.CheckoutSession, error) {
			return session, nil
		},
	}
	svc := newService(sessions, &MockSettlementRepository{}, &MockRateProvider{}, &MockEventService{})

	if _, err := svc.Confirm(context.Background(), session.PublicID, domain.TransitionRequest{}); !errors.Is(err, domain.ErrSessionFinalized) {
		t.Errorf("Confirm on completed: %v, want ErrSessionFinalized", err)
	}
	if _, err := svc.Fail(context.Background(), session.PublicID, domain.TransitionRequest{}); !errors.Is(err, domain.ErrSessionFinalized) {
		t.Errorf("Fail on completed: %v, want ErrSessionFinalized", err)
	}
	if _, err := svc.Select(context.Background(), session.PublicID, domain.SelectAssetRequest{}); !errors.Is(err, domain.ErrSessionFinalized) {
		t.Errorf("Select on completed: %v, want ErrSessionFinalized", err)
	}
}

func TestExpiredOpenSessionIsNotFound(t *testing.T) {
	session := openSession(domain.SessionStatusCreated)
	session.ExpiresAt = time.Now().Add(-time.Minute)
	sessions := &MockSessionRepository{
		GetByPublicIDFunc: func(ctx context.Context, publicID string) (domain.CheckoutSession, error) {
			return session, nil
		},
	}
	svc := newService(sessions, &MockSettlementRepository{}, &MockRateProvider{}, &MockEventService{})

	if _, err := svc.Confirm(context.Background(), session.PublicID, domain.TransitionRequest{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Confirm on expired: %v, want ErrNotFound", err)
	}
	if _, err := svc.View(context.Background(), session.PublicID, "", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("View on expired: %v, want ErrNotFound", err)
	}
}

func TestConfirmUsesHeldQuoteWhileLockLives(t *testing.T) {
	session := openSession(domain.SessionStatusPending)
	sessions := &MockSessionRepository{
		GetByPublicIDFunc: func(ctx context.Context, publicID string) (domain.CheckoutSession, error) {
			return session, nil
		},
	}
	settlements := &MockSettlementRepository{
		GetBySessionIDFunc: func(ctx context.Context, sessionID string) (domain.Settlement, error) {
			return domain.Settlement{
				SessionID:      sessionID,
				CryptoAmount:   decimal.RequireFromString("24.98001599"),
				CryptoCurrency: "USDT",
				RateLock: domain.RateLock{
					Rate:     decimal.RequireFromString("1.0008"),
					LockedAt: time.Now().Add(-5 * time.Minute),
				},
			}, nil
		},
	}
	quoted := false
	rates := &MockRateProvider{
		GetExchangeRateFunc: func(ctx context.Context, cryptoCurrency, fiatCurrency string) (*domain.ExchangeRate, error) {
			quoted = true
			return &domain.ExchangeRate{Rate: decimal.RequireFromString("2.0"), QuotedAt: time.Now()}, nil
		},
	}
	events := &MockEventService{}

	svc := newService(sessions, settlements, rates, events)
	result, err := svc.Confirm(context.Background(), session.PublicID, domain.TransitionRequest{})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if result.Status != domain.SessionStatusCompleted {
		t.Errorf("status = %q", result.Status)
	}
	if quoted {
		t.Error("re-quoted despite a live rate lock")
	}
	if len(events.Events) != 1 || events.Events[0].Type != domain.EventPaymentCompleted {
		t.Fatalf("events = %+v", events.Events)
	}
	if events.Events[0].Overrides["crypto_amount"] != "24.98001599" {
		t.Errorf("crypto_amount = %v, want the locked quote", events.Events[0].Overrides["crypto_amount"])
	}
}

func TestConfirmRequotesOnExpiredLock(t *testing.T) {
	session := openSession(domain.SessionStatusPending)
	sessions := &MockSessionRepository{
		GetByPublicIDFunc: func(ctx context.Context, publicID string) (domain.CheckoutSession, error) {
			return session, nil
		},
	}
	settlements := &MockSettlementRepository{
		GetBySessionIDFunc: func(ctx context.Context, sessionID string) (domain.Settlement, error) {
			return domain.Settlement{
				SessionID:      sessionID,
				CryptoAmount:   decimal.RequireFromString("24.98001599"),
				CryptoCurrency: "USDT",
				RateLock: domain.RateLock{
					Rate:     decimal.RequireFromString("1.0008"),
					LockedAt: time.Now().Add(-20 * time.Minute),
				},
			}, nil
		},
	}
	rates := &MockRateProvider{
		GetExchangeRateFunc: func(ctx context.Context, cryptoCurrency, fiatCurrency string) (*domain.ExchangeRate, error) {
			return &domain.ExchangeRate{Rate: decimal.RequireFromString("1.25"), QuotedAt: time.Now()}, nil
		},
	}
	events := &MockEventService{}

	svc := newService(sessions, settlements, rates, events)
	if _, err := svc.Confirm(context.Background(), session.PublicID, domain.TransitionRequest{}); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if len(events.Events) != 1 {
		t.Fatalf("events = %+v", events.Events)
	}
	if got := events.Events[0].Overrides["crypto_amount"]; got != "20" {
		t.Errorf("crypto_amount = %v, want fresh quote 20", got)
	}
	if got := events.Events[0].Overrides["exchange_rate"]; got != "1.25" {
		t.Errorf("exchange_rate = %v", got)
	}
}

func TestConfirmWithoutPriorSelection(t *testing.T) {
	session := openSession(domain.SessionStatusCreated)
	sessions := &MockSessionRepository{
		GetByPublicIDFunc: func(ctx context.Context, publicID string) (domain.CheckoutSession, error) {
			return session, nil
		},
	}
	upserted := false
	settlements := &MockSettlementRepository{
		UpsertFunc: func(ctx context.Context, settlement domain.Settlement) (domain.Settlement, error) {
			upserted = true
			return settlement, nil
		},
	}
	events := &MockEventService{}

	svc := newService(sessions, settlements, &MockRateProvider{}, events)
	req := domain.TransitionRequest{
		CryptoAmount:   "24.98",
		CryptoCurrency: "USDT",
		TxHash:         "0xabc",
	}
	result, err := svc.Confirm(context.Background(), session.PublicID, req)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if result.Status != domain.SessionStatusCompleted {
		t.Errorf("status = %q", result.Status)
	}
	if !upserted {
		t.Error("settlement record was never created")
	}
	if events.Events[0].Overrides["tx_hash"] != "0xabc" {
		t.Errorf("tx_hash override = %v", events.Events[0].Overrides["tx_hash"])
	}
}

func TestConfirmRejectsBadAmounts(t *testing.T) {
	session := openSession(domain.SessionStatusPending)
	sessions := &MockSessionRepository{
		GetByPublicIDFunc: func(ctx context.Context, publicID string) (domain.CheckoutSession, error) {
			return session, nil
		},
	}
	svc := newService(sessions, &MockSettlementRepository{}, &MockRateProvider{}, &MockEventService{})

	_, err := svc.Confirm(context.Background(), session.PublicID, domain.TransitionRequest{CryptoAmount: "-1"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Code != "invalid_amount" {
		t.Errorf("err = %v, want invalid_amount", err)
	}
}

func TestFailRecordsReason(t *testing.T) {
	session := openSession(domain.SessionStatusPending)
	sessions := &MockSessionRepository{
		GetByPublicIDFunc: func(ctx context.Context, publicID string) (domain.CheckoutSession, error) {
			return session, nil
		},
	}
	var failedReason string
	settlements := &MockSettlementRepository{
		MarkFailedFunc: func(ctx context.Context, sessionID, reason string) error {
			failedReason = reason
			return nil
		},
	}
	events := &MockEventService{}

	svc := newService(sessions, settlements, &MockRateProvider{}, events)
	result, err := svc.Fail(context.Background(), session.PublicID, domain.TransitionRequest{FailureReason: "underpaid"})
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if result.Status != domain.SessionStatusFailed {
		t.Errorf("status = %q", result.Status)
	}
	if failedReason != "underpaid" {
		t.Errorf("reason = %q", failedReason)
	}
	if len(events.Events) != 1 || events.Events[0].Type != domain.EventPaymentFailed {
		t.Fatalf("events = %+v", events.Events)
	}
	if events.Events[0].Overrides["failure_reason"] != "underpaid" {
		t.Errorf("failure_reason override = %v", events.Events[0].Overrides)
	}
}

func TestTransitionRaceLoserSeesFinalized(t *testing.T) {
	// The CAS misses because a concurrent confirm already landed; the
	// re-read resolves the loser into the terminal conflict.
	state := openSession(domain.SessionStatusPending)
	sessions := &MockSessionRepository{
		GetByPublicIDFunc: func(ctx context.Context, publicID string) (domain.CheckoutSession, error) {
			return state, nil
		},
		TransitionFunc: func(ctx context.Context, publicID string, to domain.SessionStatus, from ...domain.SessionStatus) (bool, error) {
			state.Status = domain.SessionStatusCompleted
			return false, nil
		},
	}
	svc := newService(sessions, &MockSettlementRepository{}, &MockRateProvider{}, &MockEventService{})

	if _, err := svc.Fail(context.Background(), state.PublicID, domain.TransitionRequest{}); !errors.Is(err, domain.ErrSessionFinalized) {
		t.Errorf("Fail race loser: %v, want ErrSessionFinalized", err)
	}
}

func TestViewPrefersHeldQuote(t *testing.T) {
	session := openSession(domain.SessionStatusPending)
	sessions := &MockSessionRepository{
		GetByPublicIDFunc: func(ctx context.Context, publicID string) (domain.CheckoutSession, error) {
			return session, nil
		},
	}
	settlements := &MockSettlementRepository{
		GetBySessionIDFunc: func(ctx context.Context, sessionID string) (domain.Settlement, error) {
			return domain.Settlement{
				SessionID:      sessionID,
				CryptoAmount:   decimal.RequireFromString("24.98001599"),
				CryptoCurrency: "USDT",
				DepositAddress: "THeldAddress000000000000000000000",
				RateLock: domain.RateLock{
					Rate:     decimal.RequireFromString("1.0008"),
					LockedAt: time.Now().Add(-time.Minute),
				},
			}, nil
		},
	}
	rates := &MockRateProvider{
		GetExchangeRateFunc: func(ctx context.Context, cryptoCurrency, fiatCurrency string) (*domain.ExchangeRate, error) {
			t.Error("live quote fetched despite a held lock")
			return nil, errors.New("unreachable")
		},
	}

	svc := newService(sessions, settlements, rates, &MockEventService{})
	view, err := svc.View(context.Background(), session.PublicID, "", "")
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if view.CryptoAmount != "24.98001599" {
		t.Errorf("crypto_amount = %q", view.CryptoAmount)
	}
	if view.DepositAddress != "THeldAddress000000000000000000000" {
		t.Errorf("deposit_address = %q", view.DepositAddress)
	}
	if view.RateLockedUntil == 0 {
		t.Error("rate_locked_until missing")
	}
}

func TestViewSurvivesQuoteOutage(t *testing.T) {
	session := openSession(domain.SessionStatusCreated)
	sessions := &MockSessionRepository{
		GetByPublicIDFunc: func(ctx context.Context, publicID string) (domain.CheckoutSession, error) {
			return session, nil
		},
	}
	rates := &MockRateProvider{
		GetExchangeRateFunc: func(ctx context.Context, cryptoCurrency, fiatCurrency string) (*domain.ExchangeRate, error) {
			return nil, errors.New("provider down")
		},
	}

	svc := newService(sessions, &MockSettlementRepository{}, rates, &MockEventService{})
	view, err := svc.View(context.Background(), session.PublicID, "", "")
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if view.CryptoAmount != "" {
		t.Errorf("crypto_amount = %q, want empty on outage", view.CryptoAmount)
	}
	if view.FiatAmount != "25" {
		t.Errorf("fiat_amount = %q", view.FiatAmount)
	}
}
