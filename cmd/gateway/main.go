package main

import (
	"github.com/arsmhmt/unifiedgw/internal/application/checkout"
	"github.com/arsmhmt/unifiedgw/internal/application/events"
	"github.com/arsmhmt/unifiedgw/internal/application/sessions"
	"github.com/arsmhmt/unifiedgw/internal/infrastructure/clients"
	"github.com/arsmhmt/unifiedgw/internal/infrastructure/database"
	"github.com/arsmhmt/unifiedgw/internal/infrastructure/wallet"
	"github.com/arsmhmt/unifiedgw/internal/repositories/credentialrepo"
	"github.com/arsmhmt/unifiedgw/internal/repositories/eventrepo"
	"github.com/arsmhmt/unifiedgw/internal/repositories/sessionrepo"
	"github.com/arsmhmt/unifiedgw/internal/repositories/settlementrepo"
	"github.com/arsmhmt/unifiedgw/internal/server"
	"github.com/arsmhmt/unifiedgw/internal/server/websocket"
	"github.com/arsmhmt/unifiedgw/pkg/config"
	"github.com/arsmhmt/unifiedgw/pkg/logger"
)

func main() {
	logger := logger.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.ShutDown()

	credentialRepo := credentialrepo.New(db, logger)
	sessionRepo := sessionrepo.New(db, logger)
	settlementRepo := settlementrepo.New(db, logger)
	eventRepo := eventrepo.New(db, logger)

	rateProvider := clients.NewExchangeAPIClient(&cfg.ExchangeAPI, logger)
	addressIssuer := wallet.NewAddressIssuer()

	eventSvc := events.NewEventService(eventRepo, credentialRepo, cfg.Webhook, logger)
	sessionSvc := sessions.NewSessionService(sessionRepo, eventSvc, cfg.Checkout, logger)
	checkoutSvc := checkout.NewCheckoutService(
		sessionRepo,
		settlementRepo,
		rateProvider,
		addressIssuer,
		eventSvc,
		cfg.Checkout,
		logger,
	)

	wsHub := websocket.NewWsHub(logger)

	srv := server.New(cfg, sessionSvc, checkoutSvc, credentialRepo, logger, wsHub)
	srv.Start()
}
