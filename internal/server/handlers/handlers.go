package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/arsmhmt/unifiedgw/internal/application/checkout"
	"github.com/arsmhmt/unifiedgw/internal/application/sessions"
	"github.com/arsmhmt/unifiedgw/internal/repositories/credentialrepo"
	"github.com/arsmhmt/unifiedgw/internal/server/middleware"
	"github.com/arsmhmt/unifiedgw/internal/server/websocket"
	"github.com/arsmhmt/unifiedgw/pkg/config"
)

type Handlers struct {
	SessionSvc     sessions.ISessionService
	CheckoutSvc    checkout.ICheckoutService
	CredentialRepo credentialrepo.ICredentialRepository
	WsHub          *websocket.WsHub
	Logger         zerolog.Logger
	Config         *config.Config
}

func New(
	sessionSvc sessions.ISessionService,
	checkoutSvc checkout.ICheckoutService,
	credentialRepo credentialrepo.ICredentialRepository,
	wsHub *websocket.WsHub,
	logger zerolog.Logger,
	config *config.Config,
) *Handlers {
	return &Handlers{
		SessionSvc:     sessionSvc,
		CheckoutSvc:    checkoutSvc,
		CredentialRepo: credentialRepo,
		WsHub:          wsHub,
		Logger:         logger,
		Config:         config,
	}
}

func (h *Handlers) SetupHandlers(router *gin.Engine) {
	mw := middleware.NewMiddleware(h.Logger)
	mw.SetupMiddleware(router)

	sessionHandler := NewSessionHandler(h.SessionSvc, h.Logger)
	checkoutHandler := NewCheckoutHandler(h.CheckoutSvc, h.WsHub, h.Logger)
	statusHandler := NewSessionStatusHandler(h.CheckoutSvc, h.WsHub, h.Config.WebSocket, h.Logger)
	healthHandler := NewHealthHandler()

	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// Merchant API: every call is HMAC-signed.
	v1 := router.Group("/v1")
	v1.Use(mw.SignatureAuth(h.CredentialRepo, h.Config.Signing.SkewWindow))
	{
		v1.POST("/payment_sessions", sessionHandler.Create)
		v1.GET("/payment_sessions/:public_id", sessionHandler.Get)
		v1.GET("/payment_sessions/:public_id/events", sessionHandler.ListEvents)
	}

	// Payer-facing checkout flow.
	co := router.Group("/checkout")
	{
		co.GET("/:public_id", checkoutHandler.View)
		co.GET("/:public_id/status", statusHandler.HandleWebSocket)
		co.POST("/:public_id/select", checkoutHandler.Select)
		co.POST("/:public_id", checkoutHandler.Transition)
	}
}
