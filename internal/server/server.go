package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/arsmhmt/unifiedgw/internal/application/checkout"
	"github.com/arsmhmt/unifiedgw/internal/application/sessions"
	"github.com/arsmhmt/unifiedgw/internal/repositories/credentialrepo"
	"github.com/arsmhmt/unifiedgw/internal/server/handlers"
	"github.com/arsmhmt/unifiedgw/internal/server/websocket"
	"github.com/arsmhmt/unifiedgw/pkg/config"
)

type Server struct {
	SessionSvc     sessions.ISessionService
	CheckoutSvc    checkout.ICheckoutService
	CredentialRepo credentialrepo.ICredentialRepository
	Cfg            *config.Config
	Logger         zerolog.Logger
	Router         *gin.Engine
	httpServer     *http.Server
	WsHub          *websocket.WsHub
}

func New(
	cfg *config.Config,
	sessionSvc sessions.ISessionService,
	checkoutSvc checkout.ICheckoutService,
	credentialRepo credentialrepo.ICredentialRepository,
	logger zerolog.Logger,
	wsHub *websocket.WsHub,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	return &Server{
		Cfg:            cfg,
		SessionSvc:     sessionSvc,
		CheckoutSvc:    checkoutSvc,
		CredentialRepo: credentialRepo,
		Logger:         logger,
		Router:         router,
		WsHub:          wsHub,
	}
}

func (s *Server) SetupRouter() {
	handler := handlers.New(
		s.SessionSvc,
		s.CheckoutSvc,
		s.CredentialRepo,
		s.WsHub,
		s.Logger,
		s.Cfg,
	)
	handler.SetupHandlers(s.Router)
}

func (s *Server) Start() {
	s.SetupRouter()

	go s.WsHub.Run()

	s.httpServer = &http.Server{
		Addr:         s.Cfg.Server.Host + ":" + s.Cfg.Server.Port,
		Handler:      s.Router,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	s.Logger.Info().Msgf("Starting server on %s", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-stopChan
	s.Logger.Info().Msg("Shutdown signal received, shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	s.Logger.Info().Msg("Server exited gracefully")
}
