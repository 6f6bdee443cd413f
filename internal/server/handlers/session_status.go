package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/arsmhmt/unifiedgw/internal/application/checkout"
	"github.com/arsmhmt/unifiedgw/internal/domain"
	"github.com/arsmhmt/unifiedgw/internal/server/websocket"
	"github.com/arsmhmt/unifiedgw/pkg/config"
)

// SessionStatusHandler upgrades checkout pages to a WebSocket that receives
// live status transitions for their session.
type SessionStatusHandler struct {
	checkoutSvc checkout.ICheckoutService
	wsHub       *websocket.WsHub
	upgrader    gws.Upgrader
	logger      zerolog.Logger
}

func NewSessionStatusHandler(checkoutSvc checkout.ICheckoutService, wsHub *websocket.WsHub, cfg config.WebSocketConfig, logger zerolog.Logger) *SessionStatusHandler {
	readBuffer := cfg.ReadBufferSize
	if readBuffer == 0 {
		readBuffer = 1024
	}
	writeBuffer := cfg.WriteBufferSize
	if writeBuffer == 0 {
		writeBuffer = 1024
	}

	upgrader := gws.Upgrader{
		ReadBufferSize:  readBuffer,
		WriteBufferSize: writeBuffer,
	}
	if !cfg.CheckOrigin {
		// The checkout page is served from the merchant's storefront origin,
		// not ours.
		upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}

	return &SessionStatusHandler{
		checkoutSvc: checkoutSvc,
		wsHub:       wsHub,
		upgrader:    upgrader,
		logger:      logger,
	}
}

func (h *SessionStatusHandler) HandleWebSocket(c *gin.Context) {
	publicID := c.Param("public_id")

	// Same visibility rule as the checkout page: unknown and expired
	// sessions do not get a status stream.
	if _, err := h.checkoutSvc.View(c.Request.Context(), publicID, "", ""); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.logger.Error().Err(err).Str("session_id", publicID).Msg("Failed to resolve session for status stream")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Err(err).
			Str("session_id", publicID).
			Msg("Failed to upgrade to WebSocket")
		return
	}

	client := &websocket.WsClient{
		SessionID: publicID,
		Conn:      conn,
	}
	h.wsHub.Register <- client

	go func() {
		defer func() {
			h.wsHub.Unregister <- client
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}
