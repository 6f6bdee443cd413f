package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/arsmhmt/unifiedgw/internal/application/checkout"
	"github.com/arsmhmt/unifiedgw/internal/domain"
	"github.com/arsmhmt/unifiedgw/internal/server/websocket"
)

type CheckoutHandler struct {
	checkoutSvc checkout.ICheckoutService
	wsHub       *websocket.WsHub
	logger      zerolog.Logger
}

func NewCheckoutHandler(checkoutSvc checkout.ICheckoutService, wsHub *websocket.WsHub, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutSvc: checkoutSvc,
		wsHub:       wsHub,
		logger:      logger,
	}
}

// View handles GET /checkout/:public_id. The payer only ever sees generic
// errors here.
func (h *CheckoutHandler) View(c *gin.Context) {
	view, err := h.checkoutSvc.View(
		c.Request.Context(),
		c.Param("public_id"),
		c.Query("coin"),
		c.Query("network"),
	)
	if err != nil {
		h.respondError(c, err, "Failed to load checkout view")
		return
	}

	c.JSON(http.StatusOK, view)
}

// Select handles POST /checkout/:public_id/select, the payer's settlement
// asset choice that moves the session to pending.
func (h *CheckoutHandler) Select(c *gin.Context) {
	var req domain.SelectAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}

	publicID := c.Param("public_id")
	settlement, err := h.checkoutSvc.Select(c.Request.Context(), publicID, req)
	if err != nil {
		h.respondError(c, err, "Failed to select settlement asset")
		return
	}

	h.wsHub.BroadcastTransition(publicID, domain.SessionStatusPending, domain.EventPaymentPending)

	c.JSON(http.StatusOK, gin.H{
		"id":                publicID,
		"status":            string(domain.SessionStatusPending),
		"crypto_amount":     settlement.CryptoAmount.String(),
		"crypto_currency":   settlement.CryptoCurrency,
		"network":           settlement.Network,
		"deposit_address":   settlement.DepositAddress,
		"exchange_rate":     settlement.RateLock.Rate.String(),
		"rate_locked_until": settlement.RateLock.ExpiresAt().Unix(),
	})
}

// Transition handles POST /checkout/:public_id with a confirmed or failed
// target status.
func (h *CheckoutHandler) Transition(c *gin.Context) {
	var req domain.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}

	publicID := c.Param("public_id")

	var session domain.CheckoutSession
	var err error
	var eventType domain.EventType

	switch strings.ToLower(req.Status) {
	case "confirmed":
		session, err = h.checkoutSvc.Confirm(c.Request.Context(), publicID, req)
		eventType = domain.EventPaymentCompleted
	case "failed":
		session, err = h.checkoutSvc.Fail(c.Request.Context(), publicID, req)
		eventType = domain.EventPaymentFailed
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
		return
	}

	if err != nil {
		h.respondError(c, err, "Checkout transition failed")
		return
	}

	h.wsHub.BroadcastTransition(publicID, session.Status, eventType)

	c.JSON(http.StatusOK, gin.H{
		"id":     session.PublicID,
		"status": string(session.Status),
	})
}

func (h *CheckoutHandler) respondError(c *gin.Context, err error, logMsg string) {
	var validationErr *domain.ValidationError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, domain.ErrSessionFinalized):
		c.JSON(http.StatusConflict, gin.H{"error": "session_finalized"})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Code})
	default:
		h.logger.Error().Err(err).Str("public_id", c.Param("public_id")).Msg(logMsg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
