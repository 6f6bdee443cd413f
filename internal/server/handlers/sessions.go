package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/arsmhmt/unifiedgw/internal/application/sessions"
	"github.com/arsmhmt/unifiedgw/internal/domain"
	"github.com/arsmhmt/unifiedgw/internal/server/middleware"
)

type SessionHandler struct {
	sessionSvc sessions.ISessionService
	logger     zerolog.Logger
}

func NewSessionHandler(sessionSvc sessions.ISessionService, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionSvc: sessionSvc,
		logger:     logger,
	}
}

// Create handles POST /v1/payment_sessions. A reused idempotent match comes
// back 200, a fresh session 201, both with the same body shape.
func (h *SessionHandler) Create(c *gin.Context) {
	cred, ok := middleware.CredentialFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_key"})
		return
	}

	var req domain.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}

	resp, reused, err := h.sessionSvc.CreateOrReuse(c.Request.Context(), cred, req)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			body := gin.H{"error": validationErr.Code}
			if len(validationErr.Fields) > 0 {
				body["fields"] = validationErr.Fields
			}
			c.JSON(http.StatusBadRequest, body)
			return
		}
		h.logger.Error().Err(err).Str("order_id", req.OrderID).Msg("Session creation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	status := http.StatusCreated
	if reused {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// Get handles GET /v1/payment_sessions/:id.
func (h *SessionHandler) Get(c *gin.Context) {
	cred, ok := middleware.CredentialFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_key"})
		return
	}

	session, err := h.sessionSvc.GetForMerchant(c.Request.Context(), cred, c.Param("public_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.logger.Error().Err(err).Str("public_id", c.Param("public_id")).Msg("Failed to get session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, session)
}

// ListEvents handles GET /v1/payment_sessions/:id/events, newest-first.
func (h *SessionHandler) ListEvents(c *gin.Context) {
	cred, ok := middleware.CredentialFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_key"})
		return
	}

	events, err := h.sessionSvc.ListEvents(c.Request.Context(), cred, c.Param("public_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.logger.Error().Err(err).Str("public_id", c.Param("public_id")).Msg("Failed to list session events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  events,
		"total": len(events),
	})
}
