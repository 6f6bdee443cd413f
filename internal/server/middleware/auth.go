package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arsmhmt/unifiedgw/internal/domain"
	"github.com/arsmhmt/unifiedgw/internal/repositories/credentialrepo"
	"github.com/arsmhmt/unifiedgw/pkg/signing"
)

const (
	HeaderKey       = "X-Gateway-Key"
	HeaderTimestamp = "X-Gateway-Timestamp"
	HeaderSignature = "X-Gateway-Signature"

	// ContextCredential is where the authenticated credential lands for
	// downstream handlers.
	ContextCredential = "signing_credential"
)

// SignatureAuth authenticates merchant API requests: key lookup, IP
// allowlist, then HMAC verification over timestamp and raw body. The raw
// body is restored on the request so handlers can bind it normally.
func (m *Middleware) SignatureAuth(credentialRepo credentialrepo.ICredentialRepository, skew time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderKey)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_key"})
			return
		}

		cred, err := credentialRepo.GetByKey(c.Request.Context(), key)
		if err != nil || !cred.Usable() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_key"})
			return
		}

		if !cred.IPAllowed(c.ClientIP()) {
			m.logger.Warn().
				Str("key", cred.Key).
				Str("client_ip", c.ClientIP()).
				Msg("Request from disallowed IP")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "ip_not_allowed"})
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if err := signing.Verify(
			[]byte(cred.SecretKey),
			body,
			c.GetHeader(HeaderTimestamp),
			c.GetHeader(HeaderSignature),
			skew,
		); err != nil {
			m.logger.Warn().
				Str("key", cred.Key).
				Str("client_ip", c.ClientIP()).
				Msg("Signature verification failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "bad_signature"})
			return
		}

		c.Set(ContextCredential, cred)
		c.Next()
	}
}

// CredentialFromContext retrieves the credential SignatureAuth stored.
func CredentialFromContext(c *gin.Context) (domain.SigningCredential, bool) {
	value, exists := c.Get(ContextCredential)
	if !exists {
		return domain.SigningCredential{}, false
	}
	cred, ok := value.(domain.SigningCredential)
	return cred, ok
}
