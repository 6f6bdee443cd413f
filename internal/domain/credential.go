package domain

import "time"

// SigningCredential is a merchant's API key + secret pair. Issuance and
// rotation live elsewhere; this service only consumes active credentials to
// verify inbound signatures and sign outbound webhooks.
type SigningCredential struct {
	ID         string    `json:"id" db:"id"`
	MerchantID string    `json:"merchant_id" db:"merchant_id"`
	Key        string    `json:"key" db:"key"`
	SecretKey  string    `json:"-" db:"secret_key"`
	AllowedIPs []string  `json:"allowed_ips,omitempty" db:"allowed_ips"`
	IsActive   bool      `json:"is_active" db:"is_active"`
	ExpiresAt  time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Usable reports whether the credential may authenticate requests now.
func (c *SigningCredential) Usable() bool {
	if !c.IsActive || c.SecretKey == "" {
		return false
	}
	if !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt) {
		return false
	}
	return true
}

// IPAllowed checks the caller address against the allowlist. An empty
// allowlist admits every address.
func (c *SigningCredential) IPAllowed(remoteAddr string) bool {
	if len(c.AllowedIPs) == 0 {
		return true
	}
	for _, ip := range c.AllowedIPs {
		if ip == remoteAddr {
			return true
		}
	}
	return false
}
