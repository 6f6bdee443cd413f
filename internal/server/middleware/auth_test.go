package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/arsmhmt/unifiedgw/internal/domain"
	"github.com/arsmhmt/unifiedgw/pkg/signing"
)

type MockCredentialRepository struct {
	GetByKeyFunc func(ctx context.Context, key string) (domain.SigningCredential, error)
}

func (m *MockCredentialRepository) GetByKey(ctx context.Context, key string) (domain.SigningCredential, error) {
	if m.GetByKeyFunc != nil {
		return m.GetByKeyFunc(ctx, key)
	}
	return domain.SigningCredential{}, domain.ErrUnauthenticated
}

func (m *MockCredentialRepository) GetActiveByMerchant(ctx context.Context, merchantID string) (domain.SigningCredential, error) {
	return domain.SigningCredential{}, domain.ErrNotFound
}

func authCredential() domain.SigningCredential {
	return domain.SigningCredential{
		ID:         "cred-1",
		MerchantID: "merchant-1",
		Key:        "pk_test_abc",
		SecretKey:  "sk_test_secret",
		IsActive:   true,
	}
}

func authRouter(repo *MockCredentialRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	mw := NewMiddleware(zerolog.Nop())

	protected := router.Group("/v1")
	protected.Use(mw.SignatureAuth(repo, signing.DefaultSkewWindow))
	protected.POST("/echo", func(c *gin.Context) {
		cred, ok := CredentialFromContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no_credential"})
			return
		}
		// The raw body must still be readable after verification.
		body, _ := io.ReadAll(c.Request.Body)
		c.JSON(http.StatusOK, gin.H{"merchant_id": cred.MerchantID, "body": string(body)})
	})
	return router
}

func signedRequest(t *testing.T, secret, body string) *http.Request {
	t.Helper()
	ts, sig := signing.Sign([]byte(secret), []byte(body))
	req := httptest.NewRequest(http.MethodPost, "/v1/echo", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderKey, "pk_test_abc")
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderSignature, sig)
	return req
}

func TestSignatureAuthAccepts(t *testing.T) {
	repo := &MockCredentialRepository{
		GetByKeyFunc: func(ctx context.Context, key string) (domain.SigningCredential, error) {
			if key != "pk_test_abc" {
				t.Errorf("looked up key %q", key)
			}
			return authCredential(), nil
		},
	}
	router := authRouter(repo)

	body := `{"order_id":"ORDER-1001"}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(t, "sk_test_secret", body))

	if w.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", w.Code, w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("merchant-1")) {
		t.Errorf("credential not propagated: %s", w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("ORDER-1001")) {
		t.Errorf("body not restored for the handler: %s", w.Body.String())
	}
}

func TestSignatureAuthRejectsMissingKey(t *testing.T) {
	router := authRouter(&MockCredentialRepository{})

	req := httptest.NewRequest(http.MethodPost, "/v1/echo", bytes.NewReader([]byte("{}")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d, want 401", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("invalid_key")) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestSignatureAuthRejectsUnknownKey(t *testing.T) {
	router := authRouter(&MockCredentialRepository{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(t, "sk_test_secret", "{}"))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d, want 401", w.Code)
	}
}

func TestSignatureAuthRejectsInactiveCredential(t *testing.T) {
	cred := authCredential()
	cred.IsActive = false
	repo := &MockCredentialRepository{
		GetByKeyFunc: func(ctx context.Context, key string) (domain.SigningCredential, error) {
			return cred, nil
		},
	}
	router := authRouter(repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(t, "sk_test_secret", "{}"))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d, want 401", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("invalid_key")) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestSignatureAuthRejectsDisallowedIP(t *testing.T) {
	cred := authCredential()
	cred.AllowedIPs = []string{"203.0.113.7"}
	repo := &MockCredentialRepository{
		GetByKeyFunc: func(ctx context.Context, key string) (domain.SigningCredential, error) {
			return cred, nil
		},
	}
	router := authRouter(repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(t, "sk_test_secret", "{}"))

	if w.Code != http.StatusForbidden {
		t.Fatalf("code = %d, want 403", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("ip_not_allowed")) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestSignatureAuthRejectsBadSignature(t *testing.T) {
	repo := &MockCredentialRepository{
		GetByKeyFunc: func(ctx context.Context, key string) (domain.SigningCredential, error) {
			return authCredential(), nil
		},
	}
	router := authRouter(repo)

	for name, mutate := range map[string]func(*http.Request){
		"wrong secret": func(r *http.Request) {
			ts, sig := signing.Sign([]byte("sk_other"), []byte("{}"))
			r.Header.Set(HeaderTimestamp, ts)
			r.Header.Set(HeaderSignature, sig)
		},
		"tampered body": func(r *http.Request) {
			r.Body = io.NopCloser(bytes.NewReader([]byte(`{"amount":"999"}`)))
			r.ContentLength = int64(len(`{"amount":"999"}`))
		},
		"stale timestamp": func(r *http.Request) {
			old := time.Now().Add(-10 * time.Minute)
			ts, sig := signing.SignAt([]byte("sk_test_secret"), []byte("{}"), old)
			r.Header.Set(HeaderTimestamp, ts)
			r.Header.Set(HeaderSignature, sig)
		},
		"missing signature": func(r *http.Request) {
			r.Header.Del(HeaderSignature)
		},
		"garbage timestamp": func(r *http.Request) {
			r.Header.Set(HeaderTimestamp, "not-a-number")
		},
	} {
		t.Run(name, func(t *testing.T) {
			req := signedRequest(t, "sk_test_secret", "{}")
			mutate(req)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("code = %d, want 401", w.Code)
			}
			if !bytes.Contains(w.Body.Bytes(), []byte("bad_signature")) {
				t.Errorf("body = %s", w.Body.String())
			}
		})
	}
}

func TestSignatureAuthFutureTimestampWithinSkew(t *testing.T) {
	repo := &MockCredentialRepository{
		GetByKeyFunc: func(ctx context.Context, key string) (domain.SigningCredential, error) {
			return authCredential(), nil
		},
	}
	router := authRouter(repo)

	at := time.Now().Add(2 * time.Minute)
	ts, sig := signing.SignAt([]byte("sk_test_secret"), []byte("{}"), at)
	if ts != strconv.FormatInt(at.Unix(), 10) {
		t.Fatalf("timestamp = %q", ts)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/echo", bytes.NewReader([]byte("{}")))
	req.Header.Set(HeaderKey, "pk_test_abc")
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderSignature, sig)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", w.Code, w.Body.String())
	}
}
