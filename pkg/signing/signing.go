package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// ErrBadSignature is the only error Verify returns. A caller learns that
// verification failed, never which check failed.
var ErrBadSignature = errors.New("bad_signature")

const DefaultSkewWindow = 5 * time.Minute

// Sign computes the request signature for body at the current time and
// returns the unix-seconds timestamp alongside the hex-encoded signature.
func Sign(secret, body []byte) (string, string) {
	return SignAt(secret, body, time.Now())
}

// SignAt signs body as of the given time.
func SignAt(secret, body []byte, at time.Time) (string, string) {
	ts := strconv.FormatInt(at.Unix(), 10)
	return ts, compute(secret, body, ts)
}

// Verify checks that signature matches body and timestamp and that the
// timestamp lies within skew of the current time.
func Verify(secret, body []byte, timestamp, signature string, skew time.Duration) error {
	if timestamp == "" || signature == "" {
		return ErrBadSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrBadSignature
	}

	if skew <= 0 {
		skew = DefaultSkewWindow
	}
	drift := time.Since(time.Unix(ts, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > skew {
		return ErrBadSignature
	}

	expected := compute(secret, body, timestamp)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}

	return nil
}

// compute builds hex(HMAC-SHA256(secret, timestamp + "." + body)).
func compute(secret, body []byte, timestamp string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
