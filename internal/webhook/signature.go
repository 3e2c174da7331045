package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// SignatureHeader carries the HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Hub-Signature-256"

const signaturePrefix = "sha256="

// ErrSecretNotConfigured means the receiver cannot authenticate anything.
// Callers must answer with a server error, never treat it as valid.
var ErrSecretNotConfigured = errors.New("webhook secret not configured")

// Sign returns the signature header value GitHub sends for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether header is the signature of body under secret.
// The comparison runs in constant time with respect to the header
// content; a length mismatch or an empty secret returns false.
func Verify(body []byte, secret, header string) bool {
	if secret == "" {
		return false
	}
	expected := Sign(body, secret)
	return hmac.Equal([]byte(expected), []byte(header))
}
