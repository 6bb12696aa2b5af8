package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
)

// SignatureHeader carries the hex HMAC of the raw request body.
const SignatureHeader = "X-Webhook-Signature"

// Sign returns the hex-encoded HMAC-SHA256 of payload keyed by secret.
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether signature is the HMAC-SHA256 of the raw payload.
// The comparison is constant time. An empty secret or signature never verifies.
func Verify(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(payload, secret)
	got := strings.ToLower(strings.TrimSpace(signature))
	return hmac.Equal([]byte(expected), []byte(got))
}

// Verifier checks incoming webhook bodies against the shared gateway secret.
//
// Without a secret the verifier runs in degraded mode: every check passes and
// emits a warning, so an unconfigured deployment is visible in the logs.
type Verifier struct {
	secret string
	logger *slog.Logger
}

func NewVerifier(secret string, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{secret: secret, logger: logger}
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool {
	return v.secret != ""
}

// Check must run before the payload is parsed.
func (v *Verifier) Check(payload []byte, signature string) error {
	if v.secret == "" {
		v.logger.Warn("webhook signature verification skipped: secret is not configured")
		return nil
	}
	if !Verify(payload, signature, v.secret) {
		return ErrInvalidSignature
	}
	return nil
}
