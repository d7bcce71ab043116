package email

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Headers carrying the delivery-feedback signature material.
const (
	TimestampHeader = "X-Tandem-Timestamp"
	TokenHeader     = "X-Tandem-Token"
	SignatureHeader = "X-Tandem-Signature"
)

// Sign computes the hex HMAC-SHA256 signature the delivery-feedback provider
// sends with each event: the secret keyed over timestamp, token, and the raw
// request body, dot-separated. Verification must run over the exact bytes
// received; re-serializing the body first would break the signature.
func Sign(secret, timestamp, token string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write([]byte(token))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature in constant time. It returns
// false when the secret is unset, so an unconfigured deployment fails closed.
func VerifySignature(secret, timestamp, token, signature string, body []byte) bool {
	if secret == "" || timestamp == "" || token == "" || signature == "" {
		return false
	}
	expected := Sign(secret, timestamp, token, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
