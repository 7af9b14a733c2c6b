package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the HMAC-SHA256 of the webhook body keyed by the
// app secret.
const SignatureHeader = "X-Hub-Signature-256"

// VerifySignature checks a "sha256=<hex>" signature of body.
func VerifySignature(body []byte, appSecret, signature string) bool {
	sig, ok := strings.CutPrefix(signature, "sha256=")
	if !ok || sig == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(sig), []byte(computed))
}
