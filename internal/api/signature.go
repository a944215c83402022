package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader is where providers put the HMAC of the raw body.
const SignatureHeader = "X-Hub-Signature-256"

// VerifySignature checks an HMAC-SHA256 hex signature over the raw body
// against the trigger secret. The optional "sha256=" prefix is stripped
// and the compare is constant-time.
func VerifySignature(body []byte, secret, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}

	const prefix = "sha256="
	if strings.HasPrefix(signature, prefix) {
		signature = strings.TrimPrefix(signature, prefix)
	}

	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// SignBody produces the header value for a given body and secret;
// exported for clients and tests.
func SignBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
