package httpadapter

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// verifySignature checks the X-Hub-Signature-256 header Meta attaches to
// every delivery. An unset app secret disables the check, which is only
// acceptable for local runs.
func (rt *Router) verifySignature(header string, body []byte) bool {
	if rt.appSecret == "" {
		return true
	}

	provided, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	providedMAC, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(rt.appSecret))
	mac.Write(body)
	return hmac.Equal(providedMAC, mac.Sum(nil))
}
