package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Signer produces HMAC-SHA256 signatures over exported payloads so a
// consumer holding the shared secret can verify them.
type Signer struct {
	secret []byte
}

// NewSigner returns a Signer keyed by secret. An empty secret yields a nil
// Signer; callers skip signing in that case.
func NewSigner(secret string) *Signer {
	if secret == "" {
		return nil
	}
	return &Signer{secret: []byte(secret)}
}

// Sign returns the hex signature of HMAC-SHA256(secret, ts + "." + payload).
func (s *Signer) Sign(payload []byte, unixTS int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(strconv.FormatInt(unixTS, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig matches payload at unixTS.
func (s *Signer) Verify(payload []byte, unixTS int64, sig string) bool {
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	got, _ := hex.DecodeString(s.Sign(payload, unixTS))
	return hmac.Equal(got, want)
}

// String returns a redacted representation suitable for logging.
func (s *Signer) String() string {
	if s == nil {
		return "Signer{disabled}"
	}
	return fmt.Sprintf("Signer{secret=%d bytes}", len(s.secret))
}
