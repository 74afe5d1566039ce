package confirm

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Purpose tags the confirmation token so it cannot be replayed against a
// different signed-link flow sharing the same secret.
const Purpose = "delivery-confirmation"

// ErrTokenInvalid is terminal: the signature, format or purpose check failed.
var ErrTokenInvalid = errors.New("confirmation token invalid")

// ErrTokenExpired is terminal: the token was well-formed but past its expiry.
var ErrTokenExpired = errors.New("confirmation token expired")

// Signer issues and verifies HMAC-signed, time-bounded confirmation tokens.
// Tokens are stateless; the single-use gate is the order's own delivered state.
type Signer struct {
	secret  []byte
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewSigner builds a Signer from the shared secret.
func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{
		secret:  []byte(secret),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Token issues a signed token binding orderID and the confirmation purpose,
// valid for the signer's TTL. Format: base64url(orderID|purpose|expiry).base64url(mac).
func (s *Signer) Token(orderID string) string {
	expiry := s.nowFunc().Add(s.ttl).Unix()
	payload := fmt.Sprintf("%s|%s|%d", orderID, Purpose, expiry)
	mac := s.sign(payload)
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + base64.RawURLEncoding.EncodeToString(mac)
}

// Verify checks a token against the expected order id. The signature is
// checked before expiry so a tampered expiry cannot change the error class.
func (s *Signer) Verify(orderID, token string) error {
	payloadPart, macPart, ok := strings.Cut(token, ".")
	if !ok {
		return ErrTokenInvalid
	}
	payload, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return ErrTokenInvalid
	}
	gotMAC, err := base64.RawURLEncoding.DecodeString(macPart)
	if err != nil {
		return ErrTokenInvalid
	}
	if !hmac.Equal(gotMAC, s.sign(string(payload))) {
		return ErrTokenInvalid
	}

	parts := strings.Split(string(payload), "|")
	if len(parts) != 3 {
		return ErrTokenInvalid
	}
	if parts[0] != orderID || parts[1] != Purpose {
		return ErrTokenInvalid
	}
	expiry, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return ErrTokenInvalid
	}
	if s.nowFunc().Unix() > expiry {
		return ErrTokenExpired
	}
	return nil
}

func (s *Signer) sign(payload string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(payload))
	return h.Sum(nil)
}
