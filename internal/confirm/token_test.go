package confirm

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

func fixedSigner(secret string, ttl time.Duration, now time.Time) *Signer {
	s := NewSigner(secret, ttl)
	s.nowFunc = func() time.Time { return now }
	return s
}

func TestTokenRoundTrip(t *testing.T) {
	s := NewSigner("secret", time.Hour)
	token := s.Token("order-1")

	if err := s.Verify("order-1", token); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
}

func TestVerify_WrongOrder(t *testing.T) {
	s := NewSigner("secret", time.Hour)
	token := s.Token("order-1")

	if err := s.Verify("order-2", token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	token := NewSigner("secret-a", time.Hour).Token("order-1")

	if err := NewSigner("secret-b", time.Hour).Verify("order-1", token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := fixedSigner("secret", 30*time.Minute, base)
	token := s.Token("order-1")

	s.nowFunc = func() time.Time { return base.Add(31 * time.Minute) }
	if err := s.Verify("order-1", token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	// still valid right at the boundary
	s.nowFunc = func() time.Time { return base.Add(30 * time.Minute) }
	if err := s.Verify("order-1", token); err != nil {
		t.Fatalf("token at expiry boundary rejected: %v", err)
	}
}

func TestVerify_TamperedExpiry(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := fixedSigner("secret", time.Minute, base)
	token := s.Token("order-1")

	// push the expiry far into the future without re-signing
	payloadPart, macPart, _ := strings.Cut(token, ".")
	payload, _ := base64.RawURLEncoding.DecodeString(payloadPart)
	forged := strings.Replace(string(payload), "|"+Purpose+"|", "|"+Purpose+"|9", 1)
	tampered := base64.RawURLEncoding.EncodeToString([]byte(forged)) + "." + macPart

	// tampering must read as invalid, never as expired
	s.nowFunc = func() time.Time { return base.Add(time.Hour) }
	if err := s.Verify("order-1", tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for tampered expiry, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	s := NewSigner("secret", time.Hour)
	for _, token := range []string{
		"",
		"no-separator",
		"not!base64.bad!mac",
		base64.RawURLEncoding.EncodeToString([]byte("too|few")) + ".AAAA",
	} {
		if err := s.Verify("order-1", token); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("token %q: expected ErrTokenInvalid, got %v", token, err)
		}
	}
}
