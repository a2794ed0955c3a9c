package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndParse(t *testing.T) {
	m := NewManager("secret", time.Hour)
	signed, err := m.Issue("user_1", "0xabc")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Parse(signed)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user_1" || claims.WalletAddress != "0xabc" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ExpiresAt.Sub(claims.IssuedAt.Time) != time.Hour {
		t.Fatalf("unexpected validity window")
	}
}

func TestParseExpired(t *testing.T) {
	m := NewManager("secret", time.Minute)
	past := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return past }
	signed, err := m.Issue("user_1", "0xabc")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	m.now = time.Now
	if _, err := m.Parse(signed); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestParseInvalid(t *testing.T) {
	m := NewManager("secret", time.Hour)
	other := NewManager("other", time.Hour)
	signed, _ := other.Issue("user_1", "0xabc")

	if _, err := m.Parse(signed); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for wrong secret, got %v", err)
	}
	if _, err := m.Parse("garbage"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for garbage, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user_1", WalletAddress: "0xabc"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := m.Parse(unsigned); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for alg none, got %v", err)
	}
}

func TestParseMissingBinding(t *testing.T) {
	m := NewManager("secret", time.Hour)
	signed, _ := m.Issue("", "0xabc")
	if _, err := m.Parse(signed); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for missing user id, got %v", err)
	}
}
