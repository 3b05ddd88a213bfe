package token

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)
	want := Identity{UserID: 42, Email: "alice@example.com", DisplayName: "Alice"}

	ts, err := codec.Issue(want)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	got, err := codec.Verify(ts)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if *got != want {
		t.Errorf("Verify() = %+v, want %+v", *got, want)
	}
}

func TestVerifyFailuresAreUniform(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)

	expired := signedToken(t, "test-secret", "1", -time.Minute)
	forged := signedToken(t, "wrong-secret", "1", time.Hour)
	badSubject := signedToken(t, "test-secret", "not-a-number", time.Hour)

	noneToken := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	unsigned, err := noneToken.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("building none token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"expired", expired},
		{"wrong signature", forged},
		{"non-numeric subject", badSubject},
		{"alg none", unsigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := codec.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
			if id != nil {
				t.Errorf("Verify() identity = %+v, want nil", id)
			}
		})
	}
}

func TestIssueEmbedsExpiry(t *testing.T) {
	codec := NewCodec("test-secret", time.Minute)
	ts, err := codec.Issue(Identity{UserID: 7, Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(ts, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	if claims.Subject != strconv.Itoa(7) {
		t.Errorf("Subject = %q, want 7", claims.Subject)
	}
	left := time.Until(claims.ExpiresAt.Time)
	if left <= 0 || left > time.Minute {
		t.Errorf("expiry %v outside the issued TTL", left)
	}
}

func signedToken(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	ts, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return ts
}
