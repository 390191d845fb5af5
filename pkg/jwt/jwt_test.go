package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		expiration time.Duration
	}{
		{name: "one week", userID: "user-123", expiration: 7 * 24 * time.Hour},
		{name: "short lived", userID: "user-456", expiration: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateToken(tt.userID, tt.expiration, "test-secret")
			if err != nil {
				t.Fatalf("GenerateToken() error = %v", err)
			}

			if parts := strings.Split(token, "."); len(parts) != 3 {
				t.Fatalf("GenerateToken() want 3 segments, got %d", len(parts))
			}

			claims, err := ValidateToken(token, "test-secret")
			if err != nil {
				t.Fatalf("ValidateToken() error = %v", err)
			}
			if claims.UserID != tt.userID {
				t.Errorf("claims.UserID = %q, want %q", claims.UserID, tt.userID)
			}
		})
	}
}

func TestValidateToken(t *testing.T) {
	secret := "validation-secret"

	valid, _ := GenerateToken("user-1", time.Hour, secret)
	expired, _ := GenerateToken("user-1", -time.Hour, secret)
	anonymous, _ := GenerateToken("", time.Hour, secret)

	tests := []struct {
		name   string
		token  string
		secret string
		ok     bool
	}{
		{name: "valid", token: valid, secret: secret, ok: true},
		{name: "expired", token: expired, secret: secret},
		{name: "wrong secret", token: valid, secret: "other"},
		{name: "garbage", token: "invalid.token.format", secret: secret},
		{name: "empty", token: "", secret: secret},
		{name: "missing user id", token: anonymous, secret: secret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ValidateToken(tt.token, tt.secret)
			if tt.ok {
				if err != nil {
					t.Fatalf("ValidateToken() error = %v", err)
				}
				if claims.UserID != "user-1" {
					t.Errorf("claims.UserID = %q", claims.UserID)
				}
				return
			}
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestClaimsTimestamps(t *testing.T) {
	before := time.Now().Add(-time.Second)
	token, err := GenerateToken("ts-user", time.Hour, "ts-secret")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	after := time.Now().Add(time.Second)

	claims, err := ValidateToken(token, "ts-secret")
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}

	if iat := claims.IssuedAt.Time; iat.Before(before) || iat.After(after) {
		t.Errorf("IssuedAt %v outside [%v, %v]", iat, before, after)
	}
	if exp := claims.ExpiresAt.Time; exp.Before(before.Add(time.Hour)) || exp.After(after.Add(time.Hour)) {
		t.Errorf("ExpiresAt %v not one hour after issue", exp)
	}
}

func BenchmarkValidateToken(b *testing.B) {
	token, _ := GenerateToken("benchmark-user", 15*time.Minute, "benchmark-secret")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ValidateToken(token, "benchmark-secret"); err != nil {
			b.Fatalf("ValidateToken() error = %v", err)
		}
	}
}
