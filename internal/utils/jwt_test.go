package utils

import (
	"testing"
	"time"
)

const testSecret = "test-secret-key-for-testing"

func init() {
	SetJWTSecret(testSecret)
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken("u-1", "alice@example.com", "USER", 24)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if len(token) < 50 {
		t.Errorf("token seems too short: %d chars", len(token))
	}
}

func TestParseToken_RoundTrip(t *testing.T) {
	token, _ := GenerateToken("u-42", "admin@yourcompany.com", "ADMIN", 24)

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.UserID != "u-42" {
		t.Errorf("UserID = %q, expected %q", claims.UserID, "u-42")
	}
	if claims.Email != "admin@yourcompany.com" {
		t.Errorf("Email = %q, expected %q", claims.Email, "admin@yourcompany.com")
	}
	if claims.Role != "ADMIN" {
		t.Errorf("Role = %q, expected %q", claims.Role, "ADMIN")
	}
	if claims.Subject != "u-42" {
		t.Errorf("Subject = %q, expected %q", claims.Subject, "u-42")
	}
}

func TestParseToken_InvalidToken(t *testing.T) {
	for _, token := range []string{
		"",
		"invalid",
		"not.a.token",
		"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature",
	} {
		if _, err := ParseToken(token); err == nil {
			t.Errorf("ParseToken(%q) should return error", token)
		}
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	SetJWTSecret("original-secret")
	token, _ := GenerateToken("u-1", "a@example.com", "USER", 24)

	SetJWTSecret("different-secret")
	_, err := ParseToken(token)

	SetJWTSecret(testSecret)

	if err == nil {
		t.Error("ParseToken should fail with wrong secret")
	}
}

func TestParseToken_Expired(t *testing.T) {
	token, _ := GenerateToken("u-1", "a@example.com", "USER", -1)
	if _, err := ParseToken(token); err == nil {
		t.Error("ParseToken should reject an expired token")
	}
}

func TestGenerateToken_Expiration(t *testing.T) {
	token, _ := GenerateToken("u-1", "a@example.com", "USER", 1)
	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	expected := time.Now().Add(time.Hour)
	diff := claims.ExpiresAt.Time.Sub(expected)
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("expiration time is off by more than 1 minute: %v", diff)
	}
}

func TestGenerateToken_NoSecret(t *testing.T) {
	SetJWTSecret("")
	_, err := GenerateToken("u-1", "a@example.com", "USER", 1)
	SetJWTSecret(testSecret)

	if err == nil {
		t.Error("GenerateToken should fail without a secret")
	}
}
