package utils

import (
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	password := "s3cret-pass"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if hash == "" || hash == password {
		t.Fatalf("HashPassword() returned %q", hash)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("expected a bcrypt hash, got %q", hash)
	}
}

func TestHashPassword_Salted(t *testing.T) {
	hash1, _ := HashPassword("same-password")
	hash2, _ := HashPassword("same-password")

	if hash1 == hash2 {
		t.Error("same password should produce different hashes")
	}
}

func TestHashPassword_TooLong(t *testing.T) {
	if _, err := HashPassword(strings.Repeat("x", 73)); err == nil {
		t.Error("expected error for password longer than 72 bytes")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, _ := HashPassword("correctpassword")

	tests := []struct {
		name     string
		password string
		hash     string
		expected bool
	}{
		{"correct password", "correctpassword", hash, true},
		{"wrong password", "wrongpassword", hash, false},
		{"empty password", "", hash, false},
		{"case sensitive", "CorrectPassword", hash, false},
		{"invalid hash", "correctpassword", "not-a-hash", false},
		{"empty hash", "correctpassword", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPassword(tt.password, tt.hash); got != tt.expected {
				t.Errorf("CheckPassword(%q) = %v, expected %v", tt.password, got, tt.expected)
			}
		})
	}
}
