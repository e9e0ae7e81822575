package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		minLen   int
		wantErr  error
	}{
		{
			name:     "exactly minimum length",
			password: "abc123",
			minLen:   6,
		},
		{
			name:     "one below minimum",
			password: "abc12",
			minLen:   6,
			wantErr:  ErrPasswordTooShort,
		},
		{
			name:     "empty",
			password: "",
			minLen:   6,
			wantErr:  ErrPasswordTooShort,
		},
		{
			name:     "default minimum when unset",
			password: "12345",
			minLen:   0,
			wantErr:  ErrPasswordTooShort,
		},
		{
			name:     "multibyte characters count as runes",
			password: "senhaç",
			minLen:   6,
		},
		{
			name:     "too long for bcrypt",
			password: strings.Repeat("a", MaxPasswordLen+1),
			minLen:   6,
			wantErr:  ErrPasswordTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password, tt.minLen)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPasswordWithCost("consulta123", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPasswordWithCost() = %v", err)
	}

	if hash == "consulta123" {
		t.Fatal("hash must not equal the plaintext")
	}
	if err := ComparePassword(hash, "consulta123"); err != nil {
		t.Errorf("ComparePassword() with correct password = %v, want nil", err)
	}
	if err := ComparePassword(hash, "wrong"); err == nil {
		t.Error("ComparePassword() with wrong password = nil, want error")
	}
}

func TestHashPassword_Empty(t *testing.T) {
	if _, err := HashPasswordWithCost("", bcrypt.MinCost); err == nil {
		t.Error("expected error for empty password")
	}
}
