package hash

import (
	"errors"
	"strings"
	"testing"
)

func TestHash(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{name: "typical password", password: "habits-and-projects"},
		{name: "exactly minimum length", password: "abc123"},
		{name: "one below minimum", password: "abc12", wantErr: ErrPasswordTooShort},
		{name: "empty", password: "", wantErr: ErrPasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hashed, err := Hash(tt.password)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Hash() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Hash() unexpected error = %v", err)
			}

			if !strings.HasPrefix(hashed, "$2a$12$") {
				t.Errorf("Hash() want bcrypt cost 12 prefix, got %q", hashed[:7])
			}
			if !Matches(hashed, tt.password) {
				t.Error("Matches() = false for the password that was hashed")
			}
		})
	}
}

func TestHashIsSalted(t *testing.T) {
	first, err := Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	second, err := Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if first == second {
		t.Error("two hashes of the same password should differ")
	}
}

func TestCompare(t *testing.T) {
	hashed, err := Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name     string
		hashed   string
		password string
		wantErr  bool
	}{
		{name: "match", hashed: hashed, password: "correct horse"},
		{name: "wrong password", hashed: hashed, password: "battery staple", wantErr: true},
		{name: "case differs", hashed: hashed, password: "CORRECT HORSE", wantErr: true},
		{name: "malformed hash", hashed: "not-a-hash", password: "correct horse", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Compare(tt.hashed, tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("Compare() error = %v, wantErr %v", err, tt.wantErr)
			}
			if Matches(tt.hashed, tt.password) == tt.wantErr {
				t.Errorf("Matches() disagrees with Compare() for %q", tt.name)
			}
		})
	}
}
