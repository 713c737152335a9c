package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestGenerateAPIKey_Format(t *testing.T) {
	t.Parallel()

	generated, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}

	if !strings.HasPrefix(generated.Plaintext, KeyMarker) {
		t.Errorf("Key should start with %q, got: %s", KeyMarker, generated.Plaintext)
	}
	if !ValidateKeyFormat(generated.Plaintext) {
		t.Errorf("Generated key should match the expected format: %s", generated.Plaintext)
	}
	if len(generated.Prefix) != KeyPrefixLen {
		t.Errorf("Prefix should be %d chars, got %d", KeyPrefixLen, len(generated.Prefix))
	}
}

func TestGenerateAPIKey_HashVerifies(t *testing.T) {
	t.Parallel()

	generated, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}

	match, err := VerifySecret(generated.Plaintext, generated.Hash)
	if err != nil {
		t.Fatalf("VerifySecret failed: %v", err)
	}
	if !match {
		t.Error("Stored hash should verify against the plaintext key")
	}
}

func TestGenerateAPIKey_Unique(t *testing.T) {
	t.Parallel()

	a, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}
	b, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}

	if a.Plaintext == b.Plaintext {
		t.Error("Two generated keys should never be identical")
	}
}

func TestParseAPIKey(t *testing.T) {
	t.Parallel()

	generated, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}

	parsed, err := ParseAPIKey(generated.Plaintext)
	if err != nil {
		t.Fatalf("ParseAPIKey failed: %v", err)
	}

	if parsed.Prefix != generated.Prefix {
		t.Errorf("Parsed prefix %q should match generated prefix %q", parsed.Prefix, generated.Prefix)
	}
	if len(parsed.Secret) != KeySecretLen {
		t.Errorf("Secret should be %d chars, got %d", KeySecretLen, len(parsed.Secret))
	}
}

func TestParseAPIKey_InvalidFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"no marker", "a1b2c3_" + strings.Repeat("f", 64)},
		{"wrong marker", "pk_a1b2c3_" + strings.Repeat("f", 64)},
		{"short prefix", "sk_a1b2_" + strings.Repeat("f", 64)},
		{"short secret", "sk_a1b2c3_deadbeef"},
		{"uppercase hex", "sk_A1B2C3_" + strings.Repeat("F", 64)},
		{"session token shape", "eyJhbGciOiJIUzI1NiJ9.payload.sig"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseAPIKey(tt.key)
			if !errors.Is(err, ErrInvalidKeyFormat) {
				t.Errorf("Expected ErrInvalidKeyFormat, got: %v", err)
			}
		})
	}
}
