package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashSecret_Format(t *testing.T) {
	t.Parallel()

	secret := "correct-horse-battery-staple"

	hash, err := HashSecret(secret)
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}

	// Verify PHC format: $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
	if !strings.HasPrefix(hash, "$argon2id$v=") {
		t.Errorf("Hash should be in PHC format, got: %s", hash)
	}

	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Errorf("Hash should have 6 parts, got: %d", len(parts))
	}

	if parts[1] != "argon2id" {
		t.Errorf("Expected argon2id algorithm, got: %s", parts[1])
	}
	if parts[2] != "v=19" {
		t.Errorf("Expected v=19, got: %s", parts[2])
	}
	if parts[3] != "m=65536,t=3,p=4" {
		t.Errorf("Expected m=65536,t=3,p=4, got: %s", parts[3])
	}
}

func TestHashSecret_Uniqueness(t *testing.T) {
	t.Parallel()

	secret := "the_same_secret_12345"

	hash1, err := HashSecret(secret)
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}

	hash2, err := HashSecret(secret)
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}

	// Same secret should produce different hashes (different salts)
	if hash1 == hash2 {
		t.Error("Same secret should produce different hashes due to random salt")
	}

	match1, _ := VerifySecret(secret, hash1)
	match2, _ := VerifySecret(secret, hash2)

	if !match1 || !match2 {
		t.Error("Both hashes should verify correctly")
	}
}

func TestVerifySecret_Correct(t *testing.T) {
	t.Parallel()

	secret := "sk_a1b2c3_4f8d2e1b9c7a5f3d"

	hash, err := HashSecret(secret)
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}

	match, err := VerifySecret(secret, hash)
	if err != nil {
		t.Fatalf("VerifySecret failed: %v", err)
	}
	if !match {
		t.Error("Correct secret should match")
	}
}

func TestVerifySecret_Incorrect(t *testing.T) {
	t.Parallel()

	hash, err := HashSecret("the-real-secret")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}

	match, err := VerifySecret("not-the-secret", hash)
	if err != nil {
		t.Fatalf("VerifySecret failed: %v", err)
	}
	if match {
		t.Error("Wrong secret should not match")
	}
}

func TestVerifySecret_InvalidHashFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"not a hash", "plaintext"},
		{"too few parts", "$argon2id$v=19$m=65536,t=3,p=4"},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA"},
		{"bad salt encoding", "$argon2id$v=19$m=65536,t=3,p=4$!!!$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := VerifySecret("secret", tt.hash)
			if !errors.Is(err, ErrInvalidHash) {
				t.Errorf("Expected ErrInvalidHash, got: %v", err)
			}
		})
	}
}

func TestVerifySecret_IncompatibleVersion(t *testing.T) {
	t.Parallel()

	_, err := VerifySecret("secret", "$argon2id$v=18$m=65536,t=3,p=4$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA")
	if !errors.Is(err, ErrIncompatibleVersion) {
		t.Errorf("Expected ErrIncompatibleVersion, got: %v", err)
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	t.Parallel()

	a := Fingerprint("sk_a1b2c3_secret")
	b := Fingerprint("sk_a1b2c3_secret")

	if a != b {
		t.Errorf("Same input should produce same fingerprint: %s != %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("Fingerprint should be 32 hex chars, got %d", len(a))
	}
}

func TestFingerprint_Distinct(t *testing.T) {
	t.Parallel()

	if Fingerprint("credential-a") == Fingerprint("credential-b") {
		t.Error("Different inputs should produce different fingerprints")
	}
}
