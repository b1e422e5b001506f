package util

import (
	"strings"
	"testing"
)

func TestGenerateKeyPair_ProducesDistinctMaterial(t *testing.T) {
	t.Parallel()

	keyID1, secret1, hash1, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	keyID2, secret2, hash2, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	if keyID1 == keyID2 {
		t.Error("two generated key ids collided")
	}
	if secret1 == secret2 {
		t.Error("two generated secrets collided")
	}
	if hash1 == hash2 {
		t.Error("two generated hashes collided")
	}
	if keyID1 == "" || secret1 == "" || hash1 == "" {
		t.Error("generated material contains empty values")
	}
	if strings.Contains(secret1, ":") {
		t.Errorf("secret contains the credential separator: %q", secret1)
	}
}

func TestGenerateKeyPair_HashMatchesSecret(t *testing.T) {
	t.Parallel()

	_, secret, hash, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	if hash != HashSecret(secret) {
		t.Error("returned hash does not match the secret's digest")
	}
}

func TestVerifySecret(t *testing.T) {
	t.Parallel()

	hash := HashSecret("correct-horse-battery-staple")

	if !VerifySecret("correct-horse-battery-staple", hash) {
		t.Error("correct secret rejected")
	}
	if VerifySecret("wrong-secret", hash) {
		t.Error("wrong secret accepted")
	}
	if VerifySecret("", hash) {
		t.Error("empty secret accepted")
	}
}
