package util

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/makkenzo/email-gateway-api/internal/domain/apikey"
)

func generateToken(numBytes int) (string, error) {
	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateKeyPair produces a new public key identifier, its raw secret and
// the SHA-256 hex digest of that secret. The raw secret exists only in the
// return value; callers must surface it to the requester immediately and
// never log it.
func GenerateKeyPair() (keyID string, rawSecret string, secretHash string, err error) {
	keyID, err = generateToken(apikey.KeyIDBytes)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate key id: %w", err)
	}

	rawSecret, err = generateToken(apikey.SecretBytes)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate secret: %w", err)
	}

	return keyID, rawSecret, HashSecret(rawSecret), nil
}

// HashSecret returns the hex-encoded SHA-256 digest of a raw secret.
func HashSecret(rawSecret string) string {
	hashBytes := sha256.Sum256([]byte(rawSecret))
	return fmt.Sprintf("%x", hashBytes)
}

// VerifySecret recomputes the digest of rawSecret and compares it to the
// stored hash in constant time.
func VerifySecret(rawSecret, storedHash string) bool {
	computed := HashSecret(rawSecret)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
