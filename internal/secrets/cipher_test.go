package secrets

import (
	"errors"
	"testing"
)

func TestCipher_RoundTrip(t *testing.T) {
	t.Parallel()

	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	c, err := NewCipher(key)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	plaintext := "app-specific-mailbox-password"
	token, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if token == plaintext {
		t.Fatal("ciphertext equals plaintext")
	}

	got, err := c.Decrypt(token)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != plaintext {
		t.Errorf("round trip mismatch: got %q, want %q", got, plaintext)
	}
}

func TestCipher_EncryptIsNonDeterministic(t *testing.T) {
	t.Parallel()

	key, _ := GenerateKey()
	c, err := NewCipher(key)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	a, _ := c.Encrypt("same input")
	b, _ := c.Encrypt("same input")
	if a == b {
		t.Error("two encryptions of the same plaintext produced the same token")
	}
}

func TestCipher_WrongKeyFails(t *testing.T) {
	t.Parallel()

	keyA, _ := GenerateKey()
	keyB, _ := GenerateKey()
	cipherA, _ := NewCipher(keyA)
	cipherB, _ := NewCipher(keyB)

	token, err := cipherA.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := cipherB.Decrypt(token); err == nil {
		t.Error("decryption with a different key succeeded")
	}
}

func TestNewCipher_RejectsBadKeys(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"not base64", "!!not-base64!!"},
		{"too short", "c2hvcnQ"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewCipher(tc.key); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("NewCipher(%q) error = %v, want ErrInvalidKey", tc.key, err)
			}
		})
	}
}

func TestCipher_RejectsTamperedToken(t *testing.T) {
	t.Parallel()

	key, _ := GenerateKey()
	c, _ := NewCipher(key)

	token, err := c.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	tampered := []byte(token)
	if tampered[len(tampered)-1] == 'A' {
		tampered[len(tampered)-1] = 'B'
	} else {
		tampered[len(tampered)-1] = 'A'
	}

	if _, err := c.Decrypt(string(tampered)); err == nil {
		t.Error("tampered token decrypted successfully")
	}
}
