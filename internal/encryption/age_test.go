package encryption

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hoard/internal/config"
)

func newTestAgeEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	return NewAgeEncryptor(config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "keys", "hoard.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "hoard.key"),
	})
}

func TestAgeEncryptor_Setup(t *testing.T) {
	t.Run("creates both key files", func(t *testing.T) {
		e := newTestAgeEncryptor(t)

		if e.IsConfigured() {
			t.Error("IsConfigured() = true before Setup()")
		}
		if err := e.Setup("correct horse battery staple"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if !e.IsConfigured() {
			t.Error("IsConfigured() = false after Setup()")
		}

		// Public key is plaintext and world-readable.
		pubInfo, err := os.Stat(e.publicKeyPath)
		if err != nil {
			t.Fatalf("stat public key: %v", err)
		}
		if perm := pubInfo.Mode().Perm(); perm != 0644 {
			t.Errorf("public key mode = %o, want 0644", perm)
		}
		pubData, err := os.ReadFile(e.publicKeyPath)
		if err != nil {
			t.Fatalf("reading public key: %v", err)
		}
		if !strings.HasPrefix(string(pubData), "age1") {
			t.Errorf("public key = %q, want age1... recipient", pubData)
		}

		// Private key is owner-only and not plaintext.
		privInfo, err := os.Stat(e.privateKeyPath)
		if err != nil {
			t.Fatalf("stat private key: %v", err)
		}
		if perm := privInfo.Mode().Perm(); perm != 0600 {
			t.Errorf("private key mode = %o, want 0600", perm)
		}
		privData, err := os.ReadFile(e.privateKeyPath)
		if err != nil {
			t.Fatalf("reading private key: %v", err)
		}
		if strings.Contains(string(privData), "AGE-SECRET-KEY-") {
			t.Error("private key stored in plaintext")
		}
	})
}

func TestAgeEncryptor_Roundtrip(t *testing.T) {
	e := newTestAgeEncryptor(t)
	if err := e.Setup("passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	plaintext := "some video bytes"
	var ciphertext bytes.Buffer
	if err := e.Encrypt(strings.NewReader(plaintext), &ciphertext); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if strings.Contains(ciphertext.String(), plaintext) {
		t.Error("ciphertext contains plaintext")
	}

	dec, err := e.Unlock("passphrase")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	var decrypted bytes.Buffer
	if err := dec.Decrypt(bytes.NewReader(ciphertext.Bytes()), &decrypted); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if decrypted.String() != plaintext {
		t.Errorf("Decrypt() = %q, want %q", decrypted.String(), plaintext)
	}
}

func TestAgeEncryptor_Unlock(t *testing.T) {
	t.Run("wrong passphrase fails", func(t *testing.T) {
		e := newTestAgeEncryptor(t)
		if err := e.Setup("right"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if _, err := e.Unlock("wrong"); err == nil {
			t.Error("Unlock() error = nil, want error for wrong passphrase")
		}
	})

	t.Run("fails before setup", func(t *testing.T) {
		e := newTestAgeEncryptor(t)
		if _, err := e.Unlock("anything"); err == nil {
			t.Error("Unlock() error = nil, want error with no private key")
		}
	})
}

func TestAgeEncryptor_Encrypt(t *testing.T) {
	t.Run("fails before setup", func(t *testing.T) {
		e := newTestAgeEncryptor(t)
		var buf bytes.Buffer
		if err := e.Encrypt(strings.NewReader("data"), &buf); err == nil {
			t.Error("Encrypt() error = nil, want error with no public key")
		}
	})
}
