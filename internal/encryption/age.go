package encryption

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"hoard/internal/config"
	"hoard/internal/hoard"
)

// AgeEncryptor encrypts mirror content with an X25519 key pair from
// filippo.io/age. The recipient (public key) lives on disk in plaintext so
// pushes never need a passphrase; the identity (private key) is itself
// age-encrypted under a passphrase and only read on Unlock.
type AgeEncryptor struct {
	publicKeyPath  string
	privateKeyPath string
}

var _ hoard.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates a new AgeEncryptor from configuration.
func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{
		publicKeyPath:  cfg.PublicKeyPath,
		privateKeyPath: cfg.PrivateKeyPath,
	}
}

// Setup generates a fresh key pair and writes both halves to disk. The
// private key file is passphrase-encrypted with age's scrypt recipient, so
// possession of the file alone is not enough to read mirrored content.
func (e *AgeEncryptor) Setup(passphrase string) error {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	for _, p := range []string{e.publicKeyPath, e.privateKeyPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return fmt.Errorf("creating key directory: %w", err)
		}
	}

	if err := os.WriteFile(e.publicKeyPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	return e.writePrivateKey(identity, passphrase)
}

func (e *AgeEncryptor) writePrivateKey(identity *age.X25519Identity, passphrase string) error {
	scrypt, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}

	f, err := os.OpenFile(e.privateKeyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating private key file: %w", err)
	}
	defer f.Close()

	w, err := age.Encrypt(f, scrypt)
	if err != nil {
		return fmt.Errorf("encrypting private key: %w", err)
	}
	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing private key: %w", err)
	}
	return nil
}

// Encrypt streams plaintext from r to w as age ciphertext for the stored
// recipient.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	data, err := os.ReadFile(e.publicKeyPath)
	if err != nil {
		return fmt.Errorf("reading public key: %w", err)
	}
	recipient, err := age.ParseX25519Recipient(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("parsing public key: %w", err)
	}

	ew, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("starting encryption: %w", err)
	}
	if _, err := io.Copy(ew, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	if err := ew.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Unlock decrypts the private key file with the passphrase and returns a
// DecryptionContext holding the unlocked identity.
func (e *AgeEncryptor) Unlock(passphrase string) (hoard.DecryptionContext, error) {
	data, err := os.ReadFile(e.privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key file: %w", err)
	}

	scrypt, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	dr, err := age.Decrypt(bytes.NewReader(data), scrypt)
	if err != nil {
		return nil, fmt.Errorf("decrypting private key: %w", err)
	}
	keyText, err := io.ReadAll(dr)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted private key: %w", err)
	}

	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(keyText)))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	return &AgeDecryptionContext{identity: identity}, nil
}

// IsConfigured reports whether both key files exist on disk.
func (e *AgeEncryptor) IsConfigured() bool {
	for _, p := range []string{e.publicKeyPath, e.privateKeyPath} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// AgeDecryptionContext holds an unlocked identity for decrypting mirrored
// content. Obtain one from AgeEncryptor.Unlock.
type AgeDecryptionContext struct {
	identity age.Identity
}

var _ hoard.DecryptionContext = (*AgeDecryptionContext)(nil)

// Decrypt streams age ciphertext from r to w as plaintext.
func (c *AgeDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	dr, err := age.Decrypt(r, c.identity)
	if err != nil {
		return fmt.Errorf("starting decryption: %w", err)
	}
	if _, err := io.Copy(w, dr); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}
	return nil
}
