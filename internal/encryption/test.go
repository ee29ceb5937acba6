package encryption

import (
	"bytes"
	"fmt"
	"io"

	"hoard/internal/hoard"
)

// testHeader marks data produced by TestEncryptor. Prepending it keeps the
// output distinguishable from plaintext without any actual cryptography.
var testHeader = []byte("HOARDE\x00\x00")

// TestEncryptor is a deterministic stand-in for AgeEncryptor in tests. It
// needs no keys, no passphrase, and no setup; Encrypt prepends testHeader and
// Decrypt strips it.
type TestEncryptor struct{}

var _ hoard.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error { return nil }

func (e *TestEncryptor) IsConfigured() bool { return true }

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (hoard.DecryptionContext, error) {
	return &TestDecryptionContext{}, nil
}

// TestDecryptionContext reverses TestEncryptor. It fails on input that does
// not start with testHeader, which catches plaintext accidentally pushed to a
// mirror that was supposed to be encrypted.
type TestDecryptionContext struct{}

var _ hoard.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
