package encryption

import (
	"testing"

	"hoard/internal/config"
)

func TestNewEncryptorFromConfig(t *testing.T) {
	t.Run("age", func(t *testing.T) {
		enc, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: "age"})
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig() error = %v", err)
		}
		if _, ok := enc.(*AgeEncryptor); !ok {
			t.Errorf("NewEncryptorFromConfig() = %T, want *AgeEncryptor", enc)
		}
	})

	t.Run("empty defaults to age", func(t *testing.T) {
		enc, err := NewEncryptorFromConfig(config.EncryptionConfig{})
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig() error = %v", err)
		}
		if _, ok := enc.(*AgeEncryptor); !ok {
			t.Errorf("NewEncryptorFromConfig() = %T, want *AgeEncryptor", enc)
		}
	})

	t.Run("test", func(t *testing.T) {
		enc, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: "test"})
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig() error = %v", err)
		}
		if _, ok := enc.(*TestEncryptor); !ok {
			t.Errorf("NewEncryptorFromConfig() = %T, want *TestEncryptor", enc)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: "rot13"}); err == nil {
			t.Error("NewEncryptorFromConfig() error = nil, want error")
		}
	})
}
