package mirror

import (
	"bytes"
	"strings"
	"testing"
)

func TestMemoryMirror_Content(t *testing.T) {
	t.Run("put and get roundtrip", func(t *testing.T) {
		m := NewMemoryMirror("test")
		data := "some video bytes"

		if err := m.PutContent("abc123", strings.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("PutContent() error = %v", err)
		}

		var buf bytes.Buffer
		if err := m.GetContent("abc123", &buf); err != nil {
			t.Fatalf("GetContent() error = %v", err)
		}
		if buf.String() != data {
			t.Errorf("GetContent() = %q, want %q", buf.String(), data)
		}
	})

	t.Run("put rejects size mismatch", func(t *testing.T) {
		m := NewMemoryMirror("test")
		if err := m.PutContent("abc123", strings.NewReader("short"), 100); err == nil {
			t.Error("PutContent() error = nil, want size mismatch error")
		}
	})

	t.Run("put is idempotent", func(t *testing.T) {
		m := NewMemoryMirror("test")
		data := "same bytes"

		for i := 0; i < 2; i++ {
			if err := m.PutContent("abc123", strings.NewReader(data), int64(len(data))); err != nil {
				t.Fatalf("PutContent() #%d error = %v", i+1, err)
			}
		}

		var buf bytes.Buffer
		if err := m.GetContent("abc123", &buf); err != nil {
			t.Fatalf("GetContent() error = %v", err)
		}
		if buf.String() != data {
			t.Errorf("GetContent() = %q, want %q", buf.String(), data)
		}
	})

	t.Run("get missing hash fails", func(t *testing.T) {
		m := NewMemoryMirror("test")
		var buf bytes.Buffer
		if err := m.GetContent("missing", &buf); err == nil {
			t.Error("GetContent() error = nil, want not-found error")
		}
	})

	t.Run("has content", func(t *testing.T) {
		m := NewMemoryMirror("test")
		if err := m.PutContent("abc123", strings.NewReader("x"), 1); err != nil {
			t.Fatalf("PutContent() error = %v", err)
		}

		ok, err := m.HasContent("abc123")
		if err != nil || !ok {
			t.Errorf("HasContent(abc123) = %v, %v, want true", ok, err)
		}
		ok, err = m.HasContent("missing")
		if err != nil || ok {
			t.Errorf("HasContent(missing) = %v, %v, want false", ok, err)
		}
	})
}

func TestMemoryMirror_Catalog(t *testing.T) {
	t.Run("put and get roundtrip with version", func(t *testing.T) {
		m := NewMemoryMirror("test")
		data := "sqlite snapshot"

		if err := m.PutCatalog("install-1", strings.NewReader(data), int64(len(data)), 1700000000); err != nil {
			t.Fatalf("PutCatalog() error = %v", err)
		}

		var buf bytes.Buffer
		if err := m.GetCatalog("install-1", &buf); err != nil {
			t.Fatalf("GetCatalog() error = %v", err)
		}
		if buf.String() != data {
			t.Errorf("GetCatalog() = %q, want %q", buf.String(), data)
		}

		version, err := m.CatalogVersion("install-1")
		if err != nil {
			t.Fatalf("CatalogVersion() error = %v", err)
		}
		if version != 1700000000 {
			t.Errorf("CatalogVersion() = %d, want 1700000000", version)
		}
	})

	t.Run("version is zero before first push", func(t *testing.T) {
		m := NewMemoryMirror("test")
		version, err := m.CatalogVersion("install-1")
		if err != nil {
			t.Fatalf("CatalogVersion() error = %v", err)
		}
		if version != 0 {
			t.Errorf("CatalogVersion() = %d, want 0", version)
		}
	})

	t.Run("installations are isolated", func(t *testing.T) {
		m := NewMemoryMirror("test")
		if err := m.PutCatalog("install-1", strings.NewReader("a"), 1, 5); err != nil {
			t.Fatalf("PutCatalog() error = %v", err)
		}

		var buf bytes.Buffer
		if err := m.GetCatalog("install-2", &buf); err == nil {
			t.Error("GetCatalog(install-2) error = nil, want not-found error")
		}
	})
}

func TestMemoryMirror_ValidateSetup(t *testing.T) {
	if err := NewMemoryMirror("test").ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
}
