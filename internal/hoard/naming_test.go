package hoard

import "testing"

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain name passes through", "clip.mp4", "clip.mp4"},
		{"slashes become dashes", "a/b/c.mp4", "a-b-c.mp4"},
		{"backslashes become dashes", `a\b.mp4`, "a-b.mp4"},
		{"control characters dropped", "cl\x00ip\n.mp4", "clip.mp4"},
		{"surrounding whitespace trimmed", "  clip.mp4  ", "clip.mp4"},
		{"leading dots trimmed", "..hidden", "hidden"},
		{"empty falls back", "", "download"},
		{"only dots falls back", "...", "download"},
		{"unicode preserved", "日本語クリップ.mp4", "日本語クリップ.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeName(tt.in); got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSuffixedName(t *testing.T) {
	hash := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"inserts before extension", "clip.mp4", "clip-01234567.mp4"},
		{"no extension", "clip", "clip-01234567"},
		{"keeps only last extension", "archive.tar.gz", "archive.tar-01234567.gz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SuffixedName(tt.in, hash); got != tt.want {
				t.Errorf("SuffixedName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	t.Run("short hash used whole", func(t *testing.T) {
		if got := SuffixedName("clip.mp4", "abcd"); got != "clip-abcd.mp4" {
			t.Errorf("SuffixedName() = %q", got)
		}
	})
}
