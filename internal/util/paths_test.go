package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateArtifactKey(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		expectError bool
	}{
		{"plugin directory", "calibre.koplugin", false},
		{"numbered patch", "2-custom-footer.lua", false},
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"dot dot", "..", true},
		{"traversal", "../etc", true},
		{"forward slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"control char", "bad\x00name", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArtifactKey(tt.key)
			if tt.expectError && err == nil {
				t.Errorf("ValidateArtifactKey(%q) expected error, got nil", tt.key)
			}
			if !tt.expectError && err != nil {
				t.Errorf("ValidateArtifactKey(%q) unexpected error: %v", tt.key, err)
			}
		})
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")

	if err := WriteFileAtomic(path, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	if err := WriteFileAtomic(path, []byte(`{"a":2}`)); err != nil {
		t.Fatalf("WriteFileAtomic() second write error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read back file: %v", err)
	}
	if string(data) != `{"a":2}` {
		t.Errorf("Expected latest content, got %s", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("Expected no leftover temporary files, found %d entries", len(entries))
	}
}
