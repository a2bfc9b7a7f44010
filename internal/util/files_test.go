package util

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")

	if err := AtomicWriteFile(path, []byte("one"), 0644); err != nil {
		t.Fatalf("AtomicWriteFile: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("two"), 0644); err != nil {
		t.Fatalf("AtomicWriteFile overwrite: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two" {
		t.Errorf("content = %q, want %q", data, "two")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}

func TestWriteJSONAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock.json")
	if err := WriteJSONAtomic(path, map[string]int{"pid": 7}); err != nil {
		t.Fatalf("WriteJSONAtomic: %v", err)
	}
	data, _ := os.ReadFile(path)
	if data[len(data)-1] != '\n' {
		t.Error("expected trailing newline")
	}
	var got map[string]int
	if err := json.Unmarshal(data, &got); err != nil || got["pid"] != 7 {
		t.Errorf("round trip failed: %v %v", got, err)
	}
}

func TestFileHasContent(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "full.md")
	blank := filepath.Join(dir, "blank.md")
	os.WriteFile(full, []byte("# Report\n"), 0644)
	os.WriteFile(blank, []byte("  \n\t"), 0644)

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"content", full, true},
		{"whitespace only", blank, false},
		{"missing", filepath.Join(dir, "nope.md"), false},
		{"directory", dir, false},
		{"empty path", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileHasContent(tt.path); got != tt.want {
				t.Errorf("FileHasContent(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestRemoveIfExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x")
	if err := RemoveIfExists(path); err != nil {
		t.Errorf("missing file: %v", err)
	}
	os.WriteFile(path, []byte("x"), 0644)
	if err := RemoveIfExists(path); err != nil {
		t.Errorf("existing file: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file still exists")
	}
}
