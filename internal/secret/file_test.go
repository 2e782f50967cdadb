package secret

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSetGetDelete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	f := NewFile(dir)

	if _, err := f.Get(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := f.Set("s3cret"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, fileName))
	if err != nil {
		t.Fatalf("secret file not created: %v", err)
	}
	if info.Mode().Perm() != fileMode {
		t.Fatalf("expected permissions %o, got %o", fileMode, info.Mode().Perm())
	}
	if v, err := f.Get(); err != nil || v != "s3cret" {
		t.Fatalf("Get = %q, %v", v, err)
	}
	if err := f.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := f.Delete(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileGetTrimsAndRejectsBlank(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(dir)
	tests := []struct {
		content string
		want    string
		wantErr error
	}{
		{"abc\n", "abc", nil},
		{"  \n", "", ErrNotFound},
	}
	for _, tt := range tests {
		if err := os.WriteFile(filepath.Join(dir, fileName), []byte(tt.content), 0o600); err != nil {
			t.Fatal(err)
		}
		v, err := f.Get()
		if !errors.Is(err, tt.wantErr) || v != tt.want {
			t.Errorf("Get with %q = %q, %v", tt.content, v, err)
		}
	}
}

func TestFileSetRenameFailure(t *testing.T) {
	orig := fileRename
	defer func() { fileRename = orig }()
	fileRename = func(string, string) error { return errors.New("rename failed") }

	dir := t.TempDir()
	if err := NewFile(dir).Set("x"); err == nil {
		t.Fatal("expected an error")
	}
	if _, err := os.Stat(filepath.Join(dir, fileName+".tmp")); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind: %v", err)
	}
}
