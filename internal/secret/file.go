package secret

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	fileName = "daemon.secret"
	fileMode = 0o600
)

// File stores the secret in a file readable only by its owner.
type File struct {
	dir string
}

var (
	fileWriteFile = os.WriteFile
	fileReadFile  = os.ReadFile
	fileRemove    = os.Remove
	fileRename    = os.Rename
	fileMkdirAll  = os.MkdirAll
)

func NewFile(dir string) *File {
	return &File{dir: dir}
}

func (f *File) path() string {
	return filepath.Join(f.dir, fileName)
}

func (f *File) Get() (string, error) {
	data, err := fileReadFile(f.path())
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

// Set writes through a temporary file and a rename so a reader never sees
// a partial secret.
func (f *File) Set(v string) error {
	if err := fileMkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp := f.path() + ".tmp"
	if err := fileWriteFile(tmp, []byte(v), fileMode); err != nil {
		return fmt.Errorf("write secret: %w", err)
	}
	if err := fileRename(tmp, f.path()); err != nil {
		fileRemove(tmp)
		return fmt.Errorf("rename secret file: %w", err)
	}
	return nil
}

func (f *File) Delete() error {
	err := fileRemove(f.path())
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}
