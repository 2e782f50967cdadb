// Package fsadaptor implements warpops.Adaptor and warpops.Archiver on top
// of an afero filesystem. The daemon and the CLI use the OS filesystem;
// tests use an in-memory one.
package fsadaptor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/warpdl/warpops/pkg/logger"
	"github.com/warpdl/warpops/pkg/warpops"
)

// DEF_CHUNK_SIZE is the buffer size used for streaming archive members.
const DEF_CHUNK_SIZE = 256 * 1024

// Trasher moves a path into a trash bin.
type Trasher interface {
	Trash(path string) error
}

// FS is an afero-backed adaptor.
type FS struct {
	fs        afero.Fs
	trash     Trasher
	log       logger.Logger
	chunkSize int
}

// Option configures an FS.
type Option func(*FS)

// WithTrash enables Trash. Without a Trasher, Trash fails with
// warpops.ErrNotSupported.
func WithTrash(t Trasher) Option {
	return func(f *FS) { f.trash = t }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l logger.Logger) Option {
	return func(f *FS) { f.log = l }
}

// WithChunkSize sets the buffer size for archive streaming.
func WithChunkSize(n int) Option {
	return func(f *FS) {
		if n > 0 {
			f.chunkSize = n
		}
	}
}

// New wraps fs.
func New(fs afero.Fs, opts ...Option) *FS {
	f := &FS{fs: fs, log: logger.NewNopLogger(), chunkSize: DEF_CHUNK_SIZE}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewOS returns an adaptor over the host filesystem.
func NewOS(opts ...Option) *FS {
	return New(afero.NewOsFs(), opts...)
}

// Fs exposes the underlying filesystem.
func (f *FS) Fs() afero.Fs { return f.fs }

func (f *FS) Stat(path string) (warpops.Entry, error) {
	fi, err := f.fs.Stat(path)
	if err != nil {
		return warpops.Entry{}, err
	}
	return entryOf(path, fi), nil
}

func entryOf(path string, fi os.FileInfo) warpops.Entry {
	e := warpops.Entry{Path: path, IsDir: fi.IsDir()}
	if !e.IsDir {
		e.Size = fi.Size()
	}
	return e
}

// ReadDir lists the children of path sorted by name.
func (f *FS) ReadDir(path string) ([]warpops.Entry, error) {
	infos, err := afero.ReadDir(f.fs, path)
	if err != nil {
		return nil, err
	}
	entries := make([]warpops.Entry, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, entryOf(filepath.Join(path, fi.Name()), fi))
	}
	return entries, nil
}

// CopyChunk copies length bytes of src starting at offset to the same
// offset of dst. The destination is created with the source permissions and
// truncated when offset is 0.
func (f *FS) CopyChunk(src, dst string, offset, length int64) (int64, error) {
	in, err := f.fs.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return 0, err
	}
	if fi.IsDir() {
		return 0, &os.PathError{Op: "copy", Path: src, Err: fmt.Errorf("is a directory")}
	}

	flag := os.O_WRONLY | os.O_CREATE
	if offset == 0 {
		flag |= os.O_TRUNC
	}
	out, err := f.fs.OpenFile(dst, flag, fi.Mode().Perm())
	if err != nil {
		return 0, err
	}
	if _, err := out.Seek(offset, io.SeekStart); err != nil {
		out.Close()
		return 0, err
	}
	n, err := io.Copy(out, io.NewSectionReader(in, offset, length))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// ReadChunk reads up to length bytes at offset and discards them, warming
// the page cache for later operations.
func (f *FS) ReadChunk(path string, offset, length int64) (int64, error) {
	in, err := f.fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	return io.Copy(io.Discard, io.NewSectionReader(in, offset, length))
}

// Remove deletes a file or an empty directory. A non-empty directory fails
// with an error matching os.ErrExist on every afero backend.
func (f *FS) Remove(path string) error {
	fi, err := f.fs.Stat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		empty, err := afero.IsEmpty(f.fs, path)
		if err != nil {
			return err
		}
		if !empty {
			return &os.PathError{Op: "remove", Path: path, Err: fmt.Errorf("directory not empty: %w", os.ErrExist)}
		}
	}
	return f.fs.Remove(path)
}

func (f *FS) Trash(path string) error {
	if f.trash == nil {
		return &os.PathError{Op: "trash", Path: path, Err: warpops.ErrNotSupported}
	}
	f.log.Debug("fsadaptor: trashing %s", path)
	return f.trash.Trash(path)
}

// Link creates a symbolic link when the filesystem implements afero.Linker,
// and a hard link only on the OS filesystem.
func (f *FS) Link(src, dst string, kind warpops.LinkKind) error {
	if err := f.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	switch kind {
	case warpops.LinkHard:
		if _, ok := f.fs.(*afero.OsFs); !ok {
			return &os.LinkError{Op: "link", Old: src, New: dst, Err: warpops.ErrNotSupported}
		}
		return os.Link(src, dst)
	default:
		l, ok := f.fs.(afero.Linker)
		if !ok {
			return &os.LinkError{Op: "symlink", Old: src, New: dst, Err: warpops.ErrNotSupported}
		}
		return l.SymlinkIfPossible(src, dst)
	}
}

// Mkdir creates path and its parents. An existing directory is fine; an
// existing file is a conflict.
func (f *FS) Mkdir(path string) error {
	if fi, err := f.fs.Stat(path); err == nil && !fi.IsDir() {
		return &os.PathError{Op: "mkdir", Path: path, Err: os.ErrExist}
	}
	return f.fs.MkdirAll(path, 0o755)
}

// CreateFile creates an empty file, failing when path exists.
func (f *FS) CreateFile(path string) error {
	if err := f.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := f.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	return out.Close()
}

// Rename renames oldpath. Across devices the OS filesystem fails with EXDEV,
// which the engine answers with a copy.
func (f *FS) Rename(oldpath, newpath string) error {
	if err := f.fs.MkdirAll(filepath.Dir(newpath), 0o755); err != nil {
		return err
	}
	return f.fs.Rename(oldpath, newpath)
}

var (
	_ warpops.Adaptor  = (*FS)(nil)
	_ warpops.Archiver = (*FS)(nil)
)
