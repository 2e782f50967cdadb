package fsadaptor

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/afero/zipfs"
	"github.com/warpdl/warpops/pkg/warpops"
)

// openZip opens archive for reading. The returned closer releases the
// underlying file.
func (f *FS) openZip(archive string) (*zip.Reader, io.Closer, error) {
	in, err := f.fs.Open(archive)
	if err != nil {
		return nil, nil, err
	}
	fi, err := in.Stat()
	if err != nil {
		in.Close()
		return nil, nil, err
	}
	// entry names are validated by the extract handler, so an insecure path
	// is not fatal here
	zr, err := zip.NewReader(in, fi.Size())
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		in.Close()
		return nil, nil, fmt.Errorf("read zip %s: %w", archive, err)
	}
	return zr, in, nil
}

// ListArchive returns the entries of a zip archive in archive order.
func (f *FS) ListArchive(archive string) ([]warpops.Entry, error) {
	zr, c, err := f.openZip(archive)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	entries := make([]warpops.Entry, 0, len(zr.File))
	for _, zf := range zr.File {
		dir := zf.FileInfo().IsDir()
		name := zf.Name
		if dir && !strings.HasSuffix(name, "/") {
			name += "/"
		}
		e := warpops.Entry{Path: name, IsDir: dir}
		if !dir {
			e.Size = int64(zf.UncompressedSize64)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ExtractEntry writes one file entry of archive to dst. The entry is read
// through a zipfs view of the archive.
func (f *FS) ExtractEntry(archive, entry, dst string, onChunk func(n int64) error) error {
	zr, c, err := f.openZip(archive)
	if err != nil {
		return err
	}
	defer c.Close()

	in, err := zipfs.New(zr).Open(entry)
	if err != nil {
		return err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return err
	}

	if err := f.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	perm := fi.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := f.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	err = copyChunks(out, in, make([]byte, f.chunkSize), onChunk)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}

// CreateArchive starts a zip archive at dst, replacing any existing file.
func (f *FS) CreateArchive(dst string) (warpops.ArchiveWriter, error) {
	if err := f.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, err
	}
	out, err := f.fs.Create(dst)
	if err != nil {
		return nil, err
	}
	return &zipWriter{fs: f.fs, out: out, zw: zip.NewWriter(out), buf: make([]byte, f.chunkSize)}, nil
}

type zipWriter struct {
	fs     afero.Fs
	out    afero.File
	zw     *zip.Writer
	buf    []byte
	closed bool
}

func (w *zipWriter) AddDir(name string) error {
	_, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:   strings.TrimSuffix(name, "/") + "/",
		Method: zip.Store,
	})
	return err
}

func (w *zipWriter) AddFile(name, src string, onChunk func(n int64) error) error {
	in, err := w.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(fi)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	zf, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	return copyChunks(zf, in, w.buf, onChunk)
}

// Close finishes the central directory and closes the file. Calling it
// again is a no-op.
func (w *zipWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.zw.Close()
	if cerr := w.out.Close(); err == nil {
		err = cerr
	}
	return err
}

// copyChunks copies r to w through buf, reporting every written chunk.
func copyChunks(w io.Writer, r io.Reader, buf []byte, onChunk func(n int64) error) error {
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if onChunk != nil {
				if cerr := onChunk(int64(n)); cerr != nil {
					return cerr
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
