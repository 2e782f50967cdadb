package warpops

// Entry describes a filesystem object as seen by an Adaptor.
type Entry struct {
	Path  string
	Size  int64
	IsDir bool
}

// Adaptor performs the actual filesystem I/O. Errors should be classifiable
// by KindOf, or be *OpError values.
type Adaptor interface {
	Stat(path string) (Entry, error)
	// ReadDir lists the direct children of a directory, sorted by name.
	ReadDir(path string) ([]Entry, error)
	// CopyChunk copies up to length bytes of src starting at offset into dst
	// at the same offset, creating dst when needed and truncating it when
	// offset is 0. It returns the number of bytes copied; fewer than length
	// means src ended.
	CopyChunk(src, dst string, offset, length int64) (int64, error)
	// ReadChunk reads up to length bytes of path at offset and discards them.
	ReadChunk(path string, offset, length int64) (int64, error)
	// Remove deletes a file or an empty directory.
	Remove(path string) error
	// Trash moves path into the trash bin.
	Trash(path string) error
	Link(src, dst string, kind LinkKind) error
	// Mkdir creates a directory and any missing parents. It succeeds when
	// the directory already exists.
	Mkdir(path string) error
	// CreateFile creates an empty file and fails when path exists.
	CreateFile(path string) error
	Rename(oldpath, newpath string) error
}

// Archiver is implemented by adaptors that can read and write archives.
type Archiver interface {
	// ListArchive returns the entries of an archive. Entry paths are
	// slash-separated and relative to the archive root; directory entries
	// end in a slash.
	ListArchive(archive string) ([]Entry, error)
	// ExtractEntry writes one archive entry to dst, creating missing
	// parent directories. onChunk is called after
	// every chunk written; a non-nil return aborts the extraction with that
	// error.
	ExtractEntry(archive, entry, dst string, onChunk func(n int64) error) error
	CreateArchive(dst string) (ArchiveWriter, error)
}

// ArchiveWriter appends entries to an archive being created.
type ArchiveWriter interface {
	AddDir(name string) error
	// AddFile streams src into the archive under name, calling onChunk like
	// Archiver.ExtractEntry.
	AddFile(name, src string, onChunk func(n int64) error) error
	Close() error
}
