package warpops

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// defaultHandlers is the capability table. Adding a kind means adding a
// constant in kind.go and an entry here.
func defaultHandlers() map[Kind]Handler {
	return map[Kind]Handler{
		KindCopy:       copyHandler{},
		KindMove:       moveHandler{},
		KindDelete:     deleteHandler{},
		KindTrash:      trashHandler{},
		KindLink:       linkHandler{kind: LinkSymbolic},
		KindHardlink:   linkHandler{kind: LinkHard},
		KindCreateFile: createHandler{dir: false},
		KindCreateDir:  createHandler{dir: true},
		KindRename:     renameHandler{},
		KindCompress:   compressHandler{},
		KindExtract:    extractHandler{},
		KindPreload:    preloadHandler{},
	}
}

// statOrMissing stats path, reporting a missing path as ok=false rather
// than an error.
func statOrMissing(a Adaptor, path string) (e Entry, ok bool, err error) {
	e, err = a.Stat(path)
	if err == nil {
		return e, true, nil
	}
	if KindOf(err) == ErrKindNotFound {
		return Entry{}, false, nil
	}
	return Entry{}, false, NewOpError("stat", path, err)
}

// claim is the outcome of applying a conflict policy to a destination.
type claim struct {
	path string
	// replace is set when an existing entry of the same type must be
	// overwritten.
	replace bool
	// merge is set when an existing directory receives a directory's
	// contents.
	merge bool
	skip  bool
}

// claimDestination checks dst against the task's conflict policy. A missing
// destination gets its parent directories created.
func claimDestination(j *Job, dst string, srcIsDir bool) (claim, error) {
	a := j.Adaptor()
	existing, ok, err := statOrMissing(a, dst)
	if err != nil {
		return claim{}, err
	}
	if !ok {
		parent := filepath.Dir(dst)
		if err := a.Mkdir(parent); err != nil {
			return claim{}, NewOpError("mkdir", parent, err)
		}
		return claim{path: dst}, nil
	}
	switch j.OnConflict() {
	case ConflictSkip:
		j.Logger().Info("skipping %s: destination exists", dst)
		return claim{skip: true}, nil
	case ConflictRename:
		p, err := uniqueName(a, dst)
		if err != nil {
			return claim{}, err
		}
		return claim{path: p}, nil
	case ConflictOverwrite:
		if existing.IsDir != srcIsDir {
			return claim{}, Errorf(ErrKindConflict, "overwrite", dst, "cannot replace a %s with a %s", entryType(existing.IsDir), entryType(srcIsDir))
		}
		if srcIsDir {
			return claim{path: dst, merge: true}, nil
		}
		return claim{path: dst, replace: true}, nil
	default:
		return claim{}, Errorf(ErrKindConflict, j.Kind().String(), dst, "destination exists")
	}
}

func entryType(dir bool) string {
	if dir {
		return "directory"
	}
	return "file"
}

// uniqueName returns the first "name (n).ext" next to path that does not
// exist yet.
func uniqueName(a Adaptor, path string) (string, error) {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem, ext = base, ""
	}
	for i := 1; i < 10000; i++ {
		cand := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		_, ok, err := statOrMissing(a, cand)
		if err != nil {
			return "", err
		}
		if !ok {
			return cand, nil
		}
	}
	return "", Errorf(ErrKindConflict, "rename", path, "no free name")
}

// removeExisting deletes a destination that is being replaced.
func removeExisting(a Adaptor, path string) error {
	if err := a.Remove(path); err != nil && KindOf(err) != ErrKindNotFound {
		return NewOpError("remove", path, err)
	}
	return nil
}

// within reports whether path is root or lies below it.
func within(path, root string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// listing is a directory enumeration cursor emitting children in batches.
type listing struct {
	entries []Entry
	next    int
}

func (l *listing) done() bool { return l.next >= len(l.entries) }

// batch emits the next fanOutBatch children built by mk.
func (l *listing) batch(j *Job, mk func(Entry) Draft) Outcome {
	if err := j.Checkpoint(); err != nil {
		return Failed(err)
	}
	end := min(l.next+fanOutBatch, len(l.entries))
	drafts := make([]Draft, 0, end-l.next)
	for _, e := range l.entries[l.next:end] {
		drafts = append(drafts, mk(e))
	}
	l.next = end
	return FanOut(!l.done(), drafts...)
}

// entryHint sizes a child from its directory entry without further I/O.
// Directories stay unknown until they are listed themselves.
func entryHint(e Entry, withBytes bool) *Estimate {
	if e.IsDir {
		return nil
	}
	if !withBytes {
		return &Estimate{Bytes: 0, Items: 1}
	}
	return &Estimate{Bytes: e.Size, Items: 1}
}

// statEstimate is the common Estimate: the size of a file, unknown for a
// directory.
func statEstimate(a Adaptor, path string, withBytes bool) Estimate {
	e, err := a.Stat(path)
	if err != nil {
		return UnknownEstimate
	}
	if e.IsDir {
		return UnknownEstimate
	}
	if !withBytes {
		return Estimate{Bytes: 0, Items: 1}
	}
	return Estimate{Bytes: e.Size, Items: 1}
}

func firstSource(d Draft) string {
	if len(d.Sources) == 0 {
		return ""
	}
	return d.Sources[0]
}

// leafEstimate is used by kinds that do one metadata operation.
func leafEstimate(context.Context, Adaptor, Draft) Estimate {
	return Estimate{Bytes: 0, Items: 1}
}

// progressReplay reports streamed bytes to the job while skipping bytes
// already reported by an earlier attempt, so a restarted stream never makes
// progress go backwards. The returned callback also checkpoints.
func progressReplay(j *Job) func(n int64) error {
	base := j.Processed().ProcessedBytes
	var seen int64
	return func(n int64) error {
		prev := seen
		seen += n
		if seen > base {
			j.AddProgress(seen-max(prev, base), 0)
		}
		return j.Checkpoint()
	}
}
