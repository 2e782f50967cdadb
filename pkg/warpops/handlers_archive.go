package warpops

import (
	"context"
	"path"
	"path/filepath"
	"strings"
)

func archiver(j *Job) (Archiver, error) {
	ar, ok := j.Adaptor().(Archiver)
	if !ok {
		return nil, NewOpError(j.Kind().String(), j.Source(), ErrNotSupported)
	}
	return ar, nil
}

// archiveMember is one file or directory queued for compression.
type archiveMember struct {
	name string
	src  string
	dir  bool
	size int64
}

type compressState struct {
	dst     claim
	members []archiveMember
}

type compressHandler struct{}

func (compressHandler) Estimate(context.Context, Adaptor, Draft) Estimate {
	return UnknownEstimate
}

// Execute walks the sources, then writes every member into one archive.
// An archive is a single stream, so compression is leaf work; a retried
// attempt rewrites the archive from the start without double counting.
func (compressHandler) Execute(j *Job) Outcome {
	ar, err := archiver(j)
	if err != nil {
		return Failed(err)
	}
	a := j.Adaptor()
	st, _ := j.Cursor.(*compressState)
	if st == nil {
		c, err := claimDestination(j, j.Destination(), false)
		if err != nil {
			return Failed(err)
		}
		if c.skip {
			return Done()
		}
		st = &compressState{dst: c}
		var bytes int64
		for _, src := range j.Sources() {
			members, err := walkMembers(j, a, src, filepath.Base(src))
			if err != nil {
				return Failed(err)
			}
			for _, m := range members {
				bytes += m.size
			}
			st.members = append(st.members, members...)
		}
		j.Cursor = st
		j.SetTotal(bytes, int64(len(st.members)))
	}

	w, err := ar.CreateArchive(st.dst.path)
	if err != nil {
		return Failed(NewOpError("compress", st.dst.path, err))
	}
	onChunk := progressReplay(j)
	done := j.Processed().ProcessedItems
	for i, m := range st.members {
		if err := j.Checkpoint(); err != nil {
			w.Close()
			return Failed(err)
		}
		if m.dir {
			err = w.AddDir(m.name)
		} else {
			err = w.AddFile(m.name, m.src, onChunk)
		}
		if err != nil {
			w.Close()
			return Failed(NewOpError("compress", m.src, err))
		}
		if int64(i) >= done {
			j.AddProgress(0, 1)
		}
	}
	if err := w.Close(); err != nil {
		return Failed(NewOpError("compress", st.dst.path, err))
	}
	return Done()
}

// walkMembers lists src recursively as archive members named below prefix.
func walkMembers(j *Job, a Adaptor, src, prefix string) ([]archiveMember, error) {
	if err := j.Checkpoint(); err != nil {
		return nil, err
	}
	e, err := a.Stat(src)
	if err != nil {
		return nil, NewOpError("stat", src, err)
	}
	name := filepath.ToSlash(prefix)
	if !e.IsDir {
		return []archiveMember{{name: name, src: src, size: e.Size}}, nil
	}
	members := []archiveMember{{name: name, src: src, dir: true}}
	entries, err := a.ReadDir(src)
	if err != nil {
		return nil, NewOpError("readdir", src, err)
	}
	for _, c := range entries {
		sub, err := walkMembers(j, a, c.Path, path.Join(name, filepath.Base(c.Path)))
		if err != nil {
			return nil, err
		}
		members = append(members, sub...)
	}
	return members, nil
}

type extractState struct {
	dst  claim
	list *listing
}

type extractHandler struct{}

func (extractHandler) Estimate(_ context.Context, _ Adaptor, d Draft) Estimate {
	if d.Entry == "" {
		return UnknownEstimate
	}
	// entries are sized through hints at fan-out
	return Estimate{Bytes: Unknown, Items: 1}
}

// Execute on an archive lists it and fans out one child per entry. A child
// keeps the archive as its only source and names its member in Entry.
func (extractHandler) Execute(j *Job) Outcome {
	ar, err := archiver(j)
	if err != nil {
		return Failed(err)
	}
	archive := j.Source()
	if j.Entry() != "" {
		return extractEntry(j, ar, archive, j.Entry())
	}
	st, _ := j.Cursor.(*extractState)
	if st == nil {
		// extracting into an existing directory is the common case; entry
		// conflicts are decided one by one
		existing, ok, err := statOrMissing(j.Adaptor(), j.Destination())
		if err != nil {
			return Failed(err)
		}
		c := claim{path: j.Destination(), merge: true}
		if !ok || !existing.IsDir {
			if c, err = claimDestination(j, j.Destination(), true); err != nil {
				return Failed(err)
			}
		}
		if c.skip {
			return Done()
		}
		st = &extractState{dst: c}
		j.Cursor = st
	}
	if st.list == nil {
		entries, err := ar.ListArchive(archive)
		if err != nil {
			return Failed(NewOpError("extract", archive, err))
		}
		for _, e := range entries {
			if !safeEntryName(e.Path) {
				return Failed(Errorf(ErrKindPermission, "extract", archive, "entry %q escapes the destination", e.Path))
			}
		}
		if err := j.Adaptor().Mkdir(st.dst.path); err != nil {
			return Failed(NewOpError("mkdir", st.dst.path, err))
		}
		st.list = &listing{entries: entries}
		if len(entries) == 0 {
			j.AddProgress(0, 1)
			return Done()
		}
	}
	policy := j.OnConflict()
	dst := st.dst.path
	return st.list.batch(j, func(e Entry) Draft {
		hint := &Estimate{Bytes: e.Size, Items: 1}
		if e.IsDir {
			hint.Bytes = 0
		}
		return Draft{
			Kind:        KindExtract,
			Sources:     []string{archive},
			Entry:       e.Path,
			Destination: filepath.Join(dst, filepath.FromSlash(e.Path)),
			OnConflict:  policy,
			Hint:        hint,
		}
	})
}

func extractEntry(j *Job, ar Archiver, archive, entry string) Outcome {
	if strings.HasSuffix(entry, "/") {
		if err := j.Adaptor().Mkdir(j.Destination()); err != nil {
			return Failed(NewOpError("mkdir", j.Destination(), err))
		}
		j.AddProgress(0, 1)
		return Done()
	}
	c, ok := j.Cursor.(*claim)
	if !ok {
		cl, err := claimDestination(j, j.Destination(), false)
		if err != nil {
			return Failed(err)
		}
		c = &cl
		j.Cursor = c
	}
	if c.skip {
		return Done()
	}
	if err := ar.ExtractEntry(archive, entry, c.path, progressReplay(j)); err != nil {
		return Failed(NewOpError("extract", archive+"!"+entry, err))
	}
	j.AddProgress(0, 1)
	return Done()
}

// safeEntryName rejects absolute entry names and names climbing out of the
// extraction root.
func safeEntryName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) || filepath.IsAbs(name) {
		return false
	}
	clean := path.Clean(name)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}
