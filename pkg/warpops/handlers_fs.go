package warpops

import (
	"context"
	"path/filepath"
)

// copyFile streams src to dst in ChunkSize pieces, resuming at the offset a
// previous attempt reached.
func copyFile(j *Job, src, dst string, size int64) Outcome {
	a := j.Adaptor()
	offset := j.Processed().ProcessedBytes
	if size == 0 {
		if _, err := a.CopyChunk(src, dst, 0, 0); err != nil {
			return Failed(NewOpError("copy", src, err))
		}
	}
	for offset < size {
		if err := j.Checkpoint(); err != nil {
			return Failed(err)
		}
		n, err := a.CopyChunk(src, dst, offset, min(j.ChunkSize(), size-offset))
		if n > 0 {
			j.AddProgress(n, 0)
			offset += n
		}
		if err != nil {
			return Failed(NewOpError("copy", src, err))
		}
		if n == 0 {
			return Failed(Errorf(ErrKindOther, "copy", src, "source ended at %d of %d bytes", offset, size))
		}
	}
	j.AddProgress(0, 1)
	return Done()
}

type copyState struct {
	src  Entry
	dst  claim
	list *listing
}

type copyHandler struct{}

func (copyHandler) Estimate(_ context.Context, a Adaptor, d Draft) Estimate {
	return statEstimate(a, firstSource(d), true)
}

func (copyHandler) Execute(j *Job) Outcome {
	a := j.Adaptor()
	st, _ := j.Cursor.(*copyState)
	if st == nil {
		src, err := a.Stat(j.Source())
		if err != nil {
			return Failed(NewOpError("stat", j.Source(), err))
		}
		if src.IsDir && within(j.Destination(), j.Source()) {
			return Failed(Errorf(ErrKindOther, "copy", j.Source(), "cannot copy a directory into itself"))
		}
		c, err := claimDestination(j, j.Destination(), src.IsDir)
		if err != nil {
			return Failed(err)
		}
		if c.skip {
			return Done()
		}
		st = &copyState{src: src, dst: c}
		j.Cursor = st
		if !src.IsDir {
			j.SetTotal(src.Size, 1)
		}
	}
	if !st.src.IsDir {
		return copyFile(j, j.Source(), st.dst.path, st.src.Size)
	}
	if st.list == nil {
		if err := a.Mkdir(st.dst.path); err != nil {
			return Failed(NewOpError("mkdir", st.dst.path, err))
		}
		entries, err := a.ReadDir(j.Source())
		if err != nil {
			return Failed(NewOpError("readdir", j.Source(), err))
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
		return Draft{
			Kind:        KindCopy,
			Sources:     []string{e.Path},
			Destination: filepath.Join(dst, filepath.Base(e.Path)),
			OnConflict:  policy,
			Hint:        entryHint(e, true),
		}
	})
}

type moveState struct {
	src      Entry
	dst      claim
	fallback bool
	copied   bool
	list     *listing
}

type moveHandler struct{}

func (moveHandler) Estimate(_ context.Context, a Adaptor, d Draft) Estimate {
	return statEstimate(a, firstSource(d), true)
}

// Execute renames when possible. Across filesystems a file is copied then
// removed, and a directory becomes a container of child moves followed by
// the removal of the emptied source.
func (moveHandler) Execute(j *Job) Outcome {
	a := j.Adaptor()
	src := j.Source()
	st, _ := j.Cursor.(*moveState)
	if st == nil {
		e, err := a.Stat(src)
		if err != nil {
			return Failed(NewOpError("stat", src, err))
		}
		if e.IsDir && within(j.Destination(), src) {
			return Failed(Errorf(ErrKindOther, "move", src, "cannot move a directory into itself"))
		}
		c, err := claimDestination(j, j.Destination(), e.IsDir)
		if err != nil {
			return Failed(err)
		}
		if c.skip {
			return Done()
		}
		st = &moveState{src: e, dst: c, fallback: c.merge}
		j.Cursor = st
		if !e.IsDir {
			j.SetTotal(e.Size, 1)
		}
	}

	if !st.fallback {
		if err := j.Checkpoint(); err != nil {
			return Failed(err)
		}
		if st.dst.replace {
			if err := removeExisting(a, st.dst.path); err != nil {
				return Failed(err)
			}
		}
		err := a.Rename(src, st.dst.path)
		if err == nil {
			j.AddProgress(st.src.Size*boolInt(!st.src.IsDir), 1)
			return Done()
		}
		if !needsCopyFallback(err) {
			return Failed(NewOpError("rename", src, err))
		}
		j.Logger().Debug("move %s: rename not possible, copying instead", src)
		st.fallback = true
	}

	if !st.src.IsDir {
		if !st.copied {
			out := copyFile(j, src, st.dst.path, st.src.Size)
			if out.kind != outcomeDone {
				return out
			}
			st.copied = true
		}
		if err := a.Remove(src); err != nil {
			return Failed(NewOpError("remove", src, err))
		}
		return Done()
	}

	if st.list == nil {
		if err := a.Mkdir(st.dst.path); err != nil {
			return Failed(NewOpError("mkdir", st.dst.path, err))
		}
		entries, err := a.ReadDir(src)
		if err != nil {
			return Failed(NewOpError("readdir", src, err))
		}
		st.list = &listing{entries: entries}
		if len(entries) == 0 {
			if err := a.Remove(src); err != nil {
				return Failed(NewOpError("remove", src, err))
			}
			j.AddProgress(0, 1)
			return Done()
		}
		j.Then(Draft{Kind: KindDelete, Sources: []string{src}, EmptyOnly: true, Hint: &Estimate{Bytes: 0, Items: 1}})
	}
	policy := j.OnConflict()
	dst := st.dst.path
	return st.list.batch(j, func(e Entry) Draft {
		return Draft{
			Kind:        KindMove,
			Sources:     []string{e.Path},
			Destination: filepath.Join(dst, filepath.Base(e.Path)),
			OnConflict:  policy,
			Hint:        entryHint(e, true),
		}
	})
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

type deleteHandler struct{}

func (deleteHandler) Estimate(_ context.Context, a Adaptor, d Draft) Estimate {
	return statEstimate(a, firstSource(d), false)
}

// Execute removes a file or empty directory directly. A non-empty directory
// fans out into child deletes and removes itself once they all succeeded.
func (deleteHandler) Execute(j *Job) Outcome {
	a := j.Adaptor()
	path := j.Source()
	list, _ := j.Cursor.(*listing)
	if list == nil {
		if err := j.Checkpoint(); err != nil {
			return Failed(err)
		}
		e, err := a.Stat(path)
		if err != nil {
			return Failed(NewOpError("stat", path, err))
		}
		if e.IsDir && !j.EmptyOnly() {
			entries, err := a.ReadDir(path)
			if err != nil {
				return Failed(NewOpError("readdir", path, err))
			}
			if len(entries) > 0 {
				list = &listing{entries: entries}
				j.Cursor = list
				j.Then(Draft{Kind: KindDelete, Sources: []string{path}, EmptyOnly: true, Hint: &Estimate{Bytes: 0, Items: 1}})
			}
		}
		if list == nil {
			j.SetTotal(0, 1)
			if err := a.Remove(path); err != nil {
				return Failed(NewOpError("remove", path, err))
			}
			j.AddProgress(0, 1)
			return Done()
		}
	}
	return list.batch(j, func(e Entry) Draft {
		return Draft{Kind: KindDelete, Sources: []string{e.Path}, Hint: entryHint(e, false)}
	})
}

type trashHandler struct{}

func (trashHandler) Estimate(context.Context, Adaptor, Draft) Estimate {
	return Estimate{Bytes: 0, Items: 1}
}

func (trashHandler) Execute(j *Job) Outcome {
	if err := j.Checkpoint(); err != nil {
		return Failed(err)
	}
	if err := j.Adaptor().Trash(j.Source()); err != nil {
		return Failed(NewOpError("trash", j.Source(), err))
	}
	j.AddProgress(0, 1)
	return Done()
}

type linkHandler struct {
	kind LinkKind
}

func (linkHandler) Estimate(ctx context.Context, a Adaptor, d Draft) Estimate {
	return leafEstimate(ctx, a, d)
}

func (h linkHandler) Execute(j *Job) Outcome {
	a := j.Adaptor()
	c, err := claimDestination(j, j.Destination(), false)
	if err != nil {
		return Failed(err)
	}
	if c.skip {
		return Done()
	}
	if c.replace {
		if err := removeExisting(a, c.path); err != nil {
			return Failed(err)
		}
	}
	if err := a.Link(j.Source(), c.path, h.kind); err != nil {
		return Failed(NewOpError(h.kind.String()+" link", c.path, err))
	}
	j.AddProgress(0, 1)
	return Done()
}

type createHandler struct {
	dir bool
}

func (createHandler) Estimate(ctx context.Context, a Adaptor, d Draft) Estimate {
	return leafEstimate(ctx, a, d)
}

func (h createHandler) Execute(j *Job) Outcome {
	a := j.Adaptor()
	c, err := claimDestination(j, j.Destination(), h.dir)
	if err != nil {
		return Failed(err)
	}
	switch {
	case c.skip, c.merge:
		return Done()
	case c.replace:
		if err := removeExisting(a, c.path); err != nil {
			return Failed(err)
		}
	}
	if h.dir {
		err = a.Mkdir(c.path)
	} else {
		err = a.CreateFile(c.path)
	}
	if err != nil {
		return Failed(NewOpError("create", c.path, err))
	}
	j.AddProgress(0, 1)
	return Done()
}

type renameHandler struct{}

func (renameHandler) Estimate(ctx context.Context, a Adaptor, d Draft) Estimate {
	return leafEstimate(ctx, a, d)
}

func (renameHandler) Execute(j *Job) Outcome {
	a := j.Adaptor()
	src, err := a.Stat(j.Source())
	if err != nil {
		return Failed(NewOpError("stat", j.Source(), err))
	}
	c, err := claimDestination(j, j.Destination(), src.IsDir)
	if err != nil {
		return Failed(err)
	}
	if c.skip {
		return Done()
	}
	if c.merge {
		return Failed(Errorf(ErrKindConflict, "rename", c.path, "destination directory exists"))
	}
	if c.replace {
		if err := removeExisting(a, c.path); err != nil {
			return Failed(err)
		}
	}
	if err := a.Rename(j.Source(), c.path); err != nil {
		return Failed(NewOpError("rename", j.Source(), err))
	}
	j.AddProgress(0, 1)
	return Done()
}

type preloadHandler struct{}

func (preloadHandler) Estimate(_ context.Context, a Adaptor, d Draft) Estimate {
	return statEstimate(a, firstSource(d), true)
}

// Execute reads a file through so later operations hit a warm cache;
// directories fan out into child preloads.
func (preloadHandler) Execute(j *Job) Outcome {
	a := j.Adaptor()
	path := j.Source()
	list, _ := j.Cursor.(*listing)
	if list == nil {
		e, err := a.Stat(path)
		if err != nil {
			return Failed(NewOpError("stat", path, err))
		}
		if !e.IsDir {
			j.SetTotal(e.Size, 1)
			offset := j.Processed().ProcessedBytes
			for offset < e.Size {
				if err := j.Checkpoint(); err != nil {
					return Failed(err)
				}
				n, err := a.ReadChunk(path, offset, min(j.ChunkSize(), e.Size-offset))
				if n > 0 {
					j.AddProgress(n, 0)
					offset += n
				}
				if err != nil {
					return Failed(NewOpError("read", path, err))
				}
				if n == 0 {
					break
				}
			}
			j.AddProgress(0, 1)
			return Done()
		}
		entries, err := a.ReadDir(path)
		if err != nil {
			return Failed(NewOpError("readdir", path, err))
		}
		if len(entries) == 0 {
			j.AddProgress(0, 1)
			return Done()
		}
		list = &listing{entries: entries}
		j.Cursor = list
	}
	return list.batch(j, func(e Entry) Draft {
		return Draft{Kind: KindPreload, Sources: []string{e.Path}, Hint: entryHint(e, true)}
	})
}
