package warpops

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeFS is a scripted in-memory Adaptor. Failures can be queued per
// operation and path, and copies of a path can be held until released.
type fakeFS struct {
	mu       sync.Mutex
	files    map[string][]byte
	dirs     map[string]bool
	links    map[string]string
	trashed  []string
	failures map[string][]error
	holds    map[string]*hold
	calls    map[string]int

	noRename bool

	active    int
	maxActive int
}

type hold struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newFakeFS() *fakeFS {
	return &fakeFS{
		files:    make(map[string][]byte),
		dirs:     map[string]bool{"/": true},
		links:    make(map[string]string),
		failures: make(map[string][]error),
		holds:    make(map[string]*hold),
		calls:    make(map[string]int),
	}
}

func (f *fakeFS) addDir(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mkdirAllLocked(filepath.Clean(p))
}

func (f *fakeFS) addFile(p string, size int) {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p = filepath.Clean(p)
	f.mkdirAllLocked(filepath.Dir(p))
	f.files[p] = data
}

func (f *fakeFS) mkdirAllLocked(p string) {
	for d := p; ; d = filepath.Dir(d) {
		f.dirs[d] = true
		if d == "/" || d == "." {
			return
		}
	}
}

// fail queues errors returned by the next calls of op on path.
func (f *fakeFS) fail(op, path string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := op + ":" + filepath.Clean(path)
	f.failures[key] = append(f.failures[key], errs...)
}

// holdCopy blocks CopyChunk calls on src until the returned hold is
// released.
func (f *fakeFS) holdCopy(src string) *hold {
	h := &hold{entered: make(chan struct{}, 64), release: make(chan struct{})}
	f.mu.Lock()
	f.holds[filepath.Clean(src)] = h
	f.mu.Unlock()
	return h
}

func (h *hold) Release() { h.once.Do(func() { close(h.release) }) }

func (f *fakeFS) takeFailure(op, path string) error {
	key := op + ":" + filepath.Clean(path)
	f.calls[key]++
	q := f.failures[key]
	if len(q) == 0 {
		return nil
	}
	f.failures[key] = q[1:]
	return q[0]
}

func (f *fakeFS) callCount(op, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op+":"+filepath.Clean(path)]
}

func (f *fakeFS) exists(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = filepath.Clean(p)
	_, file := f.files[p]
	return file || f.dirs[p]
}

func (f *fakeFS) content(p string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.files[filepath.Clean(p)])
}

func (f *fakeFS) peakConcurrency() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

func notExist(op, p string) error {
	return &os.PathError{Op: op, Path: p, Err: os.ErrNotExist}
}

func (f *fakeFS) Stat(p string) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = filepath.Clean(p)
	if err := f.takeFailure("stat", p); err != nil {
		return Entry{}, err
	}
	if data, ok := f.files[p]; ok {
		return Entry{Path: p, Size: int64(len(data))}, nil
	}
	if f.dirs[p] {
		return Entry{Path: p, IsDir: true}, nil
	}
	return Entry{}, notExist("stat", p)
}

func (f *fakeFS) childrenLocked(p string) []Entry {
	var out []Entry
	for name, data := range f.files {
		if filepath.Dir(name) == p {
			out = append(out, Entry{Path: name, Size: int64(len(data))})
		}
	}
	for name := range f.dirs {
		if name != p && filepath.Dir(name) == p {
			out = append(out, Entry{Path: name, IsDir: true})
		}
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Path, b.Path) })
	return out
}

func (f *fakeFS) ReadDir(p string) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = filepath.Clean(p)
	if err := f.takeFailure("readdir", p); err != nil {
		return nil, err
	}
	if !f.dirs[p] {
		return nil, notExist("readdir", p)
	}
	return f.childrenLocked(p), nil
}

func (f *fakeFS) CopyChunk(src, dst string, offset, length int64) (int64, error) {
	src, dst = filepath.Clean(src), filepath.Clean(dst)
	f.mu.Lock()
	f.active++
	f.maxActive = max(f.maxActive, f.active)
	h := f.holds[src]
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()
	if h != nil {
		h.entered <- struct{}{}
		<-h.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("copy", src); err != nil {
		return 0, err
	}
	data, ok := f.files[src]
	if !ok {
		return 0, notExist("copy", src)
	}
	if !f.dirs[filepath.Dir(dst)] {
		return 0, notExist("copy", dst)
	}
	end := min(offset+length, int64(len(data)))
	var chunk []byte
	if offset < end {
		chunk = data[offset:end]
	}
	out := f.files[dst]
	if offset == 0 {
		out = nil
	}
	if int64(len(out)) < offset {
		out = append(out, make([]byte, offset-int64(len(out)))...)
	}
	out = append(out[:offset], chunk...)
	f.files[dst] = out
	return int64(len(chunk)), nil
}

func (f *fakeFS) ReadChunk(p string, offset, length int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = filepath.Clean(p)
	if err := f.takeFailure("read", p); err != nil {
		return 0, err
	}
	data, ok := f.files[p]
	if !ok {
		return 0, notExist("read", p)
	}
	return max(min(offset+length, int64(len(data)))-offset, 0), nil
}

func (f *fakeFS) Remove(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = filepath.Clean(p)
	if err := f.takeFailure("remove", p); err != nil {
		return err
	}
	if _, ok := f.files[p]; ok {
		delete(f.files, p)
		return nil
	}
	if f.dirs[p] {
		if len(f.childrenLocked(p)) > 0 {
			return &os.PathError{Op: "remove", Path: p, Err: os.ErrExist}
		}
		delete(f.dirs, p)
		return nil
	}
	return notExist("remove", p)
}

func (f *fakeFS) Trash(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = filepath.Clean(p)
	if err := f.takeFailure("trash", p); err != nil {
		return err
	}
	if _, ok := f.files[p]; !ok && !f.dirs[p] {
		return notExist("trash", p)
	}
	delete(f.files, p)
	delete(f.dirs, p)
	f.trashed = append(f.trashed, p)
	return nil
}

func (f *fakeFS) Link(src, dst string, kind LinkKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	dst = filepath.Clean(dst)
	if err := f.takeFailure("link", dst); err != nil {
		return err
	}
	if _, ok := f.files[dst]; ok || f.dirs[dst] {
		return &os.PathError{Op: "link", Path: dst, Err: os.ErrExist}
	}
	f.links[dst] = kind.String() + ":" + src
	f.files[dst] = nil
	return nil
}

func (f *fakeFS) Mkdir(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = filepath.Clean(p)
	if err := f.takeFailure("mkdir", p); err != nil {
		return err
	}
	if _, ok := f.files[p]; ok {
		return &os.PathError{Op: "mkdir", Path: p, Err: os.ErrExist}
	}
	f.mkdirAllLocked(p)
	return nil
}

func (f *fakeFS) CreateFile(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = filepath.Clean(p)
	if _, ok := f.files[p]; ok || f.dirs[p] {
		return &os.PathError{Op: "create", Path: p, Err: os.ErrExist}
	}
	f.mkdirAllLocked(filepath.Dir(p))
	f.files[p] = []byte{}
	return nil
}

func (f *fakeFS) Rename(oldpath, newpath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	oldpath, newpath = filepath.Clean(oldpath), filepath.Clean(newpath)
	if err := f.takeFailure("rename", oldpath); err != nil {
		return err
	}
	if f.noRename {
		return ErrNotSupported
	}
	if data, ok := f.files[oldpath]; ok {
		delete(f.files, oldpath)
		f.mkdirAllLocked(filepath.Dir(newpath))
		f.files[newpath] = data
		return nil
	}
	if !f.dirs[oldpath] {
		return notExist("rename", oldpath)
	}
	prefix := oldpath + "/"
	for name, data := range f.files {
		if strings.HasPrefix(name, prefix) {
			delete(f.files, name)
			f.files[newpath+"/"+strings.TrimPrefix(name, prefix)] = data
		}
	}
	for name := range f.dirs {
		if name == oldpath || strings.HasPrefix(name, prefix) {
			delete(f.dirs, name)
			f.dirs[newpath+strings.TrimPrefix(name, oldpath)] = true
		}
	}
	return nil
}

// recorder is a Notifier keeping every event.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *recorder) ofType(typ string) []Event {
	var out []Event
	for _, ev := range r.all() {
		if ev.EventType() == typ {
			out = append(out, ev)
		}
	}
	return out
}

// testConfig is DefaultConfig with fast retries and no throttling.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond
	cfg.EmitInterval = 0
	cfg.Retention = 0
	return cfg
}

func newTestEngine(t *testing.T, fs Adaptor, cfg Config, opts ...Option) (*Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts = append([]Option{WithNotifier(rec)}, opts...)
	e, err := New(context.Background(), cfg, fs, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e, rec
}

func waitGroup(t *testing.T, e *Engine, gid GroupID) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := e.Wait(ctx, gid)
	if err != nil {
		t.Fatalf("Wait(%s): %v (snapshot %+v)", gid, err, snap)
	}
	return snap
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitEntered(t *testing.T, h *hold) {
	t.Helper()
	select {
	case <-h.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a held copy to start")
	}
}

func mustSubmit(t *testing.T, e *Engine, req Request) (TaskID, GroupID) {
	t.Helper()
	id, gid, err := e.Submit(req)
	if err != nil {
		t.Fatalf("Submit(%+v): %v", req, err)
	}
	return id, gid
}
