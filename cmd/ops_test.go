package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/warpdl/warpops/pkg/warpops"
)

func specByName(t *testing.T, name string) opSpec {
	t.Helper()
	for _, s := range opSpecs {
		if s.name == name {
			return s
		}
	}
	if name == trashSpec.name {
		return trashSpec
	}
	t.Fatalf("no op %q", name)
	return opSpec{}
}

func TestBuildRequests(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	abs := func(p string) string { return filepath.Join(cwd, p) }
	o := &opOptions{Priority: 3, OnConflict: warpops.ConflictRename}

	tests := []struct {
		op      string
		args    []string
		wantErr bool
		want    []warpops.Request
	}{
		{op: "copy", args: []string{"a", "b", "dst"}, want: []warpops.Request{
			{Kind: warpops.KindCopy, Sources: []string{abs("a"), abs("b")}, Destination: abs("dst")},
		}},
		{op: "delete", args: []string{"x", "/tmp/y"}, want: []warpops.Request{
			{Kind: warpops.KindDelete, Sources: []string{abs("x"), "/tmp/y"}},
		}},
		{op: "trash", args: []string{"x"}, want: []warpops.Request{
			{Kind: warpops.KindTrash, Sources: []string{abs("x")}},
		}},
		{op: "mkdir", args: []string{"d1", "d2"}, want: []warpops.Request{
			{Kind: warpops.KindCreateDir, Destination: abs("d1")},
			{Kind: warpops.KindCreateDir, Destination: abs("d2")},
		}},
		{op: "compress", args: []string{"src", "README", "out.zip"}, want: []warpops.Request{
			{Kind: warpops.KindCompress, Sources: []string{abs("src"), abs("README")}, Destination: abs("out.zip")},
		}},
		{op: "copy", args: []string{"only"}, wantErr: true},
		{op: "touch", args: nil, wantErr: true},
		{op: "rename", args: []string{"a", "b", "c"}, wantErr: true},
		{op: "extract", args: []string{"a.zip", "b.zip", "out"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.op+" "+strings.Join(tt.args, " "), func(t *testing.T) {
			got, err := buildRequests(specByName(t, tt.op), tt.args, o, "g1")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildRequests: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d requests, want %d", len(got), len(tt.want))
			}
			for i, w := range tt.want {
				g := got[i]
				if g.Kind != w.Kind || g.Destination != w.Destination || strings.Join(g.Sources, ",") != strings.Join(w.Sources, ",") {
					t.Errorf("request %d = %+v, want %+v", i, g, w)
				}
				if g.Group != "g1" || g.Priority != 3 || g.OnConflict != warpops.ConflictRename {
					t.Errorf("request %d lost its options: %+v", i, g)
				}
			}
		})
	}
}

func TestOpSpecsAreValidKinds(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range append(opSpecs, trashSpec) {
		if seen[s.name] {
			t.Fatalf("duplicate command %s", s.name)
		}
		seen[s.name] = true
		if _, err := warpops.ParseKind(s.kind.String()); err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
		if s.argsUsage() == "" {
			t.Fatalf("%s has no usage", s.name)
		}
	}
	if len(seen) != 12 {
		t.Fatalf("expected a command per kind, got %d", len(seen))
	}
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 << 20, "5.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := humanBytes(tt.n); got != tt.want {
			t.Errorf("humanBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestPrintSummary(t *testing.T) {
	var b strings.Builder
	printSummary(&b, "copy", warpops.Snapshot{
		Succeeded: 2,
		Failed:    1,
		Progress:  warpops.Progress{ProcessedBytes: 2048},
		Failures: []warpops.Failure{{
			Kind: warpops.KindCopy, Path: "/x", Error: warpops.ErrKindNotFound, Message: "gone",
		}},
	})
	out := b.String()
	assertContains(t, out, "copy: 2 succeeded, 1 failed, 0 canceled (2.0 KiB)")
	assertContains(t, out, "copy /x: not_found: gone")

	b.Reset()
	printSummary(&b, "copy", warpops.Snapshot{
		Succeeded: 1,
		Failed:    1,
		Resolved:  1,
		Failures: []warpops.Failure{{
			Kind: warpops.KindCopy, Path: "/y", Error: warpops.ErrKindConflict, Message: "exists", Resolution: warpops.ConflictRename,
		}},
	})
	assertContains(t, b.String(), "copy /y: exists, resolved as rename")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestLocalCopyAndMove(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "a.txt"), "alpha")
	writeFile(t, filepath.Join(dir, "src", "sub", "b.txt"), "beta")

	out, code := runApp(t, "copy", "-q", filepath.Join(dir, "src"), filepath.Join(dir, "copy"))
	if code != 0 {
		t.Fatalf("copy exited %d:\n%s", code, out)
	}
	assertContains(t, out, "copy: ")
	assertContains(t, out, "0 failed")
	if got := readFile(t, filepath.Join(dir, "copy", "sub", "b.txt")); got != "beta" {
		t.Fatalf("copied %q", got)
	}

	out, code = runApp(t, "mv", "-q", filepath.Join(dir, "copy"), filepath.Join(dir, "moved"))
	if code != 0 {
		t.Fatalf("move exited %d:\n%s", code, out)
	}
	if _, err := os.Stat(filepath.Join(dir, "copy")); !os.IsNotExist(err) {
		t.Fatalf("move left the source: %v", err)
	}
	if got := readFile(t, filepath.Join(dir, "moved", "a.txt")); got != "alpha" {
		t.Fatalf("moved %q", got)
	}
}

func TestLocalFailureExitCode(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	out, code := runApp(t, "delete", "-q", filepath.Join(dir, "missing"))
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d:\n%s", code, out)
	}
	assertContains(t, out, "1 failed")
	assertContains(t, out, "not_found")
}

func TestLocalConflictPolicy(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	src, dst := filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt")
	writeFile(t, src, "new")
	writeFile(t, dst, "old")

	out, code := runApp(t, "cp", "-q", "--on-conflict", "skip", src, dst)
	if code != 0 {
		t.Fatalf("skip exited %d:\n%s", code, out)
	}
	if got := readFile(t, dst); got != "old" {
		t.Fatalf("skip overwrote the destination: %q", got)
	}

	out, code = runApp(t, "cp", "-q", "--on-conflict", "overwrite", src, dst)
	if code != 0 {
		t.Fatalf("overwrite exited %d:\n%s", code, out)
	}
	if got := readFile(t, dst); got != "new" {
		t.Fatalf("destination not overwritten: %q", got)
	}
}

func TestLocalConflictAnswered(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	src, dst := filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt")
	writeFile(t, src, "new")
	writeFile(t, dst, "old")
	old := promptInput
	promptInput = strings.NewReader("o\n")
	defer func() { promptInput = old }()

	out, code := runApp(t, "cp", src, dst)
	if code != 0 {
		t.Fatalf("answered conflict exited %d:\n%s", code, out)
	}
	if got := readFile(t, dst); got != "new" {
		t.Fatalf("destination not overwritten: %q", got)
	}
	assertContains(t, out, "resolved as overwrite")
}

func TestFailedUnresolved(t *testing.T) {
	tests := []struct {
		name string
		snap warpops.Snapshot
		want bool
	}{
		{name: "clean", snap: warpops.Snapshot{Succeeded: 2}},
		{name: "failure", snap: warpops.Snapshot{Failed: 1}, want: true},
		{name: "resolved conflict", snap: warpops.Snapshot{Succeeded: 1, Failed: 1, Resolved: 1}},
		{name: "resolved and failed", snap: warpops.Snapshot{Failed: 2, Resolved: 1}, want: true},
	}
	for _, tt := range tests {
		if got := failedUnresolved(tt.snap); got != tt.want {
			t.Errorf("%s: failedUnresolved = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLocalCreateCommands(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	if out, code := runApp(t, "mkdir", "-q", filepath.Join(dir, "d1"), filepath.Join(dir, "d2")); code != 0 {
		t.Fatalf("mkdir exited %d:\n%s", code, out)
	}
	if out, code := runApp(t, "touch", "-q", filepath.Join(dir, "d1", "f")); code != 0 {
		t.Fatalf("touch exited %d:\n%s", code, out)
	}
	for _, p := range []string{"d1", "d2", "d1/f"} {
		if _, err := os.Stat(filepath.Join(dir, p)); err != nil {
			t.Fatalf("%s not created: %v", p, err)
		}
	}
}

func TestLocalCompressExtract(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "tree", "x.txt"), "xx")
	writeFile(t, filepath.Join(dir, "tree", "y", "z.txt"), "zzz")
	archive := filepath.Join(dir, "tree.zip")

	if out, code := runApp(t, "zip", "-q", filepath.Join(dir, "tree"), archive); code != 0 {
		t.Fatalf("compress exited %d:\n%s", code, out)
	}
	if out, code := runApp(t, "unzip", "-q", archive, filepath.Join(dir, "out")); code != 0 {
		t.Fatalf("extract exited %d:\n%s", code, out)
	}
	if got := readFile(t, filepath.Join(dir, "out", "tree", "y", "z.txt")); got != "zzz" {
		t.Fatalf("extracted %q", got)
	}
}

func TestOpUsageErrors(t *testing.T) {
	isolate(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing destination", []string{"copy", "a"}, "copy needs a source and a destination"},
		{"bad policy", []string{"copy", "--on-conflict", "maybe", "a", "b"}, "conflict policy"},
		{"detach without remote", []string{"copy", "--detach", "a", "b"}, "--detach requires --remote"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := runApp(t, tt.args...)
			assertContains(t, out, tt.want)
		})
	}
}
