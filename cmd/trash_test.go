package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/warpdl/warpops/internal/fsadaptor"
	"github.com/warpdl/warpops/internal/trash"
)

func TestPrintTrash(t *testing.T) {
	var b strings.Builder
	printTrash(&b, nil)
	assertContains(t, b.String(), "the trash is empty")

	b.Reset()
	printTrash(&b, []trash.Item{
		{ID: "id-1", OriginalPath: "/home/me/a.txt", Size: 2048, TrashedAt: time.Now()},
		{ID: "id-2", OriginalPath: "/home/me/dir", IsDir: true},
	})
	out := b.String()
	assertContains(t, out, "id-1")
	assertContains(t, out, "/home/me/a.txt")
	assertContains(t, out, "2.0 KiB")
	assertContains(t, out, "0 B/")
}

func TestLocalTrashAndRestore(t *testing.T) {
	cfg := isolate(t)
	dir := t.TempDir()
	victim := filepath.Join(dir, "victim.txt")
	writeFile(t, victim, "bye")

	out, code := runApp(t, "trash", "-q", victim)
	if code != 0 {
		t.Fatalf("trash exited %d:\n%s", code, out)
	}
	if _, err := os.Stat(victim); !os.IsNotExist(err) {
		t.Fatalf("file still in place: %v", err)
	}

	out, _ = runApp(t, "trash", "list")
	assertContains(t, out, victim)

	bin, err := trash.Open(fsadaptor.NewOS().Fs(), filepath.Join(cfg, "trash"), filepath.Join(cfg, "trash", "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	items, err := bin.List(context.Background())
	bin.Close()
	if err != nil || len(items) != 1 {
		t.Fatalf("List = %+v, %v", items, err)
	}

	out, _ = runApp(t, "trash", "restore", items[0].ID)
	assertContains(t, out, "Restored "+victim)
	if got := readFile(t, victim); got != "bye" {
		t.Fatalf("restored %q", got)
	}

	out, _ = runApp(t, "trash", "restore", items[0].ID)
	// subcommands report under the "warpops trash" app name
	assertContains(t, out, "trash[restore]:")
}

func TestRemoteTrash(t *testing.T) {
	isolate(t)
	d := startTestDaemon(t)
	dir := t.TempDir()
	victim := filepath.Join(dir, "remote.txt")
	writeFile(t, victim, "far")

	args := append([]string{"trash", "-q", "--remote"}, d.remoteArgs()...)
	if out, code := runApp(t, append(args, victim)...); code != 0 {
		t.Fatalf("remote trash exited %d:\n%s", code, out)
	}
	items, err := d.comps.Trash.List(context.Background())
	if err != nil || len(items) != 1 {
		t.Fatalf("daemon bin = %+v, %v", items, err)
	}

	out, _ := runApp(t, append([]string{"trash", "list"}, d.remoteArgs()...)...)
	assertContains(t, out, items[0].ID)
	out, _ = runApp(t, append(append([]string{"trash", "restore"}, d.remoteArgs()...), items[0].ID)...)
	assertContains(t, out, "Restored "+victim)
}
