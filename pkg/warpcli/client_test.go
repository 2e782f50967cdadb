package warpcli_test

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/warpdl/warpops/internal/fsadaptor"
	"github.com/warpdl/warpops/internal/server"
	"github.com/warpdl/warpops/internal/trash"
	"github.com/warpdl/warpops/pkg/warpcli"
	"github.com/warpdl/warpops/pkg/warpops"
)

const secret = "client-secret"

type daemon struct {
	uri      string
	fs       afero.Fs
	notifier *server.RPCNotifier
}

func startDaemon(t *testing.T) *daemon {
	t.Helper()
	fs := afero.NewMemMapFs()
	bin, err := trash.Open(fs, "/.trash", filepath.Join(t.TempDir(), "trash.db"))
	if err != nil {
		t.Fatal(err)
	}
	n := server.NewRPCNotifier(nil)
	cfg := warpops.DefaultConfig()
	cfg.EmitInterval = 0
	e, err := warpops.New(context.Background(), cfg, fsadaptor.New(fs, fsadaptor.WithTrash(bin)), warpops.WithNotifier(n))
	if err != nil {
		t.Fatal(err)
	}
	srv, err := server.NewServer(server.Config{RPC: server.RPCConfig{
		Secret:  secret,
		Version: "2.0.0",
		Trash:   bin,
	}}, e, n, nil)
	if err != nil {
		t.Fatal(err)
	}
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hs.Close()
		e.Close()
		bin.Close()
	})
	return &daemon{
		uri:      "tcp://" + hs.Listener.Addr().String(),
		fs:       fs,
		notifier: n,
	}
}

func connect(t *testing.T, d *daemon) *warpcli.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := warpcli.NewClient(ctx, &warpcli.Options{URI: d.uri, Secret: secret})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	// the daemon registers the connection for pushes after the handshake
	deadline := time.Now().Add(5 * time.Second)
	for d.notifier.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection never registered for events")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return c
}

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// seen records pushed events of one group in dispatch order.
type seen struct {
	mu     sync.Mutex
	events []string
	seqs   []uint64
}

func record[E warpops.Event](s *seen, c *warpcli.Client, gid warpops.GroupID, typ string, seq func(E) uint64) {
	c.AddHandler(typ, &warpcli.GroupFilter{
		Group: gid,
		Next: warpcli.NewEventHandler(func(ev E) error {
			s.mu.Lock()
			s.events = append(s.events, typ)
			s.seqs = append(s.seqs, seq(ev))
			s.mu.Unlock()
			return nil
		}),
	})
}

func TestClient_EventsKeepDaemonOrder(t *testing.T) {
	d := startDaemon(t)
	for i := 0; i < 20; i++ {
		afero.WriteFile(d.fs, fmt.Sprintf("/src/f%02d", i), []byte("payload"), 0o644)
	}
	c := connect(t, d)
	ctx := ctxT(t)

	gid := warpops.GroupID(uuid.NewString())
	s := &seen{}
	record(s, c, gid, warpops.EventTaskStarted, func(ev warpops.TaskStartedEvent) uint64 { return ev.Seq })
	record(s, c, gid, warpops.EventTaskProgress, func(ev warpops.TaskProgressEvent) uint64 { return ev.Seq })
	record(s, c, gid, warpops.EventTaskSucceeded, func(ev warpops.TaskSucceededEvent) uint64 { return ev.Seq })
	record(s, c, gid, warpops.EventGroupSnapshot, func(ev warpops.GroupSnapshotEvent) uint64 { return ev.Seq })
	done := make(chan struct{})
	c.AddHandler(warpops.EventGroupCompleted, &warpcli.GroupFilter{
		Group: gid,
		Next: warpcli.NewEventHandler(func(ev warpops.GroupCompletedEvent) error {
			s.mu.Lock()
			s.events = append(s.events, warpops.EventGroupCompleted)
			s.seqs = append(s.seqs, ev.Seq)
			s.mu.Unlock()
			close(done)
			return nil
		}),
	})

	if _, err := c.Submit(ctx, &warpops.Request{Kind: warpops.KindCopy, Sources: []string{"/src"}, Destination: "/dst", Group: gid}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("no group.completed push")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 1; i < len(s.seqs); i++ {
		if s.seqs[i] <= s.seqs[i-1] {
			t.Fatalf("event %d (%s, seq %d) dispatched after seq %d", i, s.events[i], s.seqs[i], s.seqs[i-1])
		}
	}
	started := 0
	for _, ev := range s.events {
		if ev == warpops.EventTaskStarted {
			started++
		}
	}
	if started != 21 {
		t.Fatalf("expected 21 task.started before completion, got %d", started)
	}
	if last := s.events[len(s.events)-1]; last != warpops.EventGroupCompleted {
		t.Fatalf("last event %s, want group.completed", last)
	}
}

func TestClient_SubmitAndFollow(t *testing.T) {
	d := startDaemon(t)
	afero.WriteFile(d.fs, "/src/a.txt", []byte("alpha"), 0o644)
	c := connect(t, d)
	ctx := ctxT(t)

	v, err := c.GetDaemonVersion(ctx)
	if err != nil || v.Version != "2.0.0" {
		t.Fatalf("GetDaemonVersion = %+v, %v", v, err)
	}

	gid := warpops.GroupID(uuid.NewString())
	done := make(chan warpops.GroupCompletedEvent, 1)
	started := make(chan warpops.TaskStartedEvent, 8)
	c.AddHandler(warpops.EventGroupCompleted, &warpcli.GroupFilter{
		Group: gid,
		Next: warpcli.NewEventHandler(func(ev warpops.GroupCompletedEvent) error {
			done <- ev
			return nil
		}),
	})
	c.AddHandler(warpops.EventTaskStarted, warpcli.NewEventHandler(func(ev warpops.TaskStartedEvent) error {
		started <- ev
		return nil
	}))

	res, err := c.Submit(ctx, &warpops.Request{
		Kind:        warpops.KindCopy,
		Sources:     []string{"/src/a.txt"},
		Destination: "/dst/a.txt",
		Group:       gid,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Group != gid {
		t.Fatalf("group hint ignored: %s", res.Group)
	}

	select {
	case ev := <-done:
		if ev.Succeeded != 1 || !ev.Completed || ev.Progress.ProcessedBytes != 5 {
			t.Fatalf("completion %+v", ev.Snapshot)
		}
		if ev.Timestamp().IsZero() {
			t.Fatal("event time not decoded")
		}
	case <-ctx.Done():
		t.Fatal("no group.completed push")
	}
	select {
	case ev := <-started:
		if ev.Kind != warpops.KindCopy || ev.Group != gid {
			t.Fatalf("started %+v", ev)
		}
	default:
		t.Fatal("no task.started push")
	}

	snap, err := c.Snapshot(ctx, gid, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].State != warpops.StateSucceeded {
		t.Fatalf("tasks %+v", snap.Tasks)
	}
	info, err := c.Task(ctx, res.Task)
	if err != nil || info.Destination != "/dst/a.txt" {
		t.Fatalf("Task = %+v, %v", info, err)
	}
	list, err := c.List(ctx)
	if err != nil || len(list.Groups) != 1 {
		t.Fatalf("List = %+v, %v", list, err)
	}
	if err := c.Acknowledge(ctx, gid); err != nil {
		t.Fatal(err)
	}
	if list, _ := c.List(ctx); len(list.Groups) != 0 {
		t.Fatalf("acknowledged group still listed: %+v", list.Groups)
	}
}

func TestClient_Trash(t *testing.T) {
	d := startDaemon(t)
	afero.WriteFile(d.fs, "/doc.txt", []byte("keep me"), 0o644)
	c := connect(t, d)
	ctx := ctxT(t)

	gid := warpops.GroupID(uuid.NewString())
	done := make(chan struct{})
	c.AddHandler(warpops.EventGroupCompleted, &warpcli.GroupFilter{
		Group: gid,
		Next: warpcli.NewEventHandler(func(warpops.GroupCompletedEvent) error {
			close(done)
			return nil
		}),
	})
	if _, err := c.Submit(ctx, &warpops.Request{Kind: warpops.KindTrash, Sources: []string{"/doc.txt"}, Group: gid}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("trash never completed")
	}

	items, err := c.TrashList(ctx)
	if err != nil || len(items.Items) != 1 || items.Items[0].OriginalPath != "/doc.txt" {
		t.Fatalf("TrashList = %+v, %v", items, err)
	}
	if ok, _ := afero.Exists(d.fs, "/doc.txt"); ok {
		t.Fatal("file still in place")
	}
	item, err := c.TrashRestore(ctx, items.Items[0].ID)
	if err != nil || item.OriginalPath != "/doc.txt" {
		t.Fatalf("TrashRestore = %+v, %v", item, err)
	}
	if got, _ := afero.ReadFile(d.fs, "/doc.txt"); string(got) != "keep me" {
		t.Fatalf("restored %q", got)
	}
}

func TestClient_Errors(t *testing.T) {
	d := startDaemon(t)
	c := connect(t, d)
	ctx := ctxT(t)

	tests := []struct {
		name string
		call func() error
		code jrpc2.Code
	}{
		{"unknown group", func() error { _, err := c.Snapshot(ctx, "nope", false); return err }, -32001},
		{"unknown task", func() error { _, err := c.Task(ctx, 424242); return err }, -32002},
		{"unknown trash item", func() error { _, err := c.TrashRestore(ctx, "nope"); return err }, -32003},
		{"invalid request", func() error {
			_, err := c.Submit(ctx, &warpops.Request{Kind: warpops.KindCopy})
			return err
		}, -32602},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var rerr *jrpc2.Error
			if !errors.As(err, &rerr) {
				t.Fatalf("expected a *jrpc2.Error, got %v", err)
			}
			if rerr.Code != tt.code {
				t.Fatalf("code = %d, want %d", rerr.Code, tt.code)
			}
		})
	}
}

func TestClient_Unauthorized(t *testing.T) {
	d := startDaemon(t)
	ctx := ctxT(t)
	if _, err := warpcli.NewClient(ctx, &warpcli.Options{URI: d.uri, Secret: "wrong"}); err == nil {
		t.Fatal("expected the handshake to fail")
	}
	if _, err := warpcli.NewClient(ctx, &warpcli.Options{URI: "http://nope"}); !errors.Is(err, warpcli.ErrUnsupportedScheme) {
		t.Fatalf("expected ErrUnsupportedScheme, got %v", err)
	}
}

func TestClient_CheckVersionMismatch(t *testing.T) {
	d := startDaemon(t)
	c := connect(t, d)
	t.Setenv(warpcli.VersionCheckEnv, "")

	var out strings.Builder
	c.CheckVersionMismatch(ctxT(t), &out, "2.0.0")
	if out.Len() != 0 {
		t.Fatalf("unexpected warning %q", out.String())
	}
	c.CheckVersionMismatch(ctxT(t), &out, "1.9.0")
	if !strings.Contains(out.String(), "differs from daemon version (2.0.0)") {
		t.Fatalf("missing warning, got %q", out.String())
	}

	t.Setenv(warpcli.VersionCheckEnv, "1")
	var quiet strings.Builder
	c.CheckVersionMismatch(ctxT(t), &quiet, "1.9.0")
	if quiet.Len() != 0 {
		t.Fatalf("suppressed check still warned: %q", quiet.String())
	}
}
