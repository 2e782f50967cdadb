package server

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
	"github.com/warpdl/warpops/pkg/logger"
	"github.com/warpdl/warpops/pkg/warpops"
)

// newPushServer creates a jrpc2 server with push support over an io.Pipe
// channel. The client channel must be drained or closed so pushes do not
// block.
func newPushServer(t *testing.T) (channel.Channel, *jrpc2.Server, func()) {
	t.Helper()
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()
	cli := channel.Line(cr, cw)
	srvCh := channel.Line(sr, sw)

	srv := jrpc2.NewServer(handler.Map{}, &jrpc2.ServerOptions{AllowPush: true})
	srv.Start(srvCh)

	cleanup := func() {
		cli.Close()
		_ = srv.Wait()
	}
	return cli, srv, cleanup
}

func TestRPCNotifier_RegisterUnregister(t *testing.T) {
	n := NewRPCNotifier(nil)
	_, srv, cleanup := newPushServer(t)
	defer cleanup()

	n.Register(srv)
	n.Register(srv)
	if n.Count() != 1 {
		t.Fatalf("expected 1 server, got %d", n.Count())
	}
	n.Unregister(srv)
	n.Unregister(srv)
	if n.Count() != 0 {
		t.Fatalf("expected 0 servers, got %d", n.Count())
	}
}

func TestRPCNotifier_NotifyUsesEventType(t *testing.T) {
	n := NewRPCNotifier(nil)
	cli, srv, cleanup := newPushServer(t)
	defer cleanup()
	n.Register(srv)

	done := make(chan []byte, 1)
	go func() {
		data, _ := cli.Recv()
		done <- data
	}()

	n.Notify(warpops.GroupCompletedEvent{Snapshot: warpops.Snapshot{Group: "g1", Succeeded: 3}})

	var msg struct {
		Method string           `json:"method"`
		Params warpops.Snapshot `json:"params"`
	}
	if err := json.Unmarshal(<-done, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Method != warpops.EventGroupCompleted {
		t.Fatalf("method = %q, want %q", msg.Method, warpops.EventGroupCompleted)
	}
	if msg.Params.Group != "g1" || msg.Params.Succeeded != 3 {
		t.Fatalf("unexpected params %+v", msg.Params)
	}
}

func TestRPCNotifier_DropsDisconnected(t *testing.T) {
	l := logger.NewMockLogger()
	n := NewRPCNotifier(l)

	cli1, srv1, cleanup1 := newPushServer(t)
	defer cleanup1()
	cli2, srv2, _ := newPushServer(t)

	n.Register(srv1)
	n.Register(srv2)

	cli2.Close()
	_ = srv2.Wait()

	done := make(chan struct{}, 1)
	go func() { _, _ = cli1.Recv(); done <- struct{}{} }()

	n.Broadcast("task.started", map[string]any{"task": 1})
	<-done

	if n.Count() != 1 {
		t.Fatalf("expected 1 server after partial failure, got %d", n.Count())
	}
	if len(l.Warnings()) != 1 {
		t.Fatalf("expected one warning, got %v", l.Warnings())
	}
}

func TestRPCNotifier_NoServers(t *testing.T) {
	n := NewRPCNotifier(nil)
	n.Notify(warpops.TaskStartedEvent{Task: 1})
}
