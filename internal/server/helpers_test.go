package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/warpdl/warpops/internal/fsadaptor"
	"github.com/warpdl/warpops/pkg/warpops"
)

type testDaemon struct {
	srv      *Server
	engine   *warpops.Engine
	notifier *RPCNotifier
	fs       afero.Fs
	http     *httptest.Server
}

func newTestDaemon(t *testing.T, cfg Config, opts ...warpops.Option) *testDaemon {
	t.Helper()
	fs := afero.NewMemMapFs()
	n := NewRPCNotifier(nil)
	ecfg := warpops.DefaultConfig()
	ecfg.EmitInterval = 0
	opts = append(opts, warpops.WithNotifier(n))
	e, err := warpops.New(context.Background(), ecfg, fsadaptor.New(fs), opts...)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RPC.Version == "" {
		cfg.RPC.Version = "1.0.0"
	}
	srv, err := NewServer(cfg, e, n, nil)
	if err != nil {
		t.Fatal(err)
	}
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hs.Close()
		srv.rpc.Close()
		e.Close()
	})
	return &testDaemon{srv: srv, engine: e, notifier: n, fs: fs, http: hs}
}

// rpcCall posts a JSON-RPC request and returns the status code and the
// decoded response.
func rpcCall(t *testing.T, h http.Handler, method string, params any, token string) (int, map[string]any) {
	t.Helper()
	body := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"id":      1,
	}
	if params != nil {
		body["params"] = params
	}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/jsonrpc", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	raw, _ := io.ReadAll(rr.Result().Body)
	var result map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			t.Fatalf("unmarshal response: %v (body: %s)", err, raw)
		}
	}
	return rr.Code, result
}

// errorCode returns the JSON-RPC error code of resp, or 0.
func errorCode(resp map[string]any) int {
	e, ok := resp["error"].(map[string]any)
	if !ok {
		return 0
	}
	code, _ := e["code"].(float64)
	return int(code)
}

func resultOf(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	r, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected a result, got %v", resp)
	}
	return r
}

func waitGroup(t *testing.T, e *warpops.Engine, id warpops.GroupID) warpops.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := e.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return snap
}

// heldHandler blocks every task until release is closed or the task is
// canceled.
type heldHandler struct{ release chan struct{} }

func (heldHandler) Estimate(context.Context, warpops.Adaptor, warpops.Draft) warpops.Estimate {
	return warpops.UnknownEstimate
}

func (h heldHandler) Execute(j *warpops.Job) warpops.Outcome {
	select {
	case <-h.release:
		return warpops.Done()
	case <-j.Context().Done():
		return warpops.Canceled()
	}
}
