// Package warpcli is the client side of the warpops daemon. It speaks
// JSON-RPC 2.0 over a WebSocket carried on the daemon's Unix socket, named
// pipe or TCP address, and dispatches pushed engine events to handlers.
package warpcli

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
	"github.com/warpdl/warpops/common"
)

// maxMessageSize bounds a single inbound message. Snapshots with many
// failures can be large.
const maxMessageSize = 4 << 20

// Options selects and authenticates the daemon.
type Options struct {
	// URI of the daemon. Empty means WARPOPS_DAEMON_URI, then the local
	// socket or pipe.
	URI string
	// Secret is sent as a bearer token.
	Secret string
	// Spawn starts a local daemon when none answers. It is ignored for
	// explicit URIs.
	Spawn bool
}

type Client struct {
	uri    *DaemonURI
	rpc    *jrpc2.Client
	cancel context.CancelFunc
	events *eventQueue

	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewClient connects to the daemon.
func NewClient(ctx context.Context, opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}
	raw := opts.URI
	if raw == "" {
		raw = os.Getenv(common.DaemonURIEnv)
	}
	uri := defaultURI()
	if raw != "" {
		var err error
		uri, err = ParseDaemonURI(raw)
		if err != nil {
			return nil, err
		}
	} else if opts.Spawn {
		if err := ensureDaemon(uri); err != nil {
			return nil, err
		}
	}

	hc := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialContext(ctx, uri)
		},
	}}
	header := http.Header{}
	if opts.Secret != "" {
		header.Set("Authorization", "Bearer "+opts.Secret)
	}
	conn, _, err := cws.Dial(ctx, uri.wsURL(), &cws.DialOptions{
		HTTPClient: hc,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("error connecting to daemon at %s: %w", uri, err)
	}
	conn.SetReadLimit(maxMessageSize)
	debugLog("connected to daemon at %s", uri)

	lctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		uri:      uri,
		cancel:   cancel,
		handlers: make(map[string][]Handler),
	}
	c.events = newEventQueue(c.dispatch)
	go c.events.run()
	// jrpc2 hands each received message to its own goroutine, so pushed
	// events are taken off the wire here to keep their order.
	c.rpc = jrpc2.NewClient(&wsChannel{conn: conn, ctx: lctx, events: c.events}, nil)
	return c, nil
}

// URI returns the address the client is connected to.
func (c *Client) URI() *DaemonURI { return c.uri }

// AddHandler registers h for pushed events of the given type (see the
// warpops.Event* constants). Handlers run one at a time in the order the
// daemon sent the events, and should return quickly.
func (c *Client) AddHandler(eventType string, h Handler) {
	c.mu.Lock()
	c.handlers[eventType] = append(c.handlers[eventType], h)
	c.mu.Unlock()
}

func (c *Client) dispatch(n notification) {
	c.mu.RLock()
	hs := c.handlers[n.Method]
	c.mu.RUnlock()
	for _, h := range hs {
		if err := h.Handle(n.Params); err != nil {
			debugLog("handler for %s failed: %v", n.Method, err)
		}
	}
}

// Close disconnects from the daemon. Events already received are still
// dispatched.
func (c *Client) Close() error {
	err := c.rpc.Close()
	c.cancel()
	c.events.stop()
	return err
}

func call[T any](ctx context.Context, c *Client, method common.Method, params any) (*T, error) {
	var v T
	if err := c.rpc.CallResult(ctx, string(method), params, &v); err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %w", method, err)
	}
	return &v, nil
}

// wsChannel adapts a websocket connection to the jrpc2 Channel interface.
// Notifications are diverted to events; only responses reach jrpc2.
type wsChannel struct {
	conn   *cws.Conn
	ctx    context.Context
	events *eventQueue
}

func (c *wsChannel) Send(data []byte) error {
	return c.conn.Write(c.ctx, cws.MessageText, data)
}

func (c *wsChannel) Recv() ([]byte, error) {
	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil || c.events == nil {
			return data, err
		}
		n, ok := parseNotification(data)
		if !ok {
			return data, nil
		}
		c.events.push(n)
	}
}

func (c *wsChannel) Close() error {
	return c.conn.Close(cws.StatusNormalClosure, "")
}

func debugLog(format string, args ...any) {
	if v, _, _ := common.EnvBool(common.DebugEnv); v {
		log.Printf("warpcli: "+format, args...)
	}
}
