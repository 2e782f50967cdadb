package server

import (
	"context"
	"net/http"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
)

// maxMessageSize bounds a single inbound JSON-RPC message.
const maxMessageSize = 1 << 20

// wsChannel adapts a coder/websocket.Conn to the jrpc2 Channel interface.
type wsChannel struct {
	conn *cws.Conn
	ctx  context.Context
}

func (c *wsChannel) Send(data []byte) error {
	return c.conn.Write(c.ctx, cws.MessageText, data)
}

func (c *wsChannel) Recv() ([]byte, error) {
	_, data, err := c.conn.Read(c.ctx)
	return data, err
}

func (c *wsChannel) Close() error {
	return c.conn.Close(cws.StatusNormalClosure, "")
}

// serveWS upgrades the request and runs a jrpc2 server on the connection
// until the client goes away. While connected the client receives every
// engine event as a push notification.
func (rs *RPCServer) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, &cws.AcceptOptions{
		OriginPatterns: rs.origins,
	})
	if err != nil {
		rs.log.Warning("rpc: websocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	srv := jrpc2.NewServer(rs.methods, &jrpc2.ServerOptions{AllowPush: true})
	srv.Start(&wsChannel{conn: conn, ctx: r.Context()})
	rs.notifier.Register(srv)
	defer rs.notifier.Unregister(srv)
	rs.log.Debug("rpc: websocket client connected from %s", r.RemoteAddr)
	if err := srv.Wait(); err != nil {
		rs.log.Debug("rpc: websocket client gone: %v", err)
	}
}
