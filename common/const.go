package common

// Method is a JSON-RPC method name served by the daemon.
type Method string

const (
	METHOD_VERSION       Method = "system.getVersion"
	METHOD_SUBMIT        Method = "ops.submit"
	METHOD_CANCEL        Method = "ops.cancel"
	METHOD_CANCEL_TASK   Method = "ops.cancelTask"
	METHOD_PAUSE         Method = "ops.pause"
	METHOD_RESUME        Method = "ops.resume"
	METHOD_SNAPSHOT      Method = "ops.snapshot"
	METHOD_TASK          Method = "ops.task"
	METHOD_ACKNOWLEDGE   Method = "ops.acknowledge"
	METHOD_LIST          Method = "ops.list"
	METHOD_TRASH_LIST    Method = "trash.list"
	METHOD_TRASH_RESTORE Method = "trash.restore"
	METHOD_SCHEDULE      Method = "schedule.add"
	METHOD_UNSCHEDULE    Method = "schedule.remove"
	METHOD_SCHEDULES     Method = "schedule.list"
)

const (
	// TCPHost is the only host the daemon binds to when it falls back to TCP
	// without an explicit listen address.
	TCPHost = "127.0.0.1"
	// DEF_TCP_PORT is the fallback TCP port.
	DEF_TCP_PORT = 3849
	// DefaultSocketName is the file name of the daemon's Unix socket.
	DefaultSocketName = "warpops.sock"
	// RPCPath is the HTTP path of the JSON-RPC endpoint.
	RPCPath = "/jsonrpc"
)
