// Package transport defines the wire-agnostic contract between a plan
// stream source and the aggregation engine. Implementations (WebSocket,
// server-sent events) deliver raw JSON frames in server order and report
// connection termination with close-code semantics so the engine can
// tell expected completion from failure.
package transport

import "context"

// CodeNormalClosure is the close code for an expected, clean shutdown.
const CodeNormalClosure = 1000

// CodeAbnormalClosure is reported when the connection dropped without a
// close handshake.
const CodeAbnormalClosure = 1006

// Handshake is the acknowledgment returned once a connection is
// established.
type Handshake struct {
	// SessionID identifies the server-side stream session. For plan
	// progress streams this is the plan id itself.
	SessionID string
	// ClientID is the identifier this client registered under.
	ClientID string
}

// CloseInfo describes why the connection ended.
type CloseInfo struct {
	Err    error
	Reason string
	Code   int
}

// Clean reports whether the connection ended as an expected completion.
func (c CloseInfo) Clean() bool {
	return c.Code == CodeNormalClosure && c.Err == nil
}

// Message returns a human-readable description of the close, never empty.
func (c CloseInfo) Message() string {
	switch {
	case c.Reason != "":
		return c.Reason
	case c.Err != nil:
		return c.Err.Error()
	case c.Clean():
		return "connection closed"
	default:
		return "connection lost"
	}
}

// Transport is the engine's view of a wire connection. Exactly one
// Connect may be active at a time; Frames and Closed refer to the most
// recent connection. After Closed delivers, Frames is closed and no
// further frames arrive.
type Transport interface {
	// Connect establishes the connection for the given plan/target id
	// and performs any handshake the wire protocol requires.
	Connect(ctx context.Context, planID string) (*Handshake, error)

	// Frames yields raw JSON frames in server delivery order.
	Frames() <-chan []byte

	// Closed delivers exactly one CloseInfo when the connection ends,
	// whether by server close, transport error, or Disconnect.
	Closed() <-chan CloseInfo

	// Disconnect closes the underlying connection. It is idempotent and
	// safe to call from any state, including before Connect.
	Disconnect() error
}
