package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds one outbound frame. Replies are small JSON payloads;
	// a client that cannot drain them within this window is gone.
	writeWait = 10 * time.Second

	// readWait is how long a candidate may sit idle between messages before
	// the coding channel is considered dead. Sandbox polls can take a while,
	// so this is deliberately generous.
	readWait = 5 * time.Minute
)

// WriteTyped sends one typed event payload over the coding channel.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed error event. Used for faults that cannot be
// correlated with a pending request (malformed frames, unknown actions).
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes the next message, refreshing the idle deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(readWait))
	return conn.ReadJSON(v)
}
