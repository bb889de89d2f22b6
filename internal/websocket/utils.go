package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeDeadline = 10 * time.Second
	readDeadline  = 10 * time.Minute

	// maxFrameBytes bounds inbound frames. The largest legal payload
	// is a SendRequest with a 5000 character body.
	maxFrameBytes = 32 * 1024
)

// Configure applies the read limits every conversation socket uses.
func Configure(conn *websocket.Conn) {
	conn.SetReadLimit(maxFrameBytes)
}

// WriteTyped sends a strongly-typed event payload over the socket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteJSON(v)
}

// WriteRaw forwards an already-encoded JSON frame, as received from the
// conversation's Pub/Sub channel.
func WriteRaw(conn *websocket.Conn, payload []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// ReadFrame reads one raw frame, refreshing the idle deadline. Callers
// decode it twice: once to peek the action, then fully.
func ReadFrame(conn *websocket.Conn) ([]byte, error) {
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	_, raw, err := conn.ReadMessage()
	return raw, err
}

// WriteError sends a typed ErrorResponse over the socket.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes one frame, refreshing the idle deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	return conn.ReadJSON(v)
}

// CloseNormally performs a polite close handshake before dropping the
// connection.
func CloseNormally(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
	conn.Close()
}
