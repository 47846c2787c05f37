package subscription

import "github.com/gorilla/websocket"

// WSConn adapts a gorilla websocket connection to the Conn interface. The
// session's reader pump is the only reader and the session goroutine the
// only writer, matching gorilla's one-reader/one-writer contract.
type WSConn struct {
	ws *websocket.Conn
}

// NewWSConn wraps an upgraded websocket connection.
func NewWSConn(ws *websocket.Conn) *WSConn {
	return &WSConn{ws: ws}
}

// ReadMessage reads one JSON protocol message.
func (c *WSConn) ReadMessage() (Message, error) {
	var msg Message
	err := c.ws.ReadJSON(&msg)
	return msg, err
}

// WriteMessage writes one JSON protocol message.
func (c *WSConn) WriteMessage(msg Message) error {
	return c.ws.WriteJSON(msg)
}

// Close closes the underlying connection.
func (c *WSConn) Close() error {
	return c.ws.Close()
}
