package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/presence"
	"github.com/cwrk-planet/watch-buddy/internal/protocol"

	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("ws: connection closed")

// wsConn implements presence.Conn. Send only queues; writeLoop owns the socket
// for writing.
type wsConn struct {
	conn *websocket.Conn
	send chan protocol.Message

	closeOnce sync.Once
	closed    chan struct{}
}

func newWsConn(c *websocket.Conn, buffer int) *wsConn {
	return &wsConn{
		conn:   c,
		send:   make(chan protocol.Message, buffer),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Send(msg protocol.Message) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return presence.ErrBackpressure
	}
}

// Close asks writeLoop to flush and hang up. Safe to call more than once.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *wsConn) write(msg protocol.Message, timeout time.Duration) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) drain(timeout time.Duration) {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg, timeout); err != nil {
				return
			}
		default:
			return
		}
	}
}

var _ presence.Conn = (*wsConn)(nil)
