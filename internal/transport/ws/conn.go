package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cwrk-planet/call-service/internal/domain"

	"github.com/gorilla/websocket"
)

var (
	errClosed       = errors.New("ws: connection closed")
	errSlowConsumer = errors.New("ws: outbound queue full")
)

// client owns one websocket. Events go through a bounded queue drained by writePump,
// so a slow peer never blocks the sender; overflowing the queue closes the connection.
type client struct {
	conn *websocket.Conn
	send chan domain.Event
	done chan struct{}
	once sync.Once

	writeWait time.Duration
	pingEvery time.Duration

	// set during the handshake, read only by the read pump
	id       domain.ConnID
	verified bool
}

func newClient(conn *websocket.Conn, buffer int, writeWait, pingEvery time.Duration) *client {
	return &client{
		conn:      conn,
		send:      make(chan domain.Event, buffer),
		done:      make(chan struct{}),
		writeWait: writeWait,
		pingEvery: pingEvery,
	}
}

// Send implements domain.Sink.
func (c *client) Send(ev domain.Event) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}

	select {
	case c.send <- ev:
		return nil
	default:
		slog.Warn("ws: dropping slow connection", "conn", c.id, "type", ev.Type)
		_ = c.Close()
		return errSlowConsumer
	}
}

// Close asks writePump to send a close frame and drop the socket, which in turn ends
// the read pump. Safe to call more than once and from any goroutine.
func (c *client) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		_ = c.Close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				slog.Debug("ws: write failed", "conn", c.id, "err", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait)); err != nil {
				slog.Debug("ws: ping failed", "conn", c.id, "err", err)
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.writeWait),
			)
			return
		}
	}
}
