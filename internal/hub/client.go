// ABOUTME: Websocket client wrapper with read and write pumps
// ABOUTME: Implements the presence.Conn push interface with drop-on-full semantics

package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/taskhaven/chat-gateway/internal/store"
)

const (
	// sendBufferSize bounds the per-client outbound queue. Pushes beyond
	// this are dropped, never blocked on.
	sendBufferSize = 64

	writeWait    = 10 * time.Second
	maxFrameSize = 512
)

// ErrSlowClient is returned when a push is dropped because the client's
// send buffer is full.
var ErrSlowClient = errors.New("client send buffer full")

// ErrClientClosed is returned for pushes to a connection that has
// already shut down.
var ErrClientClosed = errors.New("client closed")

// Client is one live websocket connection. It satisfies presence.Conn:
// PushMessage and PushPresence enqueue without blocking.
//
// The send channel is never closed; shutdown is signalled through done
// so that a push racing with teardown fails cleanly instead of
// panicking.
type Client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	logger *slog.Logger

	closeOnce sync.Once
}

func newClient(userID string, conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger.With("user_id", userID),
	}
}

// UserID returns the identifier bound at handshake, empty for anonymous
// connections.
func (c *Client) UserID() string {
	return c.userID
}

// PushMessage enqueues a message event for the client.
func (c *Client) PushMessage(msg *store.Message) error {
	return c.enqueue(messageEvent(msg))
}

// PushPresence enqueues a full presence snapshot for the client.
func (c *Client) PushPresence(online []string) error {
	return c.enqueue(presenceEvent(online))
}

func (c *Client) enqueue(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", ev.Type, err)
	}

	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSlowClient
	}
}

// readPump consumes inbound frames until the connection dies. Inbound
// payloads are discarded: sending goes through the HTTP API, the socket
// exists for push and liveness. onClose runs exactly once on exit.
func (c *Client) readPump(onClose func()) {
	defer func() {
		onClose()
		c.close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", "error", err)
			}
			return
		}
	}
}

// writePump drains the send buffer onto the wire. It exits when the
// client is closed or a write fails.
func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-c.done:
			// Say goodbye properly before tearing down.
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
