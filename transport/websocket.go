package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hazyhaar/pagesync/protocol"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 8 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// wsConn carries JSON text frames over a gorilla websocket. Received
// frames are queued without bound so the read loop keeps draining the
// socket while the consumer is busy.
type wsConn struct {
	ws      *websocket.Conn
	decoded chan protocol.Message
	inbox   chan protocol.Message
	done   chan struct{}
	once   sync.Once
	wmu    sync.Mutex
	logger *slog.Logger
}

// WebSocket wraps an established websocket and starts its read loop.
func WebSocket(ws *websocket.Conn, logger *slog.Logger) Conn {
	if logger == nil {
		logger = slog.Default()
	}
	c := &wsConn{
		ws:      ws,
		decoded: make(chan protocol.Message),
		inbox:   make(chan protocol.Message),
		done:    make(chan struct{}),
		logger:  logger,
	}
	ws.SetReadLimit(wsMaxMessageSize)
	go c.readLoop()
	go fifo(c.decoded, c.inbox, c.done)
	return c
}

// Accept upgrades an HTTP request to a websocket Conn.
func Accept(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: upgrade: %w", err)
	}
	return WebSocket(ws, logger), nil
}

// Dial connects to a websocket endpoint.
func Dial(ctx context.Context, url string, logger *slog.Logger) (Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", url, err)
	}
	return WebSocket(ws, logger), nil
}

// readLoop ends when the socket fails. Frames already queued are still
// delivered before the inbox closes; the socket itself is released by
// Close.
func (c *wsConn) readLoop() {
	defer close(c.decoded)
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Warn("transport: websocket read", "error", err)
				}
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		m, err := protocol.Decode(data)
		if err != nil {
			c.logger.Warn("transport: websocket: drop message", "error", err)
			continue
		}
		select {
		case c.decoded <- m:
		case <-c.done:
			return
		}
	}
}

func (c *wsConn) Send(ctx context.Context, m protocol.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(wsWriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("transport: websocket write: %w", err)
	}
	return nil
}

func (c *wsConn) Inbox() <-chan protocol.Message { return c.inbox }

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.wmu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.wmu.Unlock()
		err = c.ws.Close()
	})
	return err
}
