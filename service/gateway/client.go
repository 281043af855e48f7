package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"FestivalSupport/logger"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = 75 * time.Second
)

// Client is one websocket session bound to exactly one Identity for its
// lifetime. A single identity may own many clients (multi-device/multi-tab).
// All outbound traffic goes through Send; a single writer goroutine owns
// the socket, since gorilla conns do not allow concurrent writes.
type Client struct {
	ConnID   string
	Identity Identity
	WS       *websocket.Conn
	Send     chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(connID string, identity Identity, ws *websocket.Conn, sendQueueSize int) *Client {
	return &Client{
		ConnID:   connID,
		Identity: identity,
		WS:       ws,
		Send:     make(chan []byte, sendQueueSize),
		done:     make(chan struct{}),
	}
}

// Enqueue queues a payload for delivery. Slow clients are not waited on:
// when the buffer is full the frame is dropped, keeping best-effort
// delivery and bounded backpressure.
func (c *Client) Enqueue(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- payload:
		return true
	default:
		logger.Debugf("[client] send buffer full, drop frame conn=%s user=%s", c.ConnID, c.Identity.ID)
		return false
	}
}

// StartWritePump launches the single writer goroutine. Call exactly once
// after registration; returns immediately.
func (c *Client) StartWritePump() {
	go c.writePump()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case payload, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.writeText(payload); err != nil {
				logger.Debugf("[client] write failed conn=%s err=%v", c.ConnID, err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *Client) writeText(payload []byte) error {
	if err := c.WS.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.WS.WriteMessage(websocket.TextMessage, payload)
}

// Close tears the socket down once. The read loop unblocks with an error
// and runs the deregistration path.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.WS != nil {
			_ = c.WS.Close()
		}
	})
}

// Closed reports whether Close has run.
func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
