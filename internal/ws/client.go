package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
)

// Connection lifecycle. Mutation events are only served in stateJoined;
// an explicit leave moves through stateLeaving to stateLeft.
const (
	stateJoined int32 = iota
	stateLeaving
	stateLeft
)

const sendBuffer = 256

type Client struct {
	ID       string
	UserID   string
	Username string
	RoomID   string

	conn  *websocket.Conn
	send  chan []byte
	state atomic.Int32

	pingInterval  time.Duration
	writeDeadline time.Duration
	maxMsgSize    int64

	closeOnce  sync.Once
	sendMu     sync.RWMutex
	sendClosed bool
}

func newClient(conn *websocket.Conn, id, userID, username, roomID string, ping, write time.Duration, maxSize int64) *Client {
	c := &Client{
		ID:            id,
		UserID:        userID,
		Username:      username,
		RoomID:        roomID,
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		pingInterval:  ping,
		writeDeadline: write,
		maxMsgSize:    maxSize,
	}
	c.state.Store(stateJoined)
	return c
}

func (c *Client) joined() bool { return c.state.Load() == stateJoined }

func (c *Client) beginLeave() bool {
	return c.state.CompareAndSwap(stateJoined, stateLeaving)
}

func (c *Client) finishLeave() { c.state.Store(stateLeft) }

func (c *Client) closeSendOnce() {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.sendClosed = true
		close(c.send)
		c.sendMu.Unlock()
	})
}

// trySend queues a frame without blocking. False means the client is gone
// or its buffer is full.
func (c *Client) trySend(b []byte) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// sendEvent queues an event for this connection only.
func (c *Client) sendEvent(event string, data any) {
	b, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return
	}
	c.trySend(b)
}

func (c *Client) readPump(handle func(*Client, inboundEvent)) {
	defer func() {
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(c.maxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var env inboundEvent
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		handle(c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeDeadline))
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeDeadline))
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
