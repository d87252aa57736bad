package main

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 120
)

// Client represents a WebSocket connection. Its id is also the player id.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	id          string
	remoteAddr  string
	binary      bool // gameStateUpdate as msgpack binary frames
	connectedAt time.Time
	msgCount    int
	msgResetAt  time.Time
	closeOnce   sync.Once
}

// NewClient creates a new Client with a fresh player id
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, binary bool) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufSize),
		id:          GenerateID(),
		remoteAddr:  remoteAddr,
		binary:      binary,
		connectedAt: time.Now(),
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		if msgType != websocket.TextMessage {
			continue
		}
		if !c.handleMessage(message) {
			break
		}
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeSend closes the outbound queue; WritePump then sends a close frame.
// Safe to call more than once.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// SendRaw queues pre-marshaled bytes as a text message. Slow clients drop messages.
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message
// Prefixes with 0xFF marker byte so WritePump can distinguish from text
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF // binary marker
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

// handleMessage decodes one client message and forwards it to the hub.
// Malformed messages are dropped. It returns false once the hub is gone.
func (c *Client) handleMessage(raw []byte) bool {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return true
	}

	switch env.T {
	case MsgPlayerInput:
		in, err := DecodePlayerInput(env.D)
		if err != nil {
			return true
		}
		return c.hub.submit(inputCmd{playerID: c.id, input: in})
	case MsgPlayerAction:
		act, err := DecodePlayerAction(env.D)
		if err != nil {
			return true
		}
		return c.hub.submit(actionCmd{playerID: c.id, action: act})
	}
	return true
}
