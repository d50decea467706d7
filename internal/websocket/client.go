package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 50 * time.Second
	sendBuffer   = 16
	maxFrameSize = 512
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one open wallet socket. Only the hub and the snapshot writer put
// payloads on send.
type Client struct {
	hub    *Hub
	userID string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

// ServeWS upgrades the request and streams wallet updates for userID until
// the peer hangs up. snapshot is written first so a fresh connection shows a
// balance without waiting for the next coin movement.
func ServeWS(w http.ResponseWriter, r *http.Request, hub *Hub, userID string, snapshot WalletUpdate) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}
	c := &Client{
		hub:    hub,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
	if snapshot.Type == "" {
		snapshot.Type = "snapshot"
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		slog.Error("encode wallet snapshot", "user_id", userID, "error", err)
		_ = conn.Close()
		return
	}
	c.send <- payload
	hub.Register(userID, c)
	slog.Debug("wallet socket connected", "user_id", userID, "coins", snapshot.Coins)

	go c.writeLoop()
	c.readLoop()
}

func (c *Client) close() {
	c.once.Do(func() {
		c.hub.Unregister(c.userID, c)
		_ = c.conn.Close()
		slog.Debug("wallet socket closed", "user_id", c.userID)
	})
}

// readLoop discards inbound frames; it exists to service pongs and notice
// when the peer goes away.
func (c *Client) readLoop() {
	defer c.close()
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.close()
	}()
	for {
		var (
			kind int
			data []byte
		)
		select {
		case payload, ok := <-c.send:
			if !ok {
				kind = websocket.CloseMessage
			} else {
				kind, data = websocket.TextMessage, payload
			}
		case <-ping.C:
			kind = websocket.PingMessage
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(kind, data); err != nil || kind == websocket.CloseMessage {
			return
		}
	}
}
