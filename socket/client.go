package socket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"satupapan/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin allows connections from the frontend dev server.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one WebSocket connection. Board membership is not fixed at
// connect time; it is established by join-board messages and tracked in the
// hub's session map.
type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	UserID   string
	UserName string
	Send     chan []byte
}

// ServeWs upgrades an already-authenticated request. Credential failures are
// rejected by the auth middleware before this runs.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID, userName string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Hub:      hub,
		Conn:     conn,
		UserID:   userID,
		UserName: userName,
		Send:     make(chan []byte, 256),
	}

	client.Hub.Register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("read error: %v", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(rawMessage, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message: %v", err)
			continue
		}

		// Server-authoritative sender identity; a client cannot speak for
		// anyone else.
		msg.UserID = c.UserID

		c.Hub.Inbound <- inbound{client: c, msg: msg}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.Conn.WriteMessage(websocket.TextMessage, message)
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return // Connection is dead
			}
		}
	}
}
