package notifications

import (
	"encoding/json"
	"log/slog"
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send small control frames; anything larger is abuse.
	maxMessageSize = 1024
)

// Frame types exchanged with clients besides "notification" events.
const (
	FramePing    = "ping"
	FramePong    = "pong"
	FrameDropped = "messages_dropped"
	FrameError   = "error"
)

// ControlFrame is a non-notification frame. Reason is set on drop and error frames.
type ControlFrame struct {
	Type    string `json:"type"`
	Payload struct {
		Reason string `json:"reason,omitempty"`
	} `json:"payload"`
}

// EncodeControl renders a control frame.
func EncodeControl(kind, reason string) []byte {
	f := ControlFrame{Type: kind}
	f.Payload.Reason = reason
	raw, _ := json.Marshal(f)
	return raw
}

// Client is a middleman between one websocket connection and the Hub.
type Client struct {
	hub *Hub

	// The websocket connection. Nil in tests.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	UserID uint
}

func newClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, 64),
	}
}

// ReadPump drains incoming frames so pongs and close frames are processed. It returns when
// the connection dies and unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { _ = c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Warn("Websocket read failed",
					slog.Uint64("user_id", uint64(c.UserID)),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		c.handleFrame(raw)
	}
}

// handleFrame answers application-level pings, which browsers need because they cannot
// send websocket ping frames. Anything else is ignored.
func (c *Client) handleFrame(raw []byte) {
	var f ControlFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return
	}
	if f.Type == FramePing {
		c.TrySend(EncodeControl(FramePong, ""))
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues message without blocking. A full buffer drops the message and tells the
// client to re-fetch.
func (c *Client) TrySend(message []byte) {
	defer func() {
		if r := recover(); r != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues(hubName, "closed").Inc()
		}
	}()

	select {
	case c.Send <- message:
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues(hubName, "full").Inc()
		middleware.Logger.Warn("Websocket buffer full, dropped message", slog.Uint64("user_id", uint64(c.UserID)))

		select {
		case c.Send <- EncodeControl(FrameDropped, "buffer_full"):
		default:
		}
	}
}
