package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yourorg/forum-chat/internal/bus"
	"github.com/yourorg/forum-chat/internal/service"
)

const (
	pongWait      = 60 * time.Second
	pingInterval  = 30 * time.Second
	writeDeadline = 10 * time.Second
	maxMsgSize    = 4 * 1024
)

// Envelope is the client-to-server frame on the event stream. Messages
// themselves go over REST; the socket only carries presence signals.
type Envelope struct {
	Type string `json:"type"` // "heartbeat" | "typing"
}

type controlFrame struct {
	Type string `json:"type"`
}

// Handler upgrades authenticated clients onto a channel's event stream.
type Handler struct {
	chat   *service.ChatService
	bus    *bus.Bus
	logger *zap.SugaredLogger
}

func NewHandler(chat *service.ChatService, b *bus.Bus, logger *zap.SugaredLogger) *Handler {
	return &Handler{chat: chat, bus: b, logger: logger}
}

// Serve runs one subscriber connection until the client goes away or the
// bus cuts it loose. user_id is trusted from the middleware, never from
// the client.
func (h *Handler) Serve(c *websocket.Conn) {
	channelID := c.Query("channel_id")
	userID, _ := c.Locals("user_id").(string)
	if channelID == "" || userID == "" {
		_ = c.WriteJSON(map[string]string{"error": "missing channel_id"})
		_ = c.Close()
		return
	}

	ctx := context.Background()
	if err := h.chat.AuthorizeSubscribe(ctx, channelID, userID); err != nil {
		_ = c.WriteJSON(map[string]string{"error": err.Error()})
		_ = c.Close()
		return
	}

	sub := h.bus.Subscribe(channelID)
	defer h.bus.Unsubscribe(sub)

	// Connecting counts as presence.
	if err := h.chat.Heartbeat(ctx, channelID, userID); err != nil {
		h.logger.Warnw("initial heartbeat failed", "channel", channelID, "err", err)
	}

	writerDone := make(chan struct{})
	go h.writePump(c, sub, writerDone)

	h.readPump(ctx, c, channelID, userID)

	// Reader is gone; unsubscribing closes the event stream, which stops
	// the writer. No events are delivered past this point.
	h.bus.Unsubscribe(sub)
	<-writerDone
	_ = c.Close()
}

// writePump forwards events in seq order and keeps the connection alive
// with pings. One goroutine per subscriber applies events serially.
func (h *Handler) writePump(c *websocket.Conn, sub *bus.Subscription, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				if sub.NeedsResync() {
					_ = c.SetWriteDeadline(time.Now().Add(writeDeadline))
					_ = c.WriteJSON(controlFrame{Type: "resync"})
				}
				_ = c.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			_ = c.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}

// readPump consumes heartbeat/typing envelopes. Typing is rate-limited per
// connection; the server-held TTL, not client timing, decides expiry.
func (h *Handler) readPump(ctx context.Context, c *websocket.Conn, channelID, userID string) {
	typingLimiter := rate.NewLimiter(rate.Every(time.Second), 2)

	c.SetReadLimit(maxMsgSize)
	_ = c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch env.Type {
		case "heartbeat":
			if err := h.chat.Heartbeat(ctx, channelID, userID); err != nil {
				h.logger.Warnw("heartbeat failed", "channel", channelID, "err", err)
			}
		case "typing":
			if !typingLimiter.Allow() {
				continue
			}
			if err := h.chat.TypingSignal(ctx, channelID, userID); err != nil {
				h.logger.Warnw("typing signal failed", "channel", channelID, "err", err)
			}
		}
	}
}
