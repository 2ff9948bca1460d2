package models

import "encoding/json"

const (
	EventMessageCreated = "MESSAGE_CREATED"
	EventMessageUpdated = "MESSAGE_UPDATED"
	EventMessageDeleted = "MESSAGE_DELETED"
	EventTyping         = "TYPING"
	EventPresence       = "PRESENCE"
)

// Event is what subscribers receive. Seq is per-channel, strictly
// increasing, never reused; it is the sole ordering tie-breaker. Origin
// identifies the publishing instance so a mirror consumer can tell its
// own events apart from a peer's.
type Event struct {
	ChannelID string          `json:"channel_id"`
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Origin    string          `json:"origin,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// Durable returns true for event types that must never be dropped for a
// subscriber. Typing and presence signals are re-derivable from the next
// client call and may be shed under backpressure.
func Durable(eventType string) bool {
	switch eventType {
	case EventMessageCreated, EventMessageUpdated, EventMessageDeleted:
		return true
	}
	return false
}

// TypingPayload and PresencePayload are the bodies of the ephemeral events.
type TypingPayload struct {
	UserID string   `json:"user_id"`
	Users  []string `json:"users,omitempty"`
}

type PresencePayload struct {
	UserID      string `json:"user_id"`
	OnlineCount int64  `json:"online_count"`
}
