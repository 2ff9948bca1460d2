package notify

import (
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/yourorg/forum-chat/internal/models"
)

const subjectMessageCreated = "chat.message.created"

// Publisher hands new-message notifications to the platform's notification
// service. Delivery there is fire-and-forget; chat correctness never
// depends on it.
type Publisher struct {
	nc *nats.Conn
}

func NewPublisher(url string) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc}, nil
}

func (p *Publisher) MessageCreated(m *models.Message) error {
	if p == nil || p.nc == nil {
		return nil
	}
	b, err := json.Marshal(map[string]any{
		"message_id": m.ID,
		"channel_id": m.ChannelID,
		"author_id":  m.AuthorID,
		"created_at": m.CreatedAt,
	})
	if err != nil {
		return err
	}
	return p.nc.Publish(subjectMessageCreated, b)
}

func (p *Publisher) Close() {
	if p != nil && p.nc != nil {
		p.nc.Close()
	}
}
