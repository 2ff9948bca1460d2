package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/yourorg/forum-chat/internal/models"
)

// Forwarder receives events mirrored by peer instances.
type Forwarder interface {
	Forward(ev models.Event)
}

// Consumer ingests the events topic and hands peer-committed events to the
// local fan-out, so subscribers attached to this instance see writes made
// through any instance.
type Consumer struct {
	reader *kafka.Reader
	logger *zap.SugaredLogger
}

func NewConsumer(brokers []string, topic, groupID string, logger *zap.SugaredLogger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	return &Consumer{reader: r, logger: logger}
}

// Run blocks until ctx is cancelled. Read errors back off briefly and
// retry; delivery downstream is at-least-once.
func (c *Consumer) Run(ctx context.Context, fwd Forwarder) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warnw("kafka read failed", "err", err)
			time.Sleep(time.Second)
			continue
		}
		var ev models.Event
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			c.logger.Warnw("bad event payload", "err", err)
			continue
		}
		fwd.Forward(ev)
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }
