package bus

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/yourorg/forum-chat/internal/metrics"
	"github.com/yourorg/forum-chat/internal/models"
)

// Bus fans committed events out to every current subscriber of a channel.
// Each subscription is independent and cancellable; there is no shared
// handler slot for a later caller to overwrite. Channels are isolated:
// a slow subscriber on one channel never stalls another.
type Bus struct {
	mu     sync.RWMutex
	hubs   map[string]*channelHub
	seqs   map[string]int64 // survives hub GC so a channel's seq is never reused
	buffer int
	logger *zap.SugaredLogger

	// Origin identifies this instance. Published events are stamped with
	// it, and Forward drops events carrying it: the instance's own events
	// come back on the mirror topic, but local subscribers already saw
	// them at publish time.
	Origin string

	// Mirror, when set, receives every committed durable event after local
	// fan-out (cross-instance delivery, notification feeds).
	Mirror func(ctx context.Context, ev models.Event) error

	// NextSeq, when set, replaces the in-memory counter as the seq
	// allocator. Multi-instance deployments point it at a shared counter
	// so one channel's seqs stay strictly increasing across all
	// publishers; a single instance keeps the local counter.
	NextSeq func(ctx context.Context, channelID string) (int64, error)
}

type channelHub struct {
	subs map[*Subscription]struct{}
}

// Subscription is one attached consumer of a channel's event stream.
type Subscription struct {
	ChannelID string

	ch     chan models.Event
	closed bool
	resync bool
}

// Events is the stream. It is closed on Unsubscribe, or by the bus itself
// when the subscriber falls too far behind; check NeedsResync afterwards.
func (s *Subscription) Events() <-chan models.Event { return s.ch }

// NeedsResync reports whether the stream was cut because a durable event
// could not be buffered. The client should replay listMessages from its
// last cursor before re-subscribing.
func (s *Subscription) NeedsResync() bool { return s.resync }

func New(buffer int, logger *zap.SugaredLogger) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		hubs:   make(map[string]*channelHub),
		seqs:   make(map[string]int64),
		buffer: buffer,
		logger: logger,
	}
}

func (b *Bus) Subscribe(channelID string) *Subscription {
	sub := &Subscription{
		ChannelID: channelID,
		ch:        make(chan models.Event, b.buffer),
	}
	b.mu.Lock()
	hub, ok := b.hubs[channelID]
	if !ok {
		hub = &channelHub{subs: make(map[*Subscription]struct{})}
		b.hubs[channelID] = hub
	}
	hub.subs[sub] = struct{}{}
	b.mu.Unlock()
	metrics.Subscribers.Inc()
	return sub
}

// Unsubscribe stops delivery immediately. No events arrive after it
// returns.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove(sub)
}

// remove must be called with b.mu held.
func (b *Bus) remove(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	if hub, ok := b.hubs[sub.ChannelID]; ok {
		delete(hub.subs, sub)
		if len(hub.subs) == 0 {
			delete(b.hubs, sub.ChannelID)
		}
	}
	close(sub.ch)
	metrics.Subscribers.Dec()
}

// Publish assigns the channel's next seq and delivers to every subscriber.
// It must only be called after the triggering write has durably committed.
// Typing/presence events are shed for a full subscriber; a subscriber that
// cannot absorb a durable MESSAGE_* event is cut loose with a resync flag
// instead, since silently dropping it would corrupt its view.
func (b *Bus) Publish(ctx context.Context, channelID, eventType string, payload any) (models.Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return models.Event{}, err
	}

	// The shared allocator is a remote call and must not run under the
	// fan-out lock. Allocation stays serialized on the counter itself.
	var seq int64
	if b.NextSeq != nil {
		if seq, err = b.NextSeq(ctx, channelID); err != nil {
			return models.Event{}, err
		}
	}

	b.mu.Lock()
	if b.NextSeq == nil {
		b.seqs[channelID]++
		seq = b.seqs[channelID]
	}
	ev := models.Event{
		ChannelID: channelID,
		Seq:       seq,
		Type:      eventType,
		Origin:    b.Origin,
		Payload:   body,
	}
	b.deliver(ev)
	b.mu.Unlock()

	metrics.EventsPublished.WithLabelValues(eventType).Inc()
	if b.Mirror != nil && models.Durable(eventType) {
		if merr := b.Mirror(ctx, ev); merr != nil {
			b.logger.Warnw("event mirror publish failed", "channel", channelID, "seq", ev.Seq, "err", merr)
		}
	}
	return ev, nil
}

// Forward injects an event mirrored from another instance, keeping its
// origin seq. Events this instance published itself are skipped, so a
// subscriber never sees a local event twice. Delivery from peers is
// at-least-once; clients dedupe durable events by message id.
func (b *Bus) Forward(ev models.Event) {
	if b.Origin != "" && ev.Origin == b.Origin {
		return
	}
	b.mu.Lock()
	b.deliver(ev)
	b.mu.Unlock()
}

// deliver must be called with b.mu held.
func (b *Bus) deliver(ev models.Event) {
	hub, ok := b.hubs[ev.ChannelID]
	if !ok {
		return
	}
	for sub := range hub.subs {
		select {
		case sub.ch <- ev:
		default:
			if models.Durable(ev.Type) {
				sub.resync = true
				b.remove(sub)
				metrics.SubscribersResynced.Inc()
				b.logger.Warnw("subscriber behind, forcing resync", "channel", ev.ChannelID, "seq", ev.Seq)
			} else {
				metrics.EventsDropped.WithLabelValues(ev.Type).Inc()
			}
		}
	}
}
