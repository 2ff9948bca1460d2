package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/forum-chat/internal/models"
)

func newTestBus(buffer int) *Bus {
	return New(buffer, zap.NewNop().Sugar())
}

func drain(sub *Subscription) []models.Event {
	var out []models.Event
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	b := newTestBus(8)
	ctx := context.Background()

	s1 := b.Subscribe("ch1")
	s2 := b.Subscribe("ch1")

	_, err := b.Publish(ctx, "ch1", models.EventMessageCreated, map[string]string{"id": "m1"})
	require.NoError(t, err)

	for _, s := range []*Subscription{s1, s2} {
		evs := drain(s)
		require.Len(t, evs, 1)
		assert.Equal(t, models.EventMessageCreated, evs[0].Type)
		assert.Equal(t, int64(1), evs[0].Seq)
	}
}

func TestSeqStrictlyIncreasesPerChannel(t *testing.T) {
	b := newTestBus(16)
	ctx := context.Background()
	sub := b.Subscribe("ch1")

	for i := 0; i < 5; i++ {
		_, err := b.Publish(ctx, "ch1", models.EventMessageCreated, i)
		require.NoError(t, err)
	}
	evs := drain(sub)
	require.Len(t, evs, 5)
	for i, ev := range evs {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
}

func TestChannelsAreIsolated(t *testing.T) {
	b := newTestBus(8)
	ctx := context.Background()

	s1 := b.Subscribe("ch1")
	s2 := b.Subscribe("ch2")

	_, _ = b.Publish(ctx, "ch1", models.EventTyping, models.TypingPayload{UserID: "u1"})

	assert.Len(t, drain(s1), 1)
	assert.Empty(t, drain(s2))
}

func TestEphemeralEventsDroppedUnderBackpressure(t *testing.T) {
	b := newTestBus(1)
	ctx := context.Background()
	sub := b.Subscribe("ch1")

	_, _ = b.Publish(ctx, "ch1", models.EventTyping, models.TypingPayload{UserID: "u1"})
	_, _ = b.Publish(ctx, "ch1", models.EventTyping, models.TypingPayload{UserID: "u2"})
	_, _ = b.Publish(ctx, "ch1", models.EventPresence, models.PresencePayload{UserID: "u1"})

	evs := drain(sub)
	require.Len(t, evs, 1, "full buffer sheds typing/presence")
	assert.False(t, sub.NeedsResync(), "shedding ephemeral events is not a resync")

	// The stream stays live for later events.
	_, _ = b.Publish(ctx, "ch1", models.EventTyping, models.TypingPayload{UserID: "u3"})
	assert.Len(t, drain(sub), 1)
}

func TestDurableBackpressureForcesResync(t *testing.T) {
	b := newTestBus(1)
	ctx := context.Background()
	sub := b.Subscribe("ch1")

	_, _ = b.Publish(ctx, "ch1", models.EventMessageCreated, map[string]string{"id": "m1"})
	_, _ = b.Publish(ctx, "ch1", models.EventMessageCreated, map[string]string{"id": "m2"})

	// The subscriber got the first event, then its stream was cut rather
	// than silently losing m2.
	evs := drain(sub)
	require.Len(t, evs, 1)
	_, open := <-sub.Events()
	assert.False(t, open, "stream closed for lagging subscriber")
	assert.True(t, sub.NeedsResync())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := newTestBus(8)
	ctx := context.Background()
	sub := b.Subscribe("ch1")

	b.Unsubscribe(sub)
	_, _ = b.Publish(ctx, "ch1", models.EventMessageCreated, map[string]string{"id": "m1"})

	_, open := <-sub.Events()
	assert.False(t, open)
	assert.False(t, sub.NeedsResync())
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := newTestBus(8)
	sub := b.Subscribe("ch1")
	b.Unsubscribe(sub)
	b.Unsubscribe(sub) // must not panic on double close
}

func TestSeqNeverReusedAfterHubGC(t *testing.T) {
	b := newTestBus(8)
	ctx := context.Background()

	s1 := b.Subscribe("ch1")
	_, _ = b.Publish(ctx, "ch1", models.EventMessageCreated, 1)
	_, _ = b.Publish(ctx, "ch1", models.EventMessageCreated, 2)
	b.Unsubscribe(s1) // channel hub is garbage collected here

	s2 := b.Subscribe("ch1")
	ev, err := b.Publish(ctx, "ch1", models.EventMessageCreated, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), ev.Seq)

	evs := drain(s2)
	require.Len(t, evs, 1)
	assert.Equal(t, int64(3), evs[0].Seq)
}

func TestMirrorReceivesOnlyDurableEvents(t *testing.T) {
	b := newTestBus(8)
	ctx := context.Background()

	var mirrored []models.Event
	b.Mirror = func(ctx context.Context, ev models.Event) error {
		mirrored = append(mirrored, ev)
		return nil
	}

	_, _ = b.Publish(ctx, "ch1", models.EventMessageCreated, 1)
	_, _ = b.Publish(ctx, "ch1", models.EventTyping, models.TypingPayload{UserID: "u1"})
	_, _ = b.Publish(ctx, "ch1", models.EventMessageDeleted, 2)

	require.Len(t, mirrored, 2)
	assert.Equal(t, models.EventMessageCreated, mirrored[0].Type)
	assert.Equal(t, models.EventMessageDeleted, mirrored[1].Type)
}

func TestForwardDeliversRemoteEventsAsIs(t *testing.T) {
	b := newTestBus(8)
	b.Origin = "inst-a"
	sub := b.Subscribe("ch1")

	b.Forward(models.Event{ChannelID: "ch1", Seq: 42, Type: models.EventMessageCreated, Origin: "inst-b"})

	evs := drain(sub)
	require.Len(t, evs, 1)
	assert.Equal(t, int64(42), evs[0].Seq, "origin seq preserved")
}

func TestForwardSkipsOwnMirroredEvents(t *testing.T) {
	b := newTestBus(8)
	b.Origin = "inst-a"
	ctx := context.Background()

	var mirrored []models.Event
	b.Mirror = func(ctx context.Context, ev models.Event) error {
		mirrored = append(mirrored, ev)
		return nil
	}

	sub := b.Subscribe("ch1")
	_, _ = b.Publish(ctx, "ch1", models.EventMessageCreated, map[string]string{"id": "m1"})
	_, _ = b.Publish(ctx, "ch1", models.EventMessageCreated, map[string]string{"id": "m2"})

	// The mirror topic hands this instance's own events back to it.
	for _, ev := range mirrored {
		b.Forward(ev)
	}

	evs := drain(sub)
	require.Len(t, evs, 2, "each event delivered exactly once")
	assert.Equal(t, int64(1), evs[0].Seq)
	assert.Equal(t, int64(2), evs[1].Seq)
}

func TestPublishUsesSharedSeqAllocator(t *testing.T) {
	b := newTestBus(8)
	ctx := context.Background()

	next := int64(41)
	b.NextSeq = func(ctx context.Context, channelID string) (int64, error) {
		next++
		return next, nil
	}

	sub := b.Subscribe("ch1")
	ev1, err := b.Publish(ctx, "ch1", models.EventMessageCreated, 1)
	require.NoError(t, err)
	ev2, err := b.Publish(ctx, "ch1", models.EventTyping, models.TypingPayload{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, int64(42), ev1.Seq)
	assert.Equal(t, int64(43), ev2.Seq)

	evs := drain(sub)
	require.Len(t, evs, 2)
	assert.Equal(t, int64(42), evs[0].Seq)
	assert.Equal(t, int64(43), evs[1].Seq)
}
