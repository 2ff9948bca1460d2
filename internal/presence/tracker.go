package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tracker keeps the ephemeral per-channel presence and typing state in
// Redis. One sorted set per channel holds user -> last-seen (or typing
// expiry) as the score; writes are last-write-wins ZADD upserts keyed by
// (channel, user), so no cross-user coordination is ever needed. Expiry is
// applied at read time through score-range queries, not by a sweeper.
type Tracker struct {
	client *redis.Client
	prefix string

	window    time.Duration
	typingTTL time.Duration
}

func NewTracker(client *redis.Client, prefix string, window, typingTTL time.Duration) *Tracker {
	return &Tracker{client: client, prefix: prefix, window: window, typingTTL: typingTTL}
}

func (t *Tracker) presenceKey(channelID string) string {
	return fmt.Sprintf("%s:presence:%s", t.prefix, channelID)
}

func (t *Tracker) typingKey(channelID string) string {
	return fmt.Sprintf("%s:typing:%s", t.prefix, channelID)
}

// Heartbeat upserts last_seen = now. The key's TTL is refreshed on every
// write so an abandoned channel's set garbage-collects itself.
func (t *Tracker) Heartbeat(ctx context.Context, channelID, userID string) error {
	key := t.presenceKey(channelID)
	now := time.Now()
	if err := t.client.ZAdd(ctx, key, redis.Z{Score: float64(now.Unix()), Member: userID}).Err(); err != nil {
		return err
	}
	return t.client.Expire(ctx, key, 2*t.window).Err()
}

// OnlineCount counts distinct users seen within the presence window.
// Members that fell out of the window are trimmed while we're here; the
// count itself never depends on the trim having happened.
func (t *Tracker) OnlineCount(ctx context.Context, channelID string) (int64, error) {
	key := t.presenceKey(channelID)
	floor := time.Now().Add(-t.window).Unix()
	_ = t.client.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", floor)).Err()
	return t.client.ZCount(ctx, key, strconv.FormatInt(floor, 10), "+inf").Result()
}

// Typing records that the user is typing right now. The server-held expiry
// is authoritative; no stop-typing call exists, absence of a fresh signal
// is the stop.
func (t *Tracker) Typing(ctx context.Context, channelID, userID string) error {
	key := t.typingKey(channelID)
	expires := time.Now().Add(t.typingTTL)
	if err := t.client.ZAdd(ctx, key, redis.Z{Score: float64(expires.UnixMilli()), Member: userID}).Err(); err != nil {
		return err
	}
	return t.client.Expire(ctx, key, 10*t.typingTTL).Err()
}

// TypingUsers returns the users whose typing signal has not yet expired.
func (t *Tracker) TypingUsers(ctx context.Context, channelID string) ([]string, error) {
	key := t.typingKey(channelID)
	now := time.Now().UnixMilli()
	_ = t.client.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", now)).Err()
	return t.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: fmt.Sprintf("(%d", now),
		Max: "+inf",
	}).Result()
}
