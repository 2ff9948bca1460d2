package client

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/forum-chat/internal/models"
)

func eventFor(t *testing.T, evType string, m models.Message) models.Event {
	t.Helper()
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return models.Event{ChannelID: m.ChannelID, Type: evType, Payload: b}
}

func TestSendResolvedByDirectResponse(t *testing.T) {
	r := NewReconciler()
	token := r.Compose("hi")
	r.MarkSending(token)

	server := &models.Message{ID: "m1", ChannelID: "ch1", Content: "hi", ClientToken: token}
	r.ResolveSend(token, server)

	e, ok := r.ByToken(token)
	require.True(t, ok)
	assert.Equal(t, Sent, e.State)
	assert.Equal(t, "m1", e.Server.ID)
}

func TestEchoAfterDirectResponseIsNotDoubleInserted(t *testing.T) {
	r := NewReconciler()
	token := r.Compose("hi")
	r.MarkSending(token)

	server := models.Message{ID: "m1", ChannelID: "ch1", Content: "hi", ClientToken: token}
	r.ResolveSend(token, &server)

	// The bus echo for our own send arrives afterwards; merge is a no-op.
	r.Apply(eventFor(t, models.EventMessageCreated, server))

	e, ok := r.Lookup("m1")
	require.True(t, ok)
	assert.Equal(t, Sent, e.State)
	byToken, _ := r.ByToken(token)
	assert.Same(t, e, byToken, "echo matched the existing entry, not a new one")
}

func TestEchoBeforeDirectResponseResolvesByToken(t *testing.T) {
	r := NewReconciler()
	token := r.Compose("hi")
	r.MarkSending(token)

	server := models.Message{ID: "m1", ChannelID: "ch1", Content: "hi", ClientToken: token}
	r.Apply(eventFor(t, models.EventMessageCreated, server))

	e, ok := r.ByToken(token)
	require.True(t, ok)
	assert.Equal(t, Sent, e.State)

	// Slow direct response lands second; still one entry.
	r.ResolveSend(token, &server)
	byID, _ := r.Lookup("m1")
	assert.Same(t, e, byID)
}

func TestFailedSendKeepsRetryAffordance(t *testing.T) {
	r := NewReconciler()
	token := r.Compose("hi")
	r.MarkSending(token)
	r.FailSend(token, errors.New("network down"))

	e, _ := r.ByToken(token)
	assert.Equal(t, Failed, e.State)
	assert.Error(t, e.Err)

	require.True(t, r.Retry(token))
	e, _ = r.ByToken(token)
	assert.Equal(t, Sending, e.State)
	assert.NoError(t, e.Err)

	assert.False(t, r.Retry(token), "retry only applies to failed sends")
}

func TestForeignMessagesMatchByID(t *testing.T) {
	r := NewReconciler()

	other := models.Message{ID: "m9", ChannelID: "ch1", AuthorID: "someone-else", Content: "yo"}
	r.Apply(eventFor(t, models.EventMessageCreated, other))

	e, ok := r.Lookup("m9")
	require.True(t, ok)
	assert.Equal(t, Sent, e.State)

	now := time.Now().UTC()
	other.Content = "yo edited"
	other.EditedAt = &now
	r.Apply(eventFor(t, models.EventMessageUpdated, other))

	e, _ = r.Lookup("m9")
	assert.Equal(t, Edited, e.State)
	assert.Equal(t, "yo edited", e.Content)

	other.Content = ""
	other.DeletedAt = &now
	r.Apply(eventFor(t, models.EventMessageDeleted, other))

	e, _ = r.Lookup("m9")
	assert.Equal(t, Deleted, e.State)
	assert.Empty(t, e.Content)
}

func TestDuplicateForeignCreateIsIgnored(t *testing.T) {
	r := NewReconciler()
	other := models.Message{ID: "m9", ChannelID: "ch1", Content: "yo"}

	r.Apply(eventFor(t, models.EventMessageCreated, other))
	first, _ := r.Lookup("m9")

	// At-least-once delivery: the same create arrives again.
	r.Apply(eventFor(t, models.EventMessageCreated, other))
	second, _ := r.Lookup("m9")
	assert.Same(t, first, second)
}
