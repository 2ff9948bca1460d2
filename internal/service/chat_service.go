package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yourorg/forum-chat/internal/apperr"
	"github.com/yourorg/forum-chat/internal/metrics"
	"github.com/yourorg/forum-chat/internal/models"
	"github.com/yourorg/forum-chat/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ChannelStore resolves and creates community channels.
type ChannelStore interface {
	GetOrCreate(ctx context.Context, communityID string) (*models.Channel, error)
	GetByID(ctx context.Context, channelID string) (*models.Channel, error)
}

// MessageStore is the single source of truth for message content and order.
type MessageStore interface {
	Insert(ctx context.Context, channelID, authorID, content, msgType, attachmentID, clientToken string) (*models.Message, error)
	GetByID(ctx context.Context, messageID string) (*models.Message, error)
	Edit(ctx context.Context, messageID, newContent string) (*models.Message, error)
	SoftDelete(ctx context.Context, messageID string) (*models.Message, error)
	List(ctx context.Context, channelID string, after *repository.Cursor, limit int64) ([]*models.Message, error)
}

// AttachmentStore answers whether an attachment reference is durable.
type AttachmentStore interface {
	GetByID(ctx context.Context, id string) (*models.Attachment, error)
	MarkAttached(ctx context.Context, id string) error
}

// Presence is the ephemeral per-channel activity record.
type Presence interface {
	Heartbeat(ctx context.Context, channelID, userID string) error
	OnlineCount(ctx context.Context, channelID string) (int64, error)
	Typing(ctx context.Context, channelID, userID string) error
	TypingUsers(ctx context.Context, channelID string) ([]string, error)
}

// Publisher fans a committed event out to channel subscribers.
type Publisher interface {
	Publish(ctx context.Context, channelID, eventType string, payload any) (models.Event, error)
}

// Notifier hands message notifications to the platform's delivery service.
type Notifier interface {
	MessageCreated(m *models.Message) error
}

// ChatService implements the channel/message/presence protocol. Every
// mutation follows write-then-publish: the bus only ever sees events for
// writes that durably committed.
type ChatService struct {
	channels    ChannelStore
	messages    MessageStore
	attachments AttachmentStore
	presence    Presence
	bus         Publisher
	membership  repository.Membership
	notifier    Notifier
	logger      *zap.SugaredLogger
}

func NewChatService(
	channels ChannelStore,
	messages MessageStore,
	attachments AttachmentStore,
	presence Presence,
	bus Publisher,
	membership repository.Membership,
	notifier Notifier,
	logger *zap.SugaredLogger,
) *ChatService {
	return &ChatService{
		channels:    channels,
		messages:    messages,
		attachments: attachments,
		presence:    presence,
		bus:         bus,
		membership:  membership,
		notifier:    notifier,
		logger:      logger,
	}
}

// GetOrCreateChannel resolves the community's channel, creating it on
// first use. Idempotent and race-safe; the caller must belong to the
// community.
func (s *ChatService) GetOrCreateChannel(ctx context.Context, communityID, userID string) (*models.Channel, error) {
	if err := s.membership.CommunityExists(ctx, communityID); err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, communityID, userID); err != nil {
		return nil, err
	}
	return s.channels.GetOrCreate(ctx, communityID)
}

// authorizeChannel checks the channel exists and the caller is a member of
// its community.
func (s *ChatService) authorizeChannel(ctx context.Context, channelID, userID string) (*models.Channel, error) {
	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, ch.CommunityID, userID); err != nil {
		return nil, err
	}
	return ch, nil
}

func (s *ChatService) requireMember(ctx context.Context, communityID, userID string) error {
	ok, err := s.membership.IsMember(ctx, communityID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: not a member of community %s", apperr.ErrForbidden, communityID)
	}
	return nil
}

// CreateMessage appends a message and, once committed, publishes
// MESSAGE_CREATED to every subscriber.
func (s *ChatService) CreateMessage(ctx context.Context, channelID, authorID, content, msgType, attachmentID, clientToken string) (*models.Message, error) {
	if _, err := s.authorizeChannel(ctx, channelID, authorID); err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" && attachmentID == "" {
		return nil, fmt.Errorf("%w: empty message", apperr.ErrValidation)
	}
	if msgType == "" {
		msgType = models.MessageTypeText
		if attachmentID != "" {
			msgType = models.MessageTypeFile
		}
	}
	if msgType == models.MessageTypeFile && attachmentID == "" {
		return nil, fmt.Errorf("%w: file message without attachment", apperr.ErrValidation)
	}
	if attachmentID != "" {
		// The attachment must already be durable; a message never
		// references an upload that could still fail. Checked for any
		// message carrying a reference, not just FILE.
		if _, err := s.attachments.GetByID(ctx, attachmentID); err != nil {
			return nil, err
		}
	}

	m, err := s.messages.Insert(ctx, channelID, authorID, content, msgType, attachmentID, clientToken)
	if err != nil {
		return nil, err
	}
	metrics.MessagesCreated.Inc()

	if attachmentID != "" {
		if err := s.attachments.MarkAttached(ctx, attachmentID); err != nil {
			s.logger.Warnw("mark attached failed", "attachment", attachmentID, "err", err)
		}
	}

	if _, err := s.bus.Publish(ctx, channelID, models.EventMessageCreated, m); err != nil {
		s.logger.Errorw("publish message_created failed", "message", m.ID, "err", err)
	}
	if s.notifier != nil {
		if err := s.notifier.MessageCreated(m); err != nil {
			s.logger.Warnw("notify message_created failed", "message", m.ID, "err", err)
		}
	}
	return m, nil
}

// EditMessage updates content on the author's own live message.
func (s *ChatService) EditMessage(ctx context.Context, messageID, userID, newContent string) (*models.Message, error) {
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return nil, fmt.Errorf("%w: empty content", apperr.ErrValidation)
	}
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.Deleted() {
		return nil, fmt.Errorf("%w: message deleted", apperr.ErrNotFound)
	}
	if m.AuthorID != userID {
		return nil, fmt.Errorf("%w: only the author can edit", apperr.ErrForbidden)
	}

	updated, err := s.messages.Edit(ctx, messageID, newContent)
	if err != nil {
		return nil, err
	}
	if _, err := s.bus.Publish(ctx, updated.ChannelID, models.EventMessageUpdated, updated); err != nil {
		s.logger.Errorw("publish message_updated failed", "message", updated.ID, "err", err)
	}
	return updated, nil
}

// DeleteMessage soft-deletes the author's own message. Deleting an
// already-deleted message is a no-op, not an error, and publishes nothing.
func (s *ChatService) DeleteMessage(ctx context.Context, messageID, userID string) error {
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if m.AuthorID != userID {
		return fmt.Errorf("%w: only the author can delete", apperr.ErrForbidden)
	}
	if m.Deleted() {
		return nil
	}

	deleted, err := s.messages.SoftDelete(ctx, messageID)
	if err != nil {
		return err
	}
	if deleted == nil {
		// Raced with another delete of the same message.
		return nil
	}
	if _, err := s.bus.Publish(ctx, deleted.ChannelID, models.EventMessageDeleted, deleted); err != nil {
		s.logger.Errorw("publish message_deleted failed", "message", deleted.ID, "err", err)
	}
	return nil
}

// ListMessages pages the channel history after an opaque cursor.
func (s *ChatService) ListMessages(ctx context.Context, channelID, userID, cursorStr string, limit int64) ([]*models.Message, string, error) {
	if _, err := s.authorizeChannel(ctx, channelID, userID); err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	var after *repository.Cursor
	if cursorStr != "" {
		c, err := repository.DecodeCursor(cursorStr)
		if err != nil {
			return nil, "", err
		}
		after = &c
	}
	msgs, err := s.messages.List(ctx, channelID, after, limit)
	if err != nil {
		return nil, "", err
	}
	next := ""
	if len(msgs) > 0 {
		next = repository.CursorFor(msgs[len(msgs)-1]).Encode()
	}
	return msgs, next, nil
}

// Heartbeat refreshes the caller's presence and broadcasts the channel's
// online count. Failures stay silent on the wire; the next heartbeat
// repairs the signal.
func (s *ChatService) Heartbeat(ctx context.Context, channelID, userID string) error {
	if err := s.presence.Heartbeat(ctx, channelID, userID); err != nil {
		return err
	}
	count, err := s.presence.OnlineCount(ctx, channelID)
	if err != nil {
		return err
	}
	_, err = s.bus.Publish(ctx, channelID, models.EventPresence, models.PresencePayload{
		UserID:      userID,
		OnlineCount: count,
	})
	return err
}

// TypingSignal records "typing now"; nothing ever clears it explicitly,
// the server-held TTL expires it.
func (s *ChatService) TypingSignal(ctx context.Context, channelID, userID string) error {
	if err := s.presence.Typing(ctx, channelID, userID); err != nil {
		return err
	}
	users, err := s.presence.TypingUsers(ctx, channelID)
	if err != nil {
		return err
	}
	_, err = s.bus.Publish(ctx, channelID, models.EventTyping, models.TypingPayload{
		UserID: userID,
		Users:  users,
	})
	return err
}

// OnlineCount reads the channel's active-user count at call time.
func (s *ChatService) OnlineCount(ctx context.Context, channelID string) (int64, error) {
	return s.presence.OnlineCount(ctx, channelID)
}

// AuthorizeSubscribe validates channel and membership for an event-stream
// attach.
func (s *ChatService) AuthorizeSubscribe(ctx context.Context, channelID, userID string) error {
	_, err := s.authorizeChannel(ctx, channelID, userID)
	return err
}
