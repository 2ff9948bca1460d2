package models

import "time"

const (
	MessageTypeText = "TEXT"
	MessageTypeFile = "FILE"
)

// Channel is the single conversation scope bound to one community.
type Channel struct {
	ID          string    `bson:"_id" json:"id"`
	CommunityID string    `bson:"community_id" json:"community_id"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

// Message is owned by its author for edit/delete and by the channel for
// ordering. Seq is the per-channel tie-breaker assigned atomically with
// CreatedAt; the wall clock alone is not trusted for ordering.
type Message struct {
	ID           string     `bson:"_id" json:"id"`
	ChannelID    string     `bson:"channel_id" json:"channel_id"`
	AuthorID     string     `bson:"author_id" json:"author_id"`
	Seq          int64      `bson:"seq" json:"seq"`
	Content      string     `bson:"content" json:"content"`
	Type         string     `bson:"type" json:"type"`
	AttachmentID string     `bson:"attachment_id,omitempty" json:"attachment_id,omitempty"`
	ClientToken  string     `bson:"client_token,omitempty" json:"client_token,omitempty"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	EditedAt     *time.Time `bson:"edited_at,omitempty" json:"edited_at,omitempty"`
	DeletedAt    *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

func (m *Message) Deleted() bool { return m.DeletedAt != nil }

// Attachment is immutable once stored.
type Attachment struct {
	ID          string    `bson:"_id" json:"id"`
	Key         string    `bson:"key" json:"key"`
	URL         string    `bson:"url" json:"url"`
	Filename    string    `bson:"filename" json:"filename"`
	MimeType    string    `bson:"mime_type" json:"mime_type"`
	Size        int64     `bson:"size" json:"size"`
	UploaderID  string    `bson:"uploader_id" json:"uploader_id"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	// AttachedAt is set when a message starts referencing the attachment;
	// unattached rows past the orphan TTL are swept out of band.
	AttachedAt *time.Time `bson:"attached_at,omitempty" json:"attached_at,omitempty"`
}
