package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/yourorg/forum-chat/internal/apperr"
	"github.com/yourorg/forum-chat/internal/models"
)

type AttachmentRepo struct {
	coll *mongo.Collection
}

func NewAttachmentRepo(db *mongo.Database) *AttachmentRepo {
	return &AttachmentRepo{coll: db.Collection(collAttachments)}
}

// Insert records attachment metadata. Callers only do this after the
// object itself is durably stored.
func (r *AttachmentRepo) Insert(ctx context.Context, a *models.Attachment) error {
	_, err := r.coll.InsertOne(ctx, a)
	return err
}

func (r *AttachmentRepo) GetByID(ctx context.Context, id string) (*models.Attachment, error) {
	var a models.Attachment
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// MarkAttached stamps the attachment as referenced by a message, taking it
// out of the orphan-cleanup window.
func (r *AttachmentRepo) MarkAttached(ctx context.Context, id string) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"attached_at": time.Now().UTC()}})
	return err
}
