package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourorg/forum-chat/internal/apperr"
	"github.com/yourorg/forum-chat/internal/models"
)

type MessageRepo struct {
	coll     *mongo.Collection
	counters *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{
		coll:     db.Collection(collMessages),
		counters: db.Collection(collCounters),
	}
}

// counterUpdate increments the channel's seq and stamps the counter with
// mongod's own clock in the same update document. seq and timestamp come
// from one atomic operation; a higher seq always carries a later (or equal)
// timestamp, regardless of app-server clocks or goroutine scheduling.
func counterUpdate() bson.M {
	return bson.M{
		"$inc":         bson.M{"seq": int64(1)},
		"$currentDate": bson.M{"updated_at": true},
	}
}

// nextSeq allocates the channel's next sequence number and the timestamp
// captured with it. FindOneAndUpdate is the single point of atomic
// increment, so two concurrent inserts on one channel can never share a
// seq or land in ambiguous order.
func (r *MessageRepo) nextSeq(ctx context.Context, channelID string) (int64, time.Time, error) {
	var doc struct {
		Seq       int64     `bson:"seq"`
		UpdatedAt time.Time `bson:"updated_at"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": channelID},
		counterUpdate(),
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, time.Time{}, err
	}
	return doc.Seq, doc.UpdatedAt.UTC(), nil
}

// Insert assigns id, seq and created_at and persists the message.
// created_at is the counter's own stamp, taken atomically with the seq,
// so the persisted (created_at, seq) order never depends on wall-clock
// skew between servers.
func (r *MessageRepo) Insert(ctx context.Context, channelID, authorID, content, msgType, attachmentID, clientToken string) (*models.Message, error) {
	seq, at, err := r.nextSeq(ctx, channelID)
	if err != nil {
		return nil, err
	}
	m := &models.Message{
		ID:           uuid.NewString(),
		ChannelID:    channelID,
		AuthorID:     authorID,
		Seq:          seq,
		Content:      content,
		Type:         msgType,
		AttachmentID: attachmentID,
		ClientToken:  clientToken,
		CreatedAt:    at,
	}
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *MessageRepo) GetByID(ctx context.Context, messageID string) (*models.Message, error) {
	var m models.Message
	if err := r.coll.FindOne(ctx, bson.M{"_id": messageID}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// Edit replaces the content of a live message. The filter re-checks
// deleted_at so an edit can't resurrect a message deleted in between the
// caller's read and this write.
func (r *MessageRepo) Edit(ctx context.Context, messageID, newContent string) (*models.Message, error) {
	now := time.Now().UTC()
	res := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": messageID, "deleted_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"content": newContent, "edited_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var m models.Message
	if err := res.Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// SoftDelete clears the content and stamps deleted_at. Deleting an
// already-deleted message matches nothing and is treated as a no-op.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID string) (*models.Message, error) {
	now := time.Now().UTC()
	res := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": messageID, "deleted_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"content": "", "deleted_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var m models.Message
	if err := res.Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// List returns messages strictly after the cursor in ascending
// (created_at, seq) order.
func (r *MessageRepo) List(ctx context.Context, channelID string, after *Cursor, limit int64) ([]*models.Message, error) {
	filter := bson.M{"channel_id": channelID}
	if after != nil {
		filter["$or"] = bson.A{
			bson.M{"created_at": bson.M{"$gt": after.CreatedAt()}},
			bson.M{"created_at": after.CreatedAt(), "seq": bson.M{"$gt": after.Seq}},
		}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "seq", Value: 1}}).
		SetLimit(limit)
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Message
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, cur.Err()
}
