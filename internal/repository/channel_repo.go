package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/yourorg/forum-chat/internal/apperr"
	"github.com/yourorg/forum-chat/internal/models"
)

type ChannelRepo struct {
	coll *mongo.Collection
}

func NewChannelRepo(db *mongo.Database) *ChannelRepo {
	return &ChannelRepo{coll: db.Collection(collChannels)}
}

// GetOrCreate resolves the one channel belonging to a community, creating
// it on first use. Two callers racing to create resolve to the same row:
// the unique index on community_id turns the loser's insert into a
// duplicate-key error and it re-fetches the winner's channel.
func (r *ChannelRepo) GetOrCreate(ctx context.Context, communityID string) (*models.Channel, error) {
	var existing models.Channel
	err := r.coll.FindOne(ctx, bson.M{"community_id": communityID}).Decode(&existing)
	if err == nil {
		return &existing, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	ch := &models.Channel{
		ID:          uuid.NewString(),
		CommunityID: communityID,
		CreatedAt:   time.Now().UTC(),
	}
	_, err = r.coll.InsertOne(ctx, ch)
	if err == nil {
		return ch, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, err
	}
	// Lost the creation race; the winner's row must be there now.
	if ferr := r.coll.FindOne(ctx, bson.M{"community_id": communityID}).Decode(&existing); ferr != nil {
		return nil, apperr.ErrConflict
	}
	return &existing, nil
}

func (r *ChannelRepo) GetByID(ctx context.Context, channelID string) (*models.Channel, error) {
	var ch models.Channel
	if err := r.coll.FindOne(ctx, bson.M{"_id": channelID}).Decode(&ch); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &ch, nil
}
