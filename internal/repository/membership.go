package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/yourorg/forum-chat/internal/apperr"
)

// Membership is the collaborator that answers who belongs to which
// community. The chat core consumes it as given; roles and joins are the
// platform's business.
type Membership interface {
	CommunityExists(ctx context.Context, communityID string) error
	IsMember(ctx context.Context, communityID, userID string) (bool, error)
}

type mongoMembership struct {
	coll *mongo.Collection
}

func NewMongoMembership(db *mongo.Database) Membership {
	return &mongoMembership{coll: db.Collection(collCommunities)}
}

func (m *mongoMembership) CommunityExists(ctx context.Context, communityID string) error {
	err := m.coll.FindOne(ctx, bson.M{"_id": communityID}).Err()
	if err == mongo.ErrNoDocuments {
		return apperr.ErrNotFound
	}
	return err
}

func (m *mongoMembership) IsMember(ctx context.Context, communityID, userID string) (bool, error) {
	err := m.coll.FindOne(ctx, bson.M{"_id": communityID, "members": userID}).Err()
	if err == nil {
		return true, nil
	}
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	return false, err
}
