package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collChannels    = "channels"
	collCounters    = "channel_counters"
	collMessages    = "messages"
	collAttachments = "attachments"
	collCommunities = "communities"
)

func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the indexes the repositories rely on. The unique
// index on community_id is what makes concurrent channel creation resolve
// to a single row.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(collChannels).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "community_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("community_id_uniq"),
	})
	if err != nil {
		return err
	}
	_, err = db.Collection(collMessages).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "channel_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "seq", Value: 1}},
		Options: options.Index().SetName("channel_order_idx"),
	})
	return err
}
