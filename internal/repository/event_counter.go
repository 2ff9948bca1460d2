package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EventCounterRepo allocates per-channel event sequence numbers from the
// shared counter document. When several instances publish into one
// channel, every seq still comes from the single atomic increment, so the
// channel's event order is coherent across the fleet.
type EventCounterRepo struct {
	coll *mongo.Collection
}

func NewEventCounterRepo(db *mongo.Database) *EventCounterRepo {
	return &EventCounterRepo{coll: db.Collection(collCounters)}
}

func (r *EventCounterRepo) Next(ctx context.Context, channelID string) (int64, error) {
	var doc struct {
		EventSeq int64 `bson:"event_seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": channelID},
		bson.M{"$inc": bson.M{"event_seq": int64(1)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.EventSeq, nil
}
