package locationstore

import (
	"context"

	"github.com/navetta/navetta/pkg/model"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type locationRecordInsert struct {
	OperationType string               `bson:"operationType"`
	FullDocument  model.LocationRecord `bson:"fullDocument"`
}

// Watch tails the collection's change stream and invokes onInsert for
// every new record. It blocks until ctx is cancelled or the stream
// fails. Records are append only so inserts are the only operation of
// interest.
func (s *MongoStore) Watch(ctx context.Context, onInsert func(model.LocationRecord)) error {
	log.Info().Str("collection", collectionName).Msg("Starting watch on collection")

	matchPipeline := bson.D{
		{
			Key: "$match", Value: bson.D{
				{Key: "operationType", Value: "insert"},
			},
		},
	}

	stream, err := s.collection().Watch(ctx, mongo.Pipeline{matchPipeline})
	if err != nil {
		return err
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var insert locationRecordInsert
		if err := stream.Decode(&insert); err != nil {
			log.Error().Err(err).Msg("Failed to decode location record insert")
			continue
		}

		onInsert(insert.FullDocument)
	}

	return stream.Err()
}
