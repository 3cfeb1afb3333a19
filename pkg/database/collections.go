package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func createIndexes() {
	createLocationRecordsIndexes()
}

func createLocationRecordsIndexes() {
	locationRecordsCollection := GetCollection("location_records")
	locationRecordsIndex := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "driverid", Value: 1},
				{Key: "capturedat", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "tripid", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "longitude", Value: 1},
				{Key: "latitude", Value: 1},
			},
		},
	}

	opts := options.CreateIndexes()
	_, err := locationRecordsCollection.Indexes().CreateMany(context.Background(), locationRecordsIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}
