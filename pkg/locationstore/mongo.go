package locationstore

import (
	"context"

	"github.com/navetta/navetta/pkg/database"
	"github.com/navetta/navetta/pkg/model"
	"go.mongodb.org/mongo-driver/mongo"
)

const collectionName = "location_records"

// MongoStore persists location records to the location_records
// collection.
type MongoStore struct{}

func NewMongoStore() *MongoStore {
	return &MongoStore{}
}

func (s *MongoStore) Insert(ctx context.Context, record model.LocationRecord) error {
	reading := model.Reading{Latitude: record.Latitude, Longitude: record.Longitude}
	if !reading.Valid() {
		return ErrInvalidCoordinates
	}

	collection := database.GetCollection(collectionName)

	_, err := collection.InsertOne(ctx, record)
	if err != nil {
		return err
	}

	return nil
}

func (s *MongoStore) collection() *mongo.Collection {
	return database.GetCollection(collectionName)
}
