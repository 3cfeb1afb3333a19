package dbwatch

import (
	"context"
	"encoding/json"

	"github.com/navetta/navetta/pkg/locationstore"
	"github.com/navetta/navetta/pkg/model"
	"github.com/navetta/navetta/pkg/redis_client"
	"github.com/rs/zerolog/log"
)

const insertFeedChannel = "events_location_records"

// LocationRecordsWatch surfaces location record inserts to dashboard
// consumers over redis pub/sub.
type LocationRecordsWatch struct {
	store *locationstore.MongoStore
}

func NewLocationRecordsWatch() *LocationRecordsWatch {
	return &LocationRecordsWatch{
		store: locationstore.NewMongoStore(),
	}
}

func (w *LocationRecordsWatch) Run(ctx context.Context) {
	err := w.store.Watch(ctx, func(record model.LocationRecord) {
		payload, err := json.Marshal(record)
		if err != nil {
			log.Error().Err(err).Msg("Failed to encode location record event")
			return
		}

		if err := redis_client.Client.Publish(ctx, insertFeedChannel, payload).Err(); err != nil {
			log.Error().Err(err).Msg("Failed to publish location record event")
		}
	})
	if err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("Location records watch failed")
	}
}
