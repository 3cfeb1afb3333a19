package routes

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/navetta/navetta/pkg/api/live"
	"github.com/navetta/navetta/pkg/database"
	"github.com/navetta/navetta/pkg/model"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func DriversRouter(router fiber.Router) {
	router.Get("/:identifier/locations", getDriverLocations)
	router.Get("/:identifier/locations/latest", getDriverLatestLocation)
	router.Get("/:identifier/status", getDriverStatus)
}

func getDriverLocations(c *fiber.Ctx) error {
	identifier := c.Params("identifier")

	limit := 50
	if limitQuery := c.Query("limit"); limitQuery != "" {
		if n, err := strconv.Atoi(limitQuery); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	locationRecords := []model.LocationRecord{}

	collection := database.GetCollection("location_records")

	findOptions := options.Find()
	findOptions.SetSort(bson.D{{Key: "capturedat", Value: -1}})
	findOptions.SetLimit(int64(limit))

	cursor, err := collection.Find(context.Background(), bson.M{"driverid": identifier}, findOptions)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Failed to query location records",
		})
	}

	for cursor.Next(context.TODO()) {
		var locationRecord model.LocationRecord
		if err := cursor.Decode(&locationRecord); err != nil {
			log.Error().Err(err).Msg("Failed to decode location record")
			continue
		}

		locationRecords = append(locationRecords, locationRecord)
	}

	locationRecordsReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: []string{"basic", "detailed"},
	}, locationRecords)

	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sorry something went wrong",
		})
	}

	return c.JSON(locationRecordsReduced)
}

func getDriverLatestLocation(c *fiber.Ctx) error {
	identifier := c.Params("identifier")

	// Live broadcast first, stored record as the fallback.
	if location := live.Latest(identifier); location != nil {
		return c.JSON(fiber.Map{
			"source":   "live",
			"location": location,
		})
	}

	collection := database.GetCollection("location_records")

	findOneOptions := options.FindOne()
	findOneOptions.SetSort(bson.D{{Key: "capturedat", Value: -1}})

	var locationRecord model.LocationRecord
	err := collection.FindOne(context.Background(), bson.M{"driverid": identifier}, findOneOptions).Decode(&locationRecord)
	if err != nil {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "No location known for this driver",
		})
	}

	locationRecordReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: []string{"basic", "detailed"},
	}, locationRecord)

	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sorry something went wrong",
		})
	}

	return c.JSON(fiber.Map{
		"source":   "store",
		"location": locationRecordReduced,
	})
}

func getDriverStatus(c *fiber.Ctx) error {
	identifier := c.Params("identifier")

	status := live.Status(identifier)
	if status == nil {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "No active tracking session for this driver",
		})
	}

	return c.JSON(status)
}
