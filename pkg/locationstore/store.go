package locationstore

import (
	"context"
	"errors"

	"github.com/navetta/navetta/pkg/model"
)

var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Store is the durable home of location records. The tracking pipeline
// only ever inserts; reads and the insert feed belong to the dashboard
// side.
type Store interface {
	Insert(ctx context.Context, record model.LocationRecord) error
}
