package tracking

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const DefaultCaptureInterval = 60 * time.Second

var optionsValidator = validator.New()

// Options configures one driver tracking session.
type Options struct {
	DriverID string `validate:"required"`

	// TripID associates captures with a specific trip. Optional; the
	// record shape is the same either way.
	TripID string

	// Interval between periodic captures. Zero means the default.
	Interval time.Duration `validate:"omitempty,gte=1ms"`

	// UserAgent is recorded in each persisted record's metadata.
	UserAgent string
}

func (o *Options) Validate() error {
	if err := optionsValidator.Struct(o); err != nil {
		return err
	}

	if o.Interval == 0 {
		o.Interval = DefaultCaptureInterval
	}

	return nil
}
