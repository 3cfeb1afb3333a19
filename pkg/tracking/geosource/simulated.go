package geosource

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/navetta/navetta/pkg/model"
)

const earthRadiusMeters = 6371000

// RoutePoint is one waypoint of a simulated drive.
type RoutePoint struct {
	Latitude  float64
	Longitude float64
}

// SimulatedSource replays a route at a constant speed, interpolating
// between waypoints. It stands in for a real positioning backend during
// development and in tests.
type SimulatedSource struct {
	mutex sync.Mutex

	route    []RoutePoint
	speedMps float64
	accuracy float64
	startAt  time.Time

	now func() time.Time
}

func NewSimulatedSource(route []RoutePoint, speedMps float64) *SimulatedSource {
	if speedMps <= 0 {
		speedMps = 10
	}

	return &SimulatedSource{
		route:    route,
		speedMps: speedMps,
		accuracy: 5,
		startAt:  time.Now(),

		now: time.Now,
	}
}

func (s *SimulatedSource) CaptureOnce(ctx context.Context) (model.Reading, error) {
	if err := ctx.Err(); err != nil {
		return model.Reading{}, ErrTimeout
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.route) == 0 {
		return model.Reading{}, ErrPositionUnavailable
	}

	return s.readingAt(s.now()), nil
}

func (s *SimulatedSource) Watch(ctx context.Context, onUpdate func(model.Reading)) (Subscription, error) {
	s.mutex.Lock()
	empty := len(s.route) == 0
	s.mutex.Unlock()

	if empty {
		return nil, ErrPositionUnavailable
	}

	watchCtx, cancel := context.WithCancel(ctx)
	finished := make(chan struct{})

	go func() {
		defer close(finished)

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
				s.mutex.Lock()
				reading := s.readingAt(s.now())
				s.mutex.Unlock()

				if watchCtx.Err() == nil {
					onUpdate(reading)
				}
			}
		}
	}()

	return &cancelSubscription{cancel: cancel, finished: finished}, nil
}

// readingAt interpolates the position for the given time along the
// route. Past the final waypoint the vehicle stays put.
func (s *SimulatedSource) readingAt(at time.Time) model.Reading {
	travelled := at.Sub(s.startAt).Seconds() * s.speedMps

	speed := s.speedMps
	heading := 0.0

	position := s.route[0]
	for i := 0; i < len(s.route)-1; i++ {
		from := s.route[i]
		to := s.route[i+1]
		segment := haversineMeters(from, to)

		if travelled <= segment {
			fraction := 0.0
			if segment > 0 {
				fraction = travelled / segment
			}
			position = RoutePoint{
				Latitude:  from.Latitude + (to.Latitude-from.Latitude)*fraction,
				Longitude: from.Longitude + (to.Longitude-from.Longitude)*fraction,
			}
			heading = bearingDegrees(from, to)

			accuracy := s.accuracy
			return model.Reading{
				Latitude:       position.Latitude,
				Longitude:      position.Longitude,
				AccuracyMeters: &accuracy,
				SpeedMps:       &speed,
				HeadingDegrees: &heading,
				CapturedAt:     at,
			}
		}

		travelled -= segment
		position = to
	}

	// Route complete, parked at the destination.
	speed = 0
	accuracy := s.accuracy
	last := s.route[len(s.route)-1]

	return model.Reading{
		Latitude:       last.Latitude,
		Longitude:      last.Longitude,
		AccuracyMeters: &accuracy,
		SpeedMps:       &speed,
		CapturedAt:     at,
	}
}

// cancelSubscription stops the watch goroutine and waits for it, so no
// update callback is running, or can start, once Stop returns.
type cancelSubscription struct {
	once     sync.Once
	cancel   context.CancelFunc
	finished chan struct{}
}

func (s *cancelSubscription) Stop() {
	s.once.Do(s.cancel)
	<-s.finished
}

func haversineMeters(a RoutePoint, b RoutePoint) float64 {
	latA := a.Latitude * math.Pi / 180
	latB := b.Latitude * math.Pi / 180
	deltaLat := (b.Latitude - a.Latitude) * math.Pi / 180
	deltaLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

func bearingDegrees(from RoutePoint, to RoutePoint) float64 {
	latA := from.Latitude * math.Pi / 180
	latB := to.Latitude * math.Pi / 180
	deltaLon := (to.Longitude - from.Longitude) * math.Pi / 180

	y := math.Sin(deltaLon) * math.Cos(latB)
	x := math.Cos(latA)*math.Sin(latB) - math.Sin(latA)*math.Cos(latB)*math.Cos(deltaLon)

	bearing := math.Atan2(y, x) * 180 / math.Pi

	return math.Mod(bearing+360, 360)
}
