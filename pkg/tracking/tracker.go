package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/navetta/navetta/pkg/connectivity"
	"github.com/navetta/navetta/pkg/locationstore"
	"github.com/navetta/navetta/pkg/model"
	"github.com/navetta/navetta/pkg/tracking/coordinator"
	"github.com/navetta/navetta/pkg/tracking/geosource"
	"github.com/navetta/navetta/pkg/tracking/offlinequeue"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// ErrNotLeader is returned when a capture is requested on an instance
// that is mirroring another instance's session.
var ErrNotLeader = errors.New("instance is not the tracking leader")

// AddressResolver is satisfied by geocoder.Client.
type AddressResolver interface {
	Resolve(ctx context.Context, latitude float64, longitude float64) (string, bool)
}

// Tracker runs a driver tracking session: leader election, periodic
// fresh captures, reverse geocoding, persistence with an offline
// fallback queue and location broadcasts to follower instances.
//
// A recoverable failure never stops the session; the worst outcome of
// any single tick is a recorded error string and a retry on the next
// one.
type Tracker struct {
	options Options

	source   geosource.Source
	resolver AddressResolver
	store    locationstore.Store
	queue    *offlinequeue.Queue
	coord    *coordinator.Coordinator
	monitor  connectivity.Monitor

	mutex        sync.Mutex
	started      bool
	stopLoop     chan struct{}
	loopGroup    *conc.WaitGroup
	watchSub     geosource.Subscription
	lastError    string
	lastLocation *model.ResolvedLocation
	liveReading  *model.Reading
	cancelNotify func()
}

func NewTracker(options Options, source geosource.Source, resolver AddressResolver, store locationstore.Store, bus coordinator.Bus, monitor connectivity.Monitor) (*Tracker, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}

	tracker := &Tracker{
		options: options,

		source:   source,
		resolver: resolver,
		store:    store,
		queue:    offlinequeue.NewQueue(store),
		monitor:  monitor,
	}

	tracker.coord = coordinator.NewCoordinator(options.DriverID, bus)
	tracker.coord.OnLocation = tracker.mirrorLocation
	tracker.coord.OnLeadershipChange = tracker.leadershipChanged

	return tracker, nil
}

// Coordinator exposes the session's coordinator, mainly so callers can
// shorten the election grace period in tests.
func (t *Tracker) Coordinator() *coordinator.Coordinator {
	return t.coord
}

// Start joins the driver's coordination channel and, once this
// instance is elected leader, begins the periodic capture loop. On a
// follower it only mirrors broadcasts.
func (t *Tracker) Start(ctx context.Context) error {
	t.mutex.Lock()
	if t.started {
		t.mutex.Unlock()
		return nil
	}
	t.started = true
	t.mutex.Unlock()

	cancelNotify := t.monitor.Notify(func(online bool) {
		if online && t.IsLeader() {
			t.queue.Flush(context.Background())
		}
	})

	t.mutex.Lock()
	t.cancelNotify = cancelNotify
	t.mutex.Unlock()

	return t.coord.Start(ctx)
}

// Stop ends the session: capture loop, watch subscription, leadership.
// Idempotent; no capture or watch callback fires after it returns.
func (t *Tracker) Stop() {
	t.mutex.Lock()
	if !t.started {
		t.mutex.Unlock()
		return
	}
	t.started = false
	t.mutex.Unlock()

	t.stopCaptureLoop()

	t.mutex.Lock()
	cancelNotify := t.cancelNotify
	t.cancelNotify = nil
	t.mutex.Unlock()

	if cancelNotify != nil {
		cancelNotify()
	}

	t.coord.Close()
}

func (t *Tracker) IsLeader() bool {
	return t.coord.IsLeader()
}

// LastError is the most recent capture failure, readable for UI
// surfacing. Empty after a successful capture.
func (t *Tracker) LastError() string {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.lastError
}

// QueueDepth is the number of records awaiting upload.
func (t *Tracker) QueueDepth() int {
	return t.queue.Len()
}

// LastLocation is the latest resolved capture, own or mirrored.
func (t *Tracker) LastLocation() *model.ResolvedLocation {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.lastLocation
}

// LiveReading is the latest continuous watch position, display only.
func (t *Tracker) LiveReading() *model.Reading {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.liveReading
}

// CaptureLocation performs one immediate capture through the full
// resolve and persist path and returns it, for UI actions that tag a
// trip with "where am I right now". Leader only.
func (t *Tracker) CaptureLocation(ctx context.Context) (model.ResolvedLocation, error) {
	if !t.IsLeader() {
		return model.ResolvedLocation{}, ErrNotLeader
	}

	return t.captureAndPersist(ctx)
}

func (t *Tracker) leadershipChanged(isLeader bool) {
	t.mutex.Lock()
	started := t.started
	t.mutex.Unlock()

	if !started {
		return
	}

	if isLeader {
		t.startCaptureLoop()
	} else {
		t.stopCaptureLoop()
	}
}

func (t *Tracker) startCaptureLoop() {
	t.mutex.Lock()
	if t.stopLoop != nil {
		t.mutex.Unlock()
		return
	}

	stop := make(chan struct{})
	t.stopLoop = stop

	group := conc.NewWaitGroup()
	t.loopGroup = group
	t.mutex.Unlock()

	log.Info().Str("driver", t.options.DriverID).Dur("interval", t.options.Interval).Msg("Starting tracking loop")

	subscription, err := t.source.Watch(context.Background(), t.updateLiveReading)
	if err != nil {
		log.Debug().Err(err).Msg("Continuous position watch unavailable")
	} else {
		t.mutex.Lock()
		t.watchSub = subscription
		t.mutex.Unlock()
	}

	group.Go(func() {
		ticker := time.NewTicker(t.options.Interval)
		defer ticker.Stop()

		// Immediate first capture, then the fixed interval.
		t.tick(stop)

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.tick(stop)
			}
		}
	})
}

func (t *Tracker) stopCaptureLoop() {
	t.mutex.Lock()
	stop := t.stopLoop
	group := t.loopGroup
	subscription := t.watchSub
	t.stopLoop = nil
	t.loopGroup = nil
	t.watchSub = nil
	t.mutex.Unlock()

	if subscription != nil {
		subscription.Stop()
	}

	if stop != nil {
		close(stop)
	}
	if group != nil {
		group.Wait()
	}
}

// tick runs one capture cycle. Failures are recorded, never fatal.
func (t *Tracker) tick(stop chan struct{}) {
	select {
	case <-stop:
		return
	default:
	}

	if _, err := t.captureAndPersist(context.Background()); err != nil {
		log.Warn().Err(err).Str("driver", t.options.DriverID).Msg("Capture cycle failed")
	}
}

func (t *Tracker) captureAndPersist(ctx context.Context) (model.ResolvedLocation, error) {
	reading, err := t.source.CaptureOnce(ctx)
	if err != nil {
		t.setLastError(captureErrorMessage(err))
		t.publishStatus(ctx)
		return model.ResolvedLocation{}, err
	}

	location := model.ResolvedLocation{Reading: reading}
	if address, ok := t.resolver.Resolve(ctx, reading.Latitude, reading.Longitude); ok {
		location.Address = &address
	}

	online := t.monitor.Online()

	record := model.NewLocationRecord(t.options.DriverID, t.options.TripID, location, model.RecordMetadata{
		UserAgent: t.options.UserAgent,
		Online:    online,
	})

	if online {
		if err := t.store.Insert(ctx, record); err != nil {
			log.Warn().Err(err).Str("driver", t.options.DriverID).Msg("Location write failed, queueing for retry")
			t.queue.Enqueue(record)
		} else {
			// Opportunistic drain while the store is reachable.
			t.queue.Flush(ctx)
		}
	} else {
		t.queue.Enqueue(record)
	}

	t.mutex.Lock()
	t.lastError = ""
	t.lastLocation = &location
	t.mutex.Unlock()

	t.coord.PublishLocation(ctx, location)
	t.publishStatus(ctx)

	return location, nil
}

// publishStatus broadcasts the session health alongside each capture
// cycle, success or failure.
func (t *Tracker) publishStatus(ctx context.Context) {
	t.coord.PublishStatus(ctx, coordinator.SessionStatus{
		Online:     t.monitor.Online(),
		QueueDepth: t.queue.Len(),
		LastError:  t.LastError(),
		UpdatedAt:  time.Now(),
	})
}

func (t *Tracker) mirrorLocation(location model.ResolvedLocation) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.lastLocation = &location
}

func (t *Tracker) updateLiveReading(reading model.Reading) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.liveReading = &reading
}

func (t *Tracker) setLastError(message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.lastError = message
}

func captureErrorMessage(err error) string {
	switch {
	case errors.Is(err, geosource.ErrPermissionDenied):
		return "Location permission denied"
	case errors.Is(err, geosource.ErrPositionUnavailable):
		return "Current position unavailable"
	case errors.Is(err, geosource.ErrTimeout):
		return "Location request timed out"
	default:
		return err.Error()
	}
}
