package live

import (
	"context"
	"sync"

	"github.com/navetta/navetta/pkg/model"
	"github.com/navetta/navetta/pkg/tracking/coordinator"
	"github.com/rs/zerolog/log"
)

// Mirror passively follows the per driver coordination channels and
// keeps the last broadcast location and session status of each driver.
// It never joins the election, so a dashboard process can observe a
// session without ever being mistaken for a tracking leader.
type Mirror struct {
	bus coordinator.Bus

	mutex        sync.Mutex
	locations    map[string]*model.ResolvedLocation
	statuses     map[string]*coordinator.SessionStatus
	unsubscribes map[string]func()
}

var globalMirror *Mirror

// Setup installs the process wide mirror used by the API routes.
func Setup(bus coordinator.Bus) {
	globalMirror = NewMirror(bus)
}

// Latest is the last broadcast location for the driver, or nil when no
// broadcast has been observed. The first call for a driver starts
// following their channel.
func Latest(driverID string) *model.ResolvedLocation {
	if globalMirror == nil {
		return nil
	}

	return globalMirror.Latest(driverID)
}

// Status is the last broadcast session status for the driver, or nil
// when none has been observed.
func Status(driverID string) *coordinator.SessionStatus {
	if globalMirror == nil {
		return nil
	}

	return globalMirror.Status(driverID)
}

func NewMirror(bus coordinator.Bus) *Mirror {
	return &Mirror{
		bus: bus,

		locations:    map[string]*model.ResolvedLocation{},
		statuses:     map[string]*coordinator.SessionStatus{},
		unsubscribes: map[string]func(){},
	}
}

func (m *Mirror) Latest(driverID string) *model.ResolvedLocation {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.follow(driverID)

	return m.locations[driverID]
}

func (m *Mirror) Status(driverID string) *coordinator.SessionStatus {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.follow(driverID)

	return m.statuses[driverID]
}

// follow lazily subscribes to the driver's channel. Callers hold the
// mutex.
func (m *Mirror) follow(driverID string) {
	if _, following := m.unsubscribes[driverID]; following {
		return
	}

	unsubscribe, err := m.bus.Subscribe(context.Background(), coordinator.ChannelName(driverID), func(message coordinator.Message) {
		switch message.Kind {
		case coordinator.LocationUpdate:
			if message.Location == nil {
				return
			}

			m.mutex.Lock()
			m.locations[driverID] = message.Location
			m.mutex.Unlock()

		case coordinator.StatusUpdate:
			if message.Status == nil {
				return
			}

			m.mutex.Lock()
			m.statuses[driverID] = message.Status
			m.mutex.Unlock()
		}
	})
	if err != nil {
		log.Error().Err(err).Str("driver", driverID).Msg("Failed to follow driver channel")
		return
	}

	m.unsubscribes[driverID] = unsubscribe
}

func (m *Mirror) Close() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for driverID, unsubscribe := range m.unsubscribes {
		unsubscribe()
		delete(m.unsubscribes, driverID)
	}
}
