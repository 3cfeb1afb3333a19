package connectivity

import "sync"

// Monitor reports whether the client currently has network
// connectivity, the equivalent of the browser online/offline signal.
type Monitor interface {
	Online() bool
	// Notify registers a callback invoked on every online/offline
	// transition. The returned function unregisters it.
	Notify(fn func(online bool)) func()
}

// ManualMonitor is a Monitor driven entirely by Set calls. It backs
// tests and host platforms that surface their own connectivity events.
type ManualMonitor struct {
	mutex     sync.Mutex
	online    bool
	callbacks map[int]func(online bool)
	nextID    int
}

func NewManualMonitor(online bool) *ManualMonitor {
	return &ManualMonitor{
		online:    online,
		callbacks: map[int]func(online bool){},
	}
}

func (m *ManualMonitor) Online() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.online
}

// Set records the new connectivity state and fires callbacks when it
// changed.
func (m *ManualMonitor) Set(online bool) {
	m.mutex.Lock()

	changed := m.online != online
	m.online = online

	var callbacks []func(online bool)
	if changed {
		for _, callback := range m.callbacks {
			callbacks = append(callbacks, callback)
		}
	}
	m.mutex.Unlock()

	for _, callback := range callbacks {
		callback(online)
	}
}

func (m *ManualMonitor) Notify(fn func(online bool)) func() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	id := m.nextID
	m.nextID += 1
	m.callbacks[id] = fn

	return func() {
		m.mutex.Lock()
		defer m.mutex.Unlock()

		delete(m.callbacks, id)
	}
}
