package connectivity

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultProbeTarget = "1.1.1.1:53"
const defaultProbeInterval = 15 * time.Second
const probeDialTimeout = 5 * time.Second

// ProbeMonitor derives connectivity by periodically dialling a known
// endpoint. It embeds a ManualMonitor so transitions fan out to the
// same callbacks.
type ProbeMonitor struct {
	*ManualMonitor

	target   string
	interval time.Duration
}

func NewProbeMonitor(target string, interval time.Duration) *ProbeMonitor {
	if target == "" {
		target = defaultProbeTarget
	}
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	return &ProbeMonitor{
		ManualMonitor: NewManualMonitor(true),

		target:   target,
		interval: interval,
	}
}

// Run probes until ctx is cancelled. It probes once immediately so the
// initial state is real rather than assumed.
func (m *ProbeMonitor) Run(ctx context.Context) {
	m.Set(m.probe())

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			online := m.probe()
			if online != m.Online() {
				log.Info().Bool("online", online).Msg("Connectivity changed")
			}
			m.Set(online)
		}
	}
}

func (m *ProbeMonitor) probe() bool {
	conn, err := net.DialTimeout("tcp", m.target, probeDialTimeout)
	if err != nil {
		return false
	}
	conn.Close()

	return true
}
