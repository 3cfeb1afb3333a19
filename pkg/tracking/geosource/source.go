package geosource

import (
	"context"
	"errors"
	"time"

	"github.com/navetta/navetta/pkg/model"
)

// Error taxonomy mirroring the platform geolocation failure codes. All
// of them are recoverable from the tracking loop's point of view.
var (
	ErrPermissionDenied    = errors.New("geolocation permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("position request timed out")
)

const DefaultCaptureTimeout = 15 * time.Second

// WatchMaximumAge is the staleness tolerated by continuous watch
// updates. Watch feeds UI display only; persisted captures always come
// from a fresh CaptureOnce fix.
const WatchMaximumAge = 10 * time.Second

// Subscription is an active continuous watch. Stop synchronously
// prevents any further update callbacks.
type Subscription interface {
	Stop()
}

// Source produces geolocation readings. Implementations wrap a real
// positioning backend, a host platform bridge or a simulator.
type Source interface {
	// CaptureOnce requests one fresh high accuracy fix, waiting at
	// most the source's capture timeout. No cached fix is ever
	// returned.
	CaptureOnce(ctx context.Context) (model.Reading, error)

	// Watch delivers continuous best effort updates until the
	// subscription is stopped.
	Watch(ctx context.Context, onUpdate func(model.Reading)) (Subscription, error)
}
