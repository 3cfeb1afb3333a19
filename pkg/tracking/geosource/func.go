package geosource

import (
	"context"
	"errors"
	"time"

	"github.com/navetta/navetta/pkg/model"
)

// FuncSource adapts a plain capture function into a Source. Host
// platforms with a callback shaped positioning API bridge through this,
// as do test fakes.
type FuncSource struct {
	Capture        func(ctx context.Context) (model.Reading, error)
	CaptureTimeout time.Duration

	// WatchInterval drives the polling cadence of Watch. Zero means
	// one second.
	WatchInterval time.Duration
}

func (s *FuncSource) CaptureOnce(ctx context.Context) (model.Reading, error) {
	timeout := s.CaptureTimeout
	if timeout <= 0 {
		timeout = DefaultCaptureTimeout
	}

	captureCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		reading model.Reading
		err     error
	}

	results := make(chan result, 1)
	go func() {
		reading, err := s.Capture(captureCtx)
		results <- result{reading: reading, err: err}
	}()

	select {
	case <-captureCtx.Done():
		return model.Reading{}, ErrTimeout
	case r := <-results:
		if errors.Is(r.err, context.DeadlineExceeded) || errors.Is(r.err, context.Canceled) {
			return model.Reading{}, ErrTimeout
		}

		return r.reading, r.err
	}
}

func (s *FuncSource) Watch(ctx context.Context, onUpdate func(model.Reading)) (Subscription, error) {
	interval := s.WatchInterval
	if interval <= 0 {
		interval = time.Second
	}

	watchCtx, cancel := context.WithCancel(ctx)
	finished := make(chan struct{})

	go func() {
		defer close(finished)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var lastReading *model.Reading
		var lastAt time.Time

		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
				// Watch tolerates a slightly stale fix, unlike
				// CaptureOnce.
				if lastReading != nil && time.Since(lastAt) < WatchMaximumAge {
					onUpdate(*lastReading)
					continue
				}

				reading, err := s.Capture(watchCtx)
				if err != nil {
					continue
				}

				lastReading = &reading
				lastAt = time.Now()

				if watchCtx.Err() == nil {
					onUpdate(reading)
				}
			}
		}
	}()

	return &cancelSubscription{cancel: cancel, finished: finished}, nil
}
