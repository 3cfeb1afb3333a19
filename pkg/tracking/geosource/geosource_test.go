package geosource

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/navetta/navetta/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recifeRoute = []RoutePoint{
	{Latitude: -8.0476, Longitude: -34.8813},
	{Latitude: -8.0529, Longitude: -34.8817},
	{Latitude: -8.0578, Longitude: -34.8829},
}

func TestSimulatedSourceCaptureOnce(t *testing.T) {
	source := NewSimulatedSource(recifeRoute, 10)

	reading, err := source.CaptureOnce(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, -8.0476, reading.Latitude, 0.001)
	assert.InDelta(t, -34.8813, reading.Longitude, 0.001)
	require.NotNil(t, reading.SpeedMps)
	assert.Equal(t, 10.0, *reading.SpeedMps)
	assert.False(t, reading.CapturedAt.IsZero())
}

func TestSimulatedSourceAdvancesAlongRoute(t *testing.T) {
	source := NewSimulatedSource(recifeRoute, 10)

	start := time.Now()
	source.now = func() time.Time { return start }

	first, err := source.CaptureOnce(context.Background())
	require.NoError(t, err)

	// A minute at 10 m/s moves the vehicle 600m down the route.
	source.now = func() time.Time { return start.Add(time.Minute) }

	second, err := source.CaptureOnce(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.Latitude, second.Latitude)
	assert.Less(t, second.Latitude, first.Latitude)
}

func TestSimulatedSourceParksAtDestination(t *testing.T) {
	source := NewSimulatedSource(recifeRoute, 10)

	start := time.Now()
	source.now = func() time.Time { return start.Add(24 * time.Hour) }

	reading, err := source.CaptureOnce(context.Background())
	require.NoError(t, err)

	last := recifeRoute[len(recifeRoute)-1]
	assert.Equal(t, last.Latitude, reading.Latitude)
	assert.Equal(t, last.Longitude, reading.Longitude)
	require.NotNil(t, reading.SpeedMps)
	assert.Equal(t, 0.0, *reading.SpeedMps)
}

func TestSimulatedSourceEmptyRoute(t *testing.T) {
	source := NewSimulatedSource(nil, 10)

	_, err := source.CaptureOnce(context.Background())
	assert.ErrorIs(t, err, ErrPositionUnavailable)

	_, err = source.Watch(context.Background(), func(model.Reading) {})
	assert.ErrorIs(t, err, ErrPositionUnavailable)
}

func TestFuncSourceTimeout(t *testing.T) {
	source := &FuncSource{
		Capture: func(ctx context.Context) (model.Reading, error) {
			<-ctx.Done()
			return model.Reading{}, ctx.Err()
		},
		CaptureTimeout: 20 * time.Millisecond,
	}

	_, err := source.CaptureOnce(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestFuncSourcePassesThroughErrors(t *testing.T) {
	source := &FuncSource{
		Capture: func(ctx context.Context) (model.Reading, error) {
			return model.Reading{}, ErrPermissionDenied
		},
	}

	_, err := source.CaptureOnce(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestWatchStops(t *testing.T) {
	source := NewSimulatedSource(recifeRoute, 10)

	updates := make(chan model.Reading, 16)
	subscription, err := source.Watch(context.Background(), func(reading model.Reading) {
		updates <- reading
	})
	require.NoError(t, err)

	subscription.Stop()
	subscription.Stop() // safe to call twice

	// Drain anything in flight, then confirm silence.
	time.Sleep(50 * time.Millisecond)
	for len(updates) > 0 {
		<-updates
	}

	select {
	case <-updates:
		t.Fatal("watch delivered an update after Stop")
	case <-time.After(1200 * time.Millisecond):
	}
}

func TestWatchStopWaitsForRunningCallback(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	source := &FuncSource{
		Capture: func(ctx context.Context) (model.Reading, error) {
			return model.Reading{Latitude: -8.0476, Longitude: -34.8813, CapturedAt: time.Now()}, nil
		},
		WatchInterval: 5 * time.Millisecond,
	}

	var delivered int64
	subscription, err := source.Watch(context.Background(), func(model.Reading) {
		atomic.AddInt64(&delivered, 1)
		if atomic.LoadInt64(&delivered) == 1 {
			close(entered)
			<-release
		}
	})
	require.NoError(t, err)

	<-entered

	stopped := make(chan struct{})
	go func() {
		subscription.Stop()
		close(stopped)
	}()

	// While the callback is still running, Stop must not return.
	select {
	case <-stopped:
		t.Fatal("Stop returned while an update callback was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the callback finished")
	}

	// Once Stop has returned no further callbacks may fire.
	settled := atomic.LoadInt64(&delivered)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, atomic.LoadInt64(&delivered))
}
