package live

import (
	"context"
	"testing"
	"time"

	"github.com/navetta/navetta/pkg/model"
	"github.com/navetta/navetta/pkg/tracking/coordinator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirrorFollowsLocationBroadcasts(t *testing.T) {
	bus := coordinator.NewMemoryBus()

	mirror := NewMirror(bus)
	t.Cleanup(mirror.Close)

	// First lookup starts following; nothing observed yet.
	require.Nil(t, mirror.Latest("driver-1"))

	address := "Marco Zero - Recife Antigo - Recife"
	err := bus.Publish(context.Background(), coordinator.ChannelName("driver-1"), coordinator.Message{
		Kind:     coordinator.LocationUpdate,
		SenderID: "leader",
		Location: &model.ResolvedLocation{
			Reading: model.Reading{Latitude: -8.0631, Longitude: -34.8711, CapturedAt: time.Now()},
			Address: &address,
		},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return mirror.Latest("driver-1") != nil
	}, time.Second, 5*time.Millisecond)

	location := mirror.Latest("driver-1")
	assert.Equal(t, -8.0631, location.Latitude)

	// Election traffic is ignored.
	err = bus.Publish(context.Background(), coordinator.ChannelName("driver-2"), coordinator.Message{
		Kind:     coordinator.LeaderAnnounce,
		SenderID: "leader",
	})
	require.NoError(t, err)
	assert.Nil(t, mirror.Latest("driver-2"))
}

func TestMirrorFollowsStatusBroadcasts(t *testing.T) {
	bus := coordinator.NewMemoryBus()

	mirror := NewMirror(bus)
	t.Cleanup(mirror.Close)

	require.Nil(t, mirror.Status("driver-1"))

	err := bus.Publish(context.Background(), coordinator.ChannelName("driver-1"), coordinator.Message{
		Kind:     coordinator.StatusUpdate,
		SenderID: "leader",
		Status: &coordinator.SessionStatus{
			LeaderID:   "leader",
			Online:     false,
			QueueDepth: 3,
			LastError:  "Location request timed out",
			UpdatedAt:  time.Now(),
		},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return mirror.Status("driver-1") != nil
	}, time.Second, 5*time.Millisecond)

	status := mirror.Status("driver-1")
	assert.Equal(t, "leader", status.LeaderID)
	assert.False(t, status.Online)
	assert.Equal(t, 3, status.QueueDepth)
	assert.Equal(t, "Location request timed out", status.LastError)

	// Status and location feeds stay independent.
	assert.Nil(t, mirror.Latest("driver-1"))
}
