package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/navetta/navetta/pkg/model"
	"github.com/rs/zerolog/log"
)

const DefaultGracePeriod = 500 * time.Millisecond

// Coordinator elects a single leader instance per driver over a
// broadcast Bus. Only the leader captures and writes; followers mirror
// the leader's published location. The protocol is best effort, not
// consensus: two instances starting inside the same grace window can
// both claim, in which case announce tiebreaking (lower instance id
// yields) resolves it on the next exchange. A crashed leader leaves no
// leader until another instance starts and runs the handshake.
type Coordinator struct {
	driverID   string
	instanceID string
	channel    string

	bus         Bus
	gracePeriod time.Duration

	// OnLocation fires whenever another instance broadcasts a
	// capture. OnLeadershipChange fires on every leader flag
	// transition. Both must be set before Start.
	OnLocation         func(model.ResolvedLocation)
	OnLeadershipChange func(isLeader bool)

	mutex        sync.Mutex
	isLeader     bool
	electing     bool
	leaderSeen   bool
	closed       bool
	claimTimer   *time.Timer
	lastLocation *model.ResolvedLocation
	lastStatus   *SessionStatus
	unsubscribe  func()
}

func NewCoordinator(driverID string, bus Bus) *Coordinator {
	return &Coordinator{
		driverID:   driverID,
		instanceID: uuid.NewString(),
		channel:    ChannelName(driverID),

		bus:         bus,
		gracePeriod: DefaultGracePeriod,
	}
}

// SetGracePeriod overrides the election grace window. Tests shorten it.
func (c *Coordinator) SetGracePeriod(gracePeriod time.Duration) {
	c.gracePeriod = gracePeriod
}

func (c *Coordinator) InstanceID() string {
	return c.instanceID
}

func (c *Coordinator) IsLeader() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.isLeader
}

// LastLocation is the most recent location broadcast observed from the
// leader. Nil until one arrives.
func (c *Coordinator) LastLocation() *model.ResolvedLocation {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.lastLocation
}

// LastStatus is the most recent session status observed from the
// leader. Nil until one arrives.
func (c *Coordinator) LastStatus() *SessionStatus {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.lastStatus
}

// Start subscribes to the driver channel and runs the leadership
// handshake.
func (c *Coordinator) Start(ctx context.Context) error {
	unsubscribe, err := c.bus.Subscribe(ctx, c.channel, c.handleMessage)
	if err != nil {
		return err
	}

	c.mutex.Lock()
	c.unsubscribe = unsubscribe
	c.mutex.Unlock()

	c.startElection(ctx)

	return nil
}

// Close broadcasts LEADER_LEAVING when leading and tears the
// subscription down. Idempotent.
func (c *Coordinator) Close() {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return
	}
	c.closed = true

	wasLeader := c.isLeader
	c.isLeader = false

	if c.claimTimer != nil {
		c.claimTimer.Stop()
	}

	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mutex.Unlock()

	if wasLeader {
		err := c.bus.Publish(context.Background(), c.channel, Message{Kind: LeaderLeaving, SenderID: c.instanceID})
		if err != nil {
			log.Debug().Err(err).Msg("Failed to broadcast leader leaving")
		}
	}

	if unsubscribe != nil {
		unsubscribe()
	}
}

// PublishLocation broadcasts a resolved capture to follower instances.
// Only the leader publishes.
func (c *Coordinator) PublishLocation(ctx context.Context, location model.ResolvedLocation) {
	if !c.IsLeader() {
		return
	}

	err := c.bus.Publish(ctx, c.channel, Message{
		Kind:     LocationUpdate,
		SenderID: c.instanceID,
		Location: &location,
	})
	if err != nil {
		log.Error().Err(err).Str("driver", c.driverID).Msg("Failed to broadcast location update")
	}
}

// PublishStatus broadcasts the leader's session health. Only the
// leader publishes.
func (c *Coordinator) PublishStatus(ctx context.Context, status SessionStatus) {
	if !c.IsLeader() {
		return
	}

	status.LeaderID = c.instanceID

	c.mutex.Lock()
	c.lastStatus = &status
	c.mutex.Unlock()

	err := c.bus.Publish(ctx, c.channel, Message{
		Kind:     StatusUpdate,
		SenderID: c.instanceID,
		Status:   &status,
	})
	if err != nil {
		log.Error().Err(err).Str("driver", c.driverID).Msg("Failed to broadcast status update")
	}
}

// startElection broadcasts LEADER_CHECK and claims leadership if the
// grace period passes silently.
func (c *Coordinator) startElection(ctx context.Context) {
	c.mutex.Lock()
	if c.electing || c.isLeader || c.closed {
		c.mutex.Unlock()
		return
	}
	c.electing = true
	c.leaderSeen = false
	c.mutex.Unlock()

	err := c.bus.Publish(ctx, c.channel, Message{Kind: LeaderCheck, SenderID: c.instanceID})
	if err != nil {
		log.Error().Err(err).Str("driver", c.driverID).Msg("Failed to broadcast leader check")
	}

	timer := time.AfterFunc(c.gracePeriod, func() {
		c.mutex.Lock()
		c.electing = false

		if c.leaderSeen || c.closed {
			c.mutex.Unlock()
			return
		}

		c.isLeader = true
		c.mutex.Unlock()

		log.Info().Str("driver", c.driverID).Str("instance", c.instanceID).Msg("Claimed tracking leadership")

		err := c.bus.Publish(context.Background(), c.channel, Message{Kind: LeaderAnnounce, SenderID: c.instanceID})
		if err != nil {
			log.Error().Err(err).Msg("Failed to broadcast leader announce")
		}

		c.notifyLeadership(true)
	})

	c.mutex.Lock()
	c.claimTimer = timer
	c.mutex.Unlock()
}

func (c *Coordinator) handleMessage(message Message) {
	if message.SenderID == c.instanceID {
		return
	}

	switch message.Kind {
	case LeaderCheck:
		if c.IsLeader() {
			err := c.bus.Publish(context.Background(), c.channel, Message{Kind: LeaderExists, SenderID: c.instanceID})
			if err != nil {
				log.Error().Err(err).Msg("Failed to reply to leader check")
			}
		}

	case LeaderExists:
		c.observeLeader(message.SenderID)

	case LeaderAnnounce:
		c.handleAnnounce(message.SenderID)

	case LocationUpdate:
		if message.Location == nil {
			return
		}

		c.mutex.Lock()
		c.lastLocation = message.Location
		onLocation := c.OnLocation
		c.mutex.Unlock()

		if onLocation != nil {
			onLocation(*message.Location)
		}

	case StatusUpdate:
		if message.Status == nil {
			return
		}

		c.mutex.Lock()
		c.lastStatus = message.Status
		c.mutex.Unlock()

	case LeaderLeaving:
		log.Debug().Str("driver", c.driverID).Msg("Leader leaving, re-running election")
		c.startElection(context.Background())
	}
}

// observeLeader records that some other instance is leading and steps
// down if needed.
func (c *Coordinator) observeLeader(senderID string) {
	c.mutex.Lock()
	c.leaderSeen = true

	wasLeader := c.isLeader
	c.isLeader = false

	if c.claimTimer != nil {
		c.claimTimer.Stop()
		c.electing = false
	}
	c.mutex.Unlock()

	if wasLeader {
		log.Info().Str("driver", c.driverID).Str("leader", senderID).Msg("Yielding tracking leadership")
		c.notifyLeadership(false)
	}
}

// handleAnnounce resolves simultaneous claims: the instance with the
// lower id yields, so exactly one survives a dual claim race.
func (c *Coordinator) handleAnnounce(senderID string) {
	c.mutex.Lock()
	amLeader := c.isLeader
	c.mutex.Unlock()

	if amLeader && c.instanceID > senderID {
		// Keep leadership, re-announce so the other side yields.
		err := c.bus.Publish(context.Background(), c.channel, Message{Kind: LeaderAnnounce, SenderID: c.instanceID})
		if err != nil {
			log.Error().Err(err).Msg("Failed to re-announce leadership")
		}
		return
	}

	c.observeLeader(senderID)
}

func (c *Coordinator) notifyLeadership(isLeader bool) {
	c.mutex.Lock()
	onChange := c.OnLeadershipChange
	c.mutex.Unlock()

	if onChange != nil {
		onChange(isLeader)
	}
}
