package coordinator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/navetta/navetta/pkg/model"
)

type MessageKind string

const (
	// LeaderCheck is broadcast by a newly started instance to
	// discover an existing leader.
	LeaderCheck MessageKind = "LEADER_CHECK"
	// LeaderExists is the current leader's reply to LeaderCheck.
	LeaderExists MessageKind = "LEADER_EXISTS"
	// LeaderAnnounce is sent by an instance claiming leadership.
	LeaderAnnounce MessageKind = "LEADER_ANNOUNCE"
	// LocationUpdate carries the leader's latest resolved capture so
	// followers can mirror it without capturing themselves.
	LocationUpdate MessageKind = "LOCATION_UPDATE"
	// LeaderLeaving is the leader's best effort notice before
	// shutting down.
	LeaderLeaving MessageKind = "LEADER_LEAVING"
	// StatusUpdate carries the leader's session health so followers
	// and dashboards can surface it without polling the leader.
	StatusUpdate MessageKind = "STATUS_UPDATE"
)

// SessionStatus is the leader's view of the tracking session,
// broadcast alongside location updates.
type SessionStatus struct {
	LeaderID   string    `json:"leader_id" groups:"basic"`
	Online     bool      `json:"online" groups:"basic"`
	QueueDepth int       `json:"queue_depth" groups:"basic"`
	LastError  string    `json:"last_error,omitempty" groups:"basic"`
	UpdatedAt  time.Time `json:"updated_at" groups:"basic"`
}

type Message struct {
	Kind     MessageKind             `json:"kind"`
	SenderID string                  `json:"sender_id"`
	Location *model.ResolvedLocation `json:"location,omitempty"`
	Status   *SessionStatus          `json:"status,omitempty"`
}

func (m Message) MarshalBinary() ([]byte, error) {
	return json.Marshal(m)
}

// ChannelName is the per driver broadcast channel.
func ChannelName(driverID string) string {
	return fmt.Sprintf("geolocation_%s", driverID)
}
