package coordinator

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBus carries coordination messages over redis pub/sub so
// instances of the same driver session find each other across
// processes. Redis delivers a published message back to the sender's
// own subscription, matching the Bus contract.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{
		client: client,
	}
}

func (b *RedisBus) Publish(ctx context.Context, channel string, message Message) error {
	return b.client.Publish(ctx, channel, message).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, channel string, handler func(Message)) (func(), error) {
	pubsub := b.client.Subscribe(ctx, channel)

	// Forces the subscription to be established before we return,
	// otherwise an immediately published LEADER_CHECK can be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		for delivery := range pubsub.Channel() {
			var message Message
			if err := json.Unmarshal([]byte(delivery.Payload), &message); err != nil {
				log.Error().Err(err).Str("channel", channel).Msg("Failed to decode coordination message")
				continue
			}

			handler(message)
		}
	}()

	unsubscribe := func() {
		pubsub.Close()
		<-done
	}

	return unsubscribe, nil
}
